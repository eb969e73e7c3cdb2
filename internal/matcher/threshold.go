package matcher

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ThresholdKind distinguishes a numeric amount tolerance from the unbounded rule.
type ThresholdKind int

const (
	// KindBounded accepts a pair when |payment - order| <= value.
	KindBounded ThresholdKind = iota
	// KindUnbounded accepts a pair when payment <= order, with no gap check.
	KindUnbounded
)

// String returns the string representation of ThresholdKind
func (k ThresholdKind) String() string {
	switch k {
	case KindBounded:
		return "bounded"
	case KindUnbounded:
		return "unbounded"
	default:
		return "unknown"
	}
}

// UnboundedKeyword is the configuration spelling of the unbounded threshold.
const UnboundedKeyword = "unbounded"

// Threshold is an amount tolerance. The zero value is a bounded threshold of 0,
// which is distinct from Unbounded.
type Threshold struct {
	kind  ThresholdKind
	value decimal.Decimal
}

// Bounded returns a threshold accepting gaps up to value
func Bounded(value decimal.Decimal) Threshold {
	return Threshold{kind: KindBounded, value: value}
}

// BoundedInt is Bounded for whole amounts
func BoundedInt(value int64) Threshold {
	return Bounded(decimal.NewFromInt(value))
}

// Unbounded returns the date-only threshold used by the multi-subscriber stage
func Unbounded() Threshold {
	return Threshold{kind: KindUnbounded}
}

// ParseThreshold reads "unbounded" or a non-negative decimal
func ParseThreshold(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, UnboundedKeyword) {
		return Unbounded(), nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid amount threshold %q: expected a number or %q", s, UnboundedKeyword)
	}
	if v.IsNegative() {
		return Threshold{}, fmt.Errorf("amount threshold cannot be negative: %s", v.String())
	}
	return Bounded(v), nil
}

// Kind returns the threshold kind
func (t Threshold) Kind() ThresholdKind {
	return t.kind
}

// IsUnbounded reports whether the threshold is the unbounded rule
func (t Threshold) IsUnbounded() bool {
	return t.kind == KindUnbounded
}

// Value returns the bounded tolerance; it is zero for Unbounded
func (t Threshold) Value() decimal.Decimal {
	return t.value
}

// Accepts applies the amount rule to one payment amount against one order amount.
func (t Threshold) Accepts(paymentAmount, orderAmount decimal.Decimal) bool {
	if t.kind == KindUnbounded {
		return paymentAmount.LessThanOrEqual(orderAmount)
	}
	return paymentAmount.Sub(orderAmount).Abs().LessThanOrEqual(t.value)
}

// Validate rejects negative bounded thresholds built without ParseThreshold
func (t Threshold) Validate() error {
	if t.kind == KindBounded && t.value.IsNegative() {
		return fmt.Errorf("amount threshold cannot be negative: %s", t.value.String())
	}
	if t.kind != KindBounded && t.kind != KindUnbounded {
		return fmt.Errorf("unknown threshold kind %d", t.kind)
	}
	return nil
}

// String renders the threshold the way ParseThreshold reads it
func (t Threshold) String() string {
	if t.kind == KindUnbounded {
		return UnboundedKeyword
	}
	return t.value.String()
}

// MarshalText implements encoding.TextMarshaler for JSON and YAML configs
func (t Threshold) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and YAML configs
func (t *Threshold) UnmarshalText(text []byte) error {
	parsed, err := ParseThreshold(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
