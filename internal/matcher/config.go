// Package matcher implements the matching primitives of the payment/order waterfall.
//
// Each primitive is a pure function over typed, ordered collections:
//   - Scorer: 0-100 name similarity, maximum of four edit-distance ratios
//   - IntervalJoin: left outer join of payments onto orders whose validity
//     window contains the payment date and whose amount passes a Threshold
//   - AggregateByDate: collapses same-client records of a day window into one
//     synthetic record that can be exploded back into its members
//   - ResolveDuplicates: turns an ambiguous candidate set into stable 1:1 pairs
//   - SplitAndSum: matches jointly held orders against several payments and
//     accepts the group when the payments add up to the order total
//
// None of the primitives mutate their inputs; the waterfall in package
// reconciler owns the pools and decides which ids leave them.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	config.AmountThreshold = matcher.BoundedInt(5)
//
//	rows := matcher.IntervalJoin(payments, orders, config.AmountThreshold, config.SpanRule)
//	candidates := matcher.FilterByName(matcher.Candidates(rows), matcher.NewScorer(config))
//	pairs := matcher.ResolveDuplicates(candidates, config.AmountThreshold)
package matcher

import (
	"fmt"
	"strings"
)

// SpanRule decides how an aggregated payment, which covers [anchor, last date],
// is compared with an order validity window.
type SpanRule int

const (
	// SpanContained requires the whole span inside the window, so every
	// exploded payment date lies within the order window.
	SpanContained SpanRule = iota
	// SpanOverlap accepts any order whose window overlaps the span.
	SpanOverlap
)

// String returns the string representation of SpanRule
func (r SpanRule) String() string {
	switch r {
	case SpanContained:
		return "contained"
	case SpanOverlap:
		return "overlap"
	default:
		return "unknown"
	}
}

// ParseSpanRule reads "contained" or "overlap"
func ParseSpanRule(s string) (SpanRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "contained":
		return SpanContained, nil
	case "overlap":
		return SpanOverlap, nil
	default:
		return SpanContained, fmt.Errorf("invalid span rule %q: expected contained or overlap", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (r SpanRule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *SpanRule) UnmarshalText(text []byte) error {
	parsed, err := ParseSpanRule(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MatchingConfig holds the static parameters of every matching primitive.
// It is treated as an immutable value: derive variants with Clone.
type MatchingConfig struct {
	// AmountThreshold is the tolerance on |payment - order| for 1:1 and aggregate stages
	AmountThreshold Threshold `json:"amount_threshold" yaml:"amount_threshold"`

	// MinScore is the minimum name similarity (0-100) for acceptance
	MinScore int `json:"min_score" yaml:"min_score"`

	// MinNameLength drops payer names shorter than this from the fuzzy stages
	MinNameLength int `json:"min_name_length" yaml:"min_name_length"`

	// MinWordLength is the minimal length of a word shared by the light check
	MinWordLength int `json:"min_word_length" yaml:"min_word_length"`

	// Stopwords never count as a shared word in the light check
	Stopwords []string `json:"stopwords" yaml:"stopwords"`

	// LightCheckRounds bounds the iterative duplicate resolution of light check stages
	LightCheckRounds int `json:"light_check_rounds" yaml:"light_check_rounds"`

	// SpanRule compares aggregated payments with order windows
	SpanRule SpanRule `json:"span_rule" yaml:"span_rule"`
}

// DefaultMatchingConfig returns the configuration used by both built-in entities
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountThreshold:  BoundedInt(5),
		MinScore:         90,
		MinNameLength:    4,
		MinWordLength:    3,
		Stopwords:        []string{"LES"},
		LightCheckRounds: 5,
		SpanRule:         SpanContained,
	}
}

// StrictMatchingConfig requires exact amounts
func StrictMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.AmountThreshold = BoundedInt(0)
	config.MinScore = 95
	return config
}

// Validate checks the configuration for impossible values
func (mc *MatchingConfig) Validate() error {
	if err := mc.AmountThreshold.Validate(); err != nil {
		return err
	}
	if mc.MinScore < 0 || mc.MinScore > 100 {
		return fmt.Errorf("min score must be between 0 and 100: %d", mc.MinScore)
	}
	if mc.MinNameLength < 0 {
		return fmt.Errorf("min name length cannot be negative: %d", mc.MinNameLength)
	}
	if mc.MinWordLength < 1 {
		return fmt.Errorf("min word length must be at least 1: %d", mc.MinWordLength)
	}
	if mc.LightCheckRounds < 1 {
		return fmt.Errorf("light check rounds must be at least 1: %d", mc.LightCheckRounds)
	}
	if mc.SpanRule != SpanContained && mc.SpanRule != SpanOverlap {
		return fmt.Errorf("invalid span rule: %d", mc.SpanRule)
	}
	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	clone.Stopwords = append([]string(nil), mc.Stopwords...)
	return &clone
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{AmountThreshold: %s, MinScore: %d, MinNameLength: %d, LightCheckRounds: %d, SpanRule: %s}",
		mc.AmountThreshold, mc.MinScore, mc.MinNameLength, mc.LightCheckRounds, mc.SpanRule)
}
