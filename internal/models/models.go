package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout used for every date rendered in reports and fixtures
const DateLayout = "2006-01-02"

// Category is the review bucket of a reconciled row
type Category string

const (
	// CategoryProposition marks a row produced by a strict matching rule
	CategoryProposition Category = "Proposition"
	// CategoryLightCheck marks a row produced by the shared-word rule
	CategoryLightCheck Category = "Light check"
	// CategoryHeavyCheck marks a payment left unmatched after the whole waterfall
	CategoryHeavyCheck Category = "Heavy check"
)

// String returns the string representation of Category
func (c Category) String() string {
	return string(c)
}

// Rank orders categories for output: matched categories come first.
func (c Category) Rank() int {
	switch c {
	case CategoryProposition:
		return 0
	case CategoryLightCheck:
		return 1
	default:
		return 2
	}
}

// Motif labels the waterfall stage that produced a reconciled row
type Motif string

const (
	MotifUniquePayment      Motif = "paiement_unique"
	MotifPaymentsToOneOrder Motif = "npaiements_1ordre"
	MotifPaymentToOrders    Motif = "1paiement_nordres"
	MotifMultiSubscriber    Motif = "plusieurs_souscripteurs"
	MotifMultiPayment       Motif = "plusieurs_paiements"
	MotifLightCheckUnique   Motif = "light_check_paiement_unique"
	MotifLightCheckPayments Motif = "light_check_npaiements_1ordre"

	// CoSubscriberSuffix is appended to the basic motifs of the co-subscriber pass
	CoSubscriberSuffix = "_cosouscripteur"
)

// String returns the string representation of Motif
func (m Motif) String() string {
	return string(m)
}

// WithSuffix returns the motif with suffix appended
func (m Motif) WithSuffix(suffix string) Motif {
	return Motif(string(m) + suffix)
}

// Category derives the review bucket from the motif. Any motif naming the
// light check rule, with underscores or spaces, is a light check.
func (m Motif) Category() Category {
	normalized := strings.ToLower(strings.ReplaceAll(string(m), "_", " "))
	if strings.Contains(normalized, "light check") {
		return CategoryLightCheck
	}
	return CategoryProposition
}

// Payment is one cleaned row of the payer-side ledger (transfer or check)
type Payment struct {
	ID      string            `json:"id"`
	Date    time.Time         `json:"date"`
	Amount  decimal.Decimal   `json:"amount"`
	Account string            `json:"account"`
	Names   map[string]string `json:"names"`

	// Values holds the raw text of every input column, keyed by column name
	Values map[string]string `json:"values,omitempty"`
}

// NewPayment creates a Payment with empty name and value maps
func NewPayment(id string, date time.Time, amount decimal.Decimal, account string) *Payment {
	return &Payment{
		ID:      id,
		Date:    DateOnly(date),
		Amount:  amount,
		Account: account,
		Names:   make(map[string]string),
		Values:  make(map[string]string),
	}
}

// Name returns the payer name held in the given column, trimmed
func (p *Payment) Name(column string) string {
	return strings.TrimSpace(p.Names[column])
}

// Validate performs basic validation on the Payment
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("payment ID cannot be empty")
	}
	if p.Date.IsZero() {
		return fmt.Errorf("payment %s: date cannot be zero", p.ID)
	}
	return nil
}

// String returns a string representation of the Payment
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %s, Date: %s, Amount: %s, Account: %s}",
		p.ID, p.Date.Format(DateLayout), p.Amount.String(), p.Account)
}

// Cell returns the text of column for a report row: the raw input value
// when the payment was read from a file, else the typed field the column
// plays the role of.
func (p *Payment) Cell(column string, roles PaymentColumns) string {
	if v, ok := p.Values[column]; ok {
		return v
	}
	switch column {
	case roles.ID:
		return p.ID
	case roles.Date:
		return p.Date.Format(DateLayout)
	case roles.Amount:
		return p.Amount.String()
	case roles.Account:
		return p.Account
	}
	return p.Names[column]
}

// MarshalJSON renders amounts as strings and dates as YYYY-MM-DD
func (p *Payment) MarshalJSON() ([]byte, error) {
	type Alias Payment
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Amount: p.Amount.String(),
		Date:   p.Date.Format(DateLayout),
		Alias:  (*Alias)(p),
	})
}

// Order is one cleaned back-office order awaiting payment
type Order struct {
	ID               string          `json:"order_id"`
	CreationDate     time.Time       `json:"creation_date"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	SubscriberName   string          `json:"subscriber_name"`
	CoSubscriberName string          `json:"cosubscriber_name,omitempty"`
	ProductCode      string          `json:"product_code"`
	ShareType        string          `json:"share_type"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`

	// Values holds the raw text of every input column, keyed by column name
	Values map[string]string `json:"values,omitempty"`
}

// HasWindow reports whether both validity bounds are set
func (o *Order) HasWindow() bool {
	return !o.StartDate.IsZero() && !o.EndDate.IsZero()
}

// WithWindow returns a copy of the order whose window is [creation, creation+days]
func (o *Order) WithWindow(days int) *Order {
	clone := *o
	clone.StartDate = DateOnly(o.CreationDate)
	clone.EndDate = clone.StartDate.AddDate(0, 0, days)
	return &clone
}

// Contains reports whether date falls inside the validity window, bounds included
func (o *Order) Contains(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(o.StartDate) && !d.After(o.EndDate)
}

// IsJoint reports whether both holder names are populated
func (o *Order) IsJoint() bool {
	return strings.TrimSpace(o.SubscriberName) != "" && strings.TrimSpace(o.CoSubscriberName) != ""
}

// Validate performs basic validation on the Order
func (o *Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("order ID cannot be empty")
	}
	if o.CreationDate.IsZero() {
		return fmt.Errorf("order %s: creation date cannot be zero", o.ID)
	}
	if o.HasWindow() && o.EndDate.Before(o.StartDate) {
		return fmt.Errorf("order %s: window end %s precedes start %s", o.ID,
			o.EndDate.Format(DateLayout), o.StartDate.Format(DateLayout))
	}
	return nil
}

// String returns a string representation of the Order
func (o *Order) String() string {
	return fmt.Sprintf("Order{ID: %s, Created: %s, Total: %s, Subscriber: %s, Window: [%s, %s]}",
		o.ID, o.CreationDate.Format(DateLayout), o.TotalAmount.String(), o.SubscriberName,
		o.StartDate.Format(DateLayout), o.EndDate.Format(DateLayout))
}

// Cell returns the text of column for a report row, like Payment.Cell
func (o *Order) Cell(column string) string {
	if v, ok := o.Values[column]; ok {
		return v
	}
	switch column {
	case OrderIDColumn:
		return o.ID
	case OrderCreationColumn:
		return o.CreationDate.Format(DateLayout)
	case OrderAmountColumn:
		return o.TotalAmount.String()
	case OrderSubscriberColumn:
		return o.SubscriberName
	case OrderCoSubscriberColumn:
		return o.CoSubscriberName
	case OrderProductColumn:
		return o.ProductCode
	case OrderShareTypeColumn:
		return o.ShareType
	case OrderStartColumn:
		return formatDate(o.StartDate)
	case OrderEndColumn:
		return formatDate(o.EndDate)
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// MarshalJSON renders amounts as strings and dates as YYYY-MM-DD
func (o *Order) MarshalJSON() ([]byte, error) {
	type Alias Order
	return json.Marshal(&struct {
		TotalAmount  string `json:"total_amount"`
		CreationDate string `json:"creation_date"`
		StartDate    string `json:"start_date"`
		EndDate      string `json:"end_date"`
		*Alias
	}{
		TotalAmount:  o.TotalAmount.String(),
		CreationDate: o.CreationDate.Format(DateLayout),
		StartDate:    o.StartDate.Format(DateLayout),
		EndDate:      o.EndDate.Format(DateLayout),
		Alias:        (*Alias)(o),
	})
}

// PaymentColumns maps column roles to the column names of a payment table
type PaymentColumns struct {
	ID      string   `json:"id" yaml:"id"`
	Date    string   `json:"date" yaml:"date"`
	Amount  string   `json:"amount" yaml:"amount"`
	Account string   `json:"account" yaml:"account"`
	Names   []string `json:"names" yaml:"names"`
}

// DefaultPaymentColumns returns the column roles of the cleaned transfer table
func DefaultPaymentColumns() PaymentColumns {
	return PaymentColumns{
		ID:      "id",
		Date:    "effective_date",
		Amount:  "amount",
		Account: "account_num",
		Names:   []string{"clientname"},
	}
}

// Required lists every column the roles refer to, in role order
func (c PaymentColumns) Required() []string {
	cols := []string{c.ID, c.Date, c.Amount, c.Account}
	return append(cols, c.Names...)
}

// Order table column names. Cleaned order tables always use these headers.
const (
	OrderIDColumn           = "order_id"
	OrderCreationColumn     = "creation_date"
	OrderAmountColumn       = "total_amount"
	OrderSubscriberColumn   = "subscriber_name"
	OrderCoSubscriberColumn = "cosubscriber_name"
	OrderProductColumn      = "product_code"
	OrderShareTypeColumn    = "share_type"
	OrderStartColumn        = "start_date"
	OrderEndColumn          = "end_date"
)

// RequiredOrderColumns lists the columns an order table must carry
func RequiredOrderColumns() []string {
	return []string{
		OrderIDColumn,
		OrderCreationColumn,
		OrderAmountColumn,
		OrderSubscriberColumn,
		OrderProductColumn,
		OrderShareTypeColumn,
	}
}

// PaymentTable is an ordered set of payments plus the original header
type PaymentTable struct {
	Columns     []string       `json:"columns"`
	Roles       PaymentColumns `json:"roles"`
	Rows        []*Payment     `json:"rows"`
	PaymentType string         `json:"payment_type,omitempty"`
}

// OrderTable is an ordered set of orders plus the original header
type OrderTable struct {
	Columns []string `json:"columns"`
	Rows    []*Order `json:"rows"`
}

// HasColumn reports whether the header contains name
func HasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// ReconciledRecord is one output row: a payment, the order it settles (nil for
// heavy checks), and the audit fields of the stage that paired them.
type ReconciledRecord struct {
	Payment         *Payment `json:"payment"`
	Order           *Order   `json:"order,omitempty"`
	Motif           Motif    `json:"motif"`
	Category        Category `json:"category"`
	AccountMismatch bool     `json:"account_mismatch"`
	Segment         string   `json:"segment,omitempty"`
}

// IsMatched reports whether the record carries an order
func (r *ReconciledRecord) IsMatched() bool {
	return r.Order != nil
}

// PairKey identifies the (payment, order) pair of a record
func (r *ReconciledRecord) PairKey() string {
	if r.Order == nil {
		return r.Payment.ID + "|"
	}
	return r.Payment.ID + "|" + r.Order.ID
}

// ParseDecimalFromString parses a decimal value from string with validation.
// Both "1234.50" and "1 234,50" are accepted.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.NewReplacer("€", "", "$", "", " ", "", "\u00a0", "").Replace(s)
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}
	return d, nil
}

// ParseTimeWithFormats attempts to parse a date using the layouts found in cleaned exports
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		DateLayout,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"02/01/2006",
		"02/01/2006 15:04:05",
		"2006/01/02",
		"20060102",
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return DateOnly(t), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}
