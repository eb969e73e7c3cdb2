package matcher

import (
	"strings"
	"time"

	"waterfall-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// IDSeparator joins the member ids of an aggregated entry
const IDSeparator = "|"

// PaymentEntry is the payment side of a join: one payment, or an aggregate of
// payments that spans [Date, LastDate].
type PaymentEntry struct {
	ID       string
	Members  []string
	Date     time.Time
	LastDate time.Time
	Amount   decimal.Decimal
	Names    []string
	Account  string
}

// NewPaymentEntry builds the entry of a raw payment using the given name columns, in order
func NewPaymentEntry(p *models.Payment, nameColumns ...string) *PaymentEntry {
	names := make([]string, 0, len(nameColumns))
	for _, col := range nameColumns {
		names = append(names, p.Name(col))
	}
	return &PaymentEntry{
		ID:       p.ID,
		Members:  []string{p.ID},
		Date:     p.Date,
		LastDate: p.Date,
		Amount:   p.Amount,
		Names:    names,
		Account:  p.Account,
	}
}

// Name returns the first non-empty candidate name
func (e *PaymentEntry) Name() string {
	for _, n := range e.Names {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return ""
}

// IsAggregate reports whether the entry stands for more than one payment
func (e *PaymentEntry) IsAggregate() bool {
	return len(e.Members) > 1
}

// OrderEntry is the order side of a join: one order seen through one holder
// name, or an aggregate of orders whose window is the intersection of the
// member windows.
type OrderEntry struct {
	ID           string
	Members      []string
	CreationDate time.Time
	LastDate     time.Time
	Start        time.Time
	End          time.Time
	Amount       decimal.Decimal
	Name         string
	Product      string
}

// NewOrderEntry builds the entry of a raw order seen through holder name
func NewOrderEntry(o *models.Order, name string) *OrderEntry {
	return &OrderEntry{
		ID:           o.ID,
		Members:      []string{o.ID},
		CreationDate: o.CreationDate,
		LastDate:     o.CreationDate,
		Start:        o.StartDate,
		End:          o.EndDate,
		Amount:       o.TotalAmount,
		Name:         strings.TrimSpace(name),
		Product:      o.ProductCode,
	}
}

// HolderEntries explodes a jointly held order into one entry per holder name.
// Orders without both names yield nothing.
func HolderEntries(o *models.Order) []*OrderEntry {
	if !o.IsJoint() {
		return nil
	}
	return []*OrderEntry{
		NewOrderEntry(o, o.SubscriberName),
		NewOrderEntry(o, o.CoSubscriberName),
	}
}

// Candidate is a payment/order pairing produced by the interval join
type Candidate struct {
	Payment   *PaymentEntry
	Order     *OrderEntry
	AmountGap decimal.Decimal
	DateGap   int
	Score     int
}

// NewCandidate computes the gaps of a pairing
func NewCandidate(p *PaymentEntry, o *OrderEntry) Candidate {
	return Candidate{
		Payment:   p,
		Order:     o,
		AmountGap: p.Amount.Sub(o.Amount).Abs(),
		DateGap:   models.DaysBetween(o.CreationDate, p.Date),
	}
}

// PairKey identifies the (payment, order) pair of the candidate
func (c Candidate) PairKey() string {
	return c.Payment.ID + "\x00" + c.Order.ID
}

// PaymentEntryFromAggregate turns an aggregate of payments into a join entry
func PaymentEntryFromAggregate(a Aggregate, account string) *PaymentEntry {
	return &PaymentEntry{
		ID:       a.Key(),
		Members:  append([]string(nil), a.IDs...),
		Date:     a.Date,
		LastDate: a.LastDate,
		Amount:   a.Amount,
		Names:    []string{a.Client},
		Account:  account,
	}
}

// OrderEntryFromAggregate turns an aggregate of orders into a join entry. The
// window is the intersection of the member windows, so a payment accepted by
// the aggregate lies inside every member window.
func OrderEntryFromAggregate(a Aggregate, ordersByID map[string]*models.Order) *OrderEntry {
	entry := &OrderEntry{
		ID:           a.Key(),
		Members:      append([]string(nil), a.IDs...),
		CreationDate: a.Date,
		LastDate:     a.LastDate,
		Amount:       a.Amount,
		Name:         a.Client,
	}
	first := true
	for _, id := range a.IDs {
		o, ok := ordersByID[id]
		if !ok {
			continue
		}
		if first || o.StartDate.After(entry.Start) {
			entry.Start = o.StartDate
		}
		if first || o.EndDate.Before(entry.End) {
			entry.End = o.EndDate
		}
		if first {
			entry.Product = o.ProductCode
		}
		first = false
	}
	return entry
}
