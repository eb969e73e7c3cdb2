package matcher

import (
	"time"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func testPayment(id string, date time.Time, amount int64, names ...string) *PaymentEntry {
	return &PaymentEntry{
		ID:       id,
		Members:  []string{id},
		Date:     date,
		LastDate: date,
		Amount:   amt(amount),
		Names:    names,
	}
}

func testOrder(id string, created time.Time, windowDays int, amount int64, name string) *OrderEntry {
	return &OrderEntry{
		ID:           id,
		Members:      []string{id},
		CreationDate: created,
		LastDate:     created,
		Start:        created,
		End:          created.AddDate(0, 0, windowDays),
		Amount:       amt(amount),
		Name:         name,
	}
}

func pairIDs(candidates []Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Payment.ID + "-" + c.Order.ID
	}
	return ids
}
