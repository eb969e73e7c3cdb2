package reconciler

import (
	"testing"
	"time"

	"waterfall-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

func newPayment(t *testing.T, id, day string, amount int64, account, name string) *models.Payment {
	t.Helper()
	p := models.NewPayment(id, date(t, day), decimal.NewFromInt(amount), account)
	p.Names["clientname"] = name
	return p
}

// newOrder builds an order; empty start/end leave the window to be derived
func newOrder(t *testing.T, id, created string, amount int64, subscriber, cosubscriber, product, shareType, start, end string) *models.Order {
	t.Helper()
	o := &models.Order{
		ID:               id,
		CreationDate:     date(t, created),
		TotalAmount:      decimal.NewFromInt(amount),
		SubscriberName:   subscriber,
		CoSubscriberName: cosubscriber,
		ProductCode:      product,
		ShareType:        shareType,
		Values:           map[string]string{},
	}
	if start != "" {
		o.StartDate = date(t, start)
	}
	if end != "" {
		o.EndDate = date(t, end)
	}
	return o
}

func paymentTable(rows ...*models.Payment) *models.PaymentTable {
	return &models.PaymentTable{
		Columns:     []string{"id", "effective_date", "amount", "account_num", "clientname"},
		Roles:       models.DefaultPaymentColumns(),
		Rows:        rows,
		PaymentType: "virement",
	}
}

func orderTable(rows ...*models.Order) *models.OrderTable {
	columns := append(models.RequiredOrderColumns(), models.OrderCoSubscriberColumn, models.OrderStartColumn, models.OrderEndColumn)
	return &models.OrderTable{Columns: columns, Rows: rows}
}

// pairs renders matched rows as payment>order@motif, in output order
func pairs(records []*models.ReconciledRecord) []string {
	var out []string
	for _, r := range records {
		if !r.IsMatched() {
			out = append(out, r.Payment.ID+">-@"+r.Category.String())
			continue
		}
		out = append(out, r.Payment.ID+">"+r.Order.ID+"@"+r.Motif.String())
	}
	return out
}

func orderIDs(orders []*models.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}
