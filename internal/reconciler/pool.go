package reconciler

import (
	"waterfall-reconciliation-service/internal/models"
)

// Pool is the working set of not yet reconciled payments and orders. A pool
// only shrinks: Without returns a new pool and leaves the receiver untouched,
// so a stage that receives a pool can never alter the caller's view of it.
type Pool struct {
	Payments []*models.Payment
	Orders   []*models.Order
}

// NewPool creates a pool over copies of the given slices
func NewPool(payments []*models.Payment, orders []*models.Order) Pool {
	return Pool{
		Payments: append([]*models.Payment(nil), payments...),
		Orders:   append([]*models.Order(nil), orders...),
	}
}

// IsEmpty reports whether either side of the pool is empty; no stage can match anything then
func (p Pool) IsEmpty() bool {
	return len(p.Payments) == 0 || len(p.Orders) == 0
}

// Without returns the pool minus the given payment and order ids, keeping input order
func (p Pool) Without(paymentIDs, orderIDs map[string]struct{}) Pool {
	return Pool{
		Payments: withoutPayments(p.Payments, paymentIDs),
		Orders:   withoutOrders(p.Orders, orderIDs),
	}
}

func withoutPayments(payments []*models.Payment, ids map[string]struct{}) []*models.Payment {
	kept := make([]*models.Payment, 0, len(payments))
	for _, pay := range payments {
		if _, gone := ids[pay.ID]; !gone {
			kept = append(kept, pay)
		}
	}
	return kept
}

func withoutOrders(orders []*models.Order, ids map[string]struct{}) []*models.Order {
	kept := make([]*models.Order, 0, len(orders))
	for _, o := range orders {
		if _, gone := ids[o.ID]; !gone {
			kept = append(kept, o)
		}
	}
	return kept
}

// accountPartitions groups payments by account, accounts in order of first appearance
func accountPartitions(payments []*models.Payment) ([]string, map[string][]*models.Payment) {
	var accounts []string
	byAccount := make(map[string][]*models.Payment)
	for _, p := range payments {
		if _, ok := byAccount[p.Account]; !ok {
			accounts = append(accounts, p.Account)
		}
		byAccount[p.Account] = append(byAccount[p.Account], p)
	}
	return accounts, byAccount
}

// splitByProduct separates the orders of the given product from the others
func splitByProduct(orders []*models.Order, product string) (same, other []*models.Order) {
	for _, o := range orders {
		if o.ProductCode == product {
			same = append(same, o)
		} else {
			other = append(other, o)
		}
	}
	return same, other
}

// productsDiffer reports whether the account set of the payments differs from
// the product set of the orders.
func productsDiffer(payments []*models.Payment, orders []*models.Order) bool {
	accounts := make(map[string]struct{})
	for _, p := range payments {
		accounts[p.Account] = struct{}{}
	}
	products := make(map[string]struct{})
	for _, o := range orders {
		products[o.ProductCode] = struct{}{}
	}
	if len(accounts) != len(products) {
		return true
	}
	for a := range accounts {
		if _, ok := products[a]; !ok {
			return true
		}
	}
	return false
}
