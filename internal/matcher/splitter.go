package matcher

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SplitGroup is an order settled by several payments whose sum lies within
// threshold of the order total.
type SplitGroup struct {
	Order    *OrderEntry
	Payments []*PaymentEntry
	Sum      decimal.Decimal
}

// PaymentIDs returns the ids of the payments of the group, in join order
func (g SplitGroup) PaymentIDs() []string {
	ids := make([]string, len(g.Payments))
	for i, p := range g.Payments {
		ids[i] = p.ID
	}
	return ids
}

// Gap returns |order total - summed payments|
func (g SplitGroup) Gap() decimal.Decimal {
	return g.Order.Amount.Sub(g.Sum).Abs()
}

// SplitAndSum matches holder rows (one row per holder name, several rows may
// share an order id) against payments on date only, keeps the pairs whose
// names clear the scorer, sums the payments per order and accepts the orders
// whose sum passes threshold against the total.
//
// Groups are accepted in holder input order. A payment belongs to at most one
// group: a group reusing a payment of an earlier accepted group is rejected
// whole, leaving its order for a later stage.
func SplitAndSum(payments []*PaymentEntry, holders []*OrderEntry, scorer *Scorer, threshold Threshold, rule SpanRule) []SplitGroup {
	if len(payments) == 0 || len(holders) == 0 {
		return nil
	}

	candidates := FilterByName(Candidates(IntervalJoin(payments, holders, Unbounded(), rule)), scorer)

	firstPos := make(map[string]int)
	for i, h := range holders {
		if _, ok := firstPos[h.ID]; !ok {
			firstPos[h.ID] = i
		}
	}

	type group struct {
		order    *OrderEntry
		payments []*PaymentEntry
		seen     map[string]bool
		sum      decimal.Decimal
	}
	groups := make(map[string]*group)
	var orderIDs []string
	for _, c := range candidates {
		g, ok := groups[c.Order.ID]
		if !ok {
			g = &group{order: c.Order, seen: make(map[string]bool), sum: decimal.Zero}
			groups[c.Order.ID] = g
			orderIDs = append(orderIDs, c.Order.ID)
		}
		if g.seen[c.Payment.ID] {
			continue
		}
		g.seen[c.Payment.ID] = true
		g.payments = append(g.payments, c.Payment)
		g.sum = g.sum.Add(c.Payment.Amount)
	}

	sort.SliceStable(orderIDs, func(i, j int) bool {
		return firstPos[orderIDs[i]] < firstPos[orderIDs[j]]
	})

	used := make(map[string]bool)
	var accepted []SplitGroup
	for _, id := range orderIDs {
		g := groups[id]
		if !threshold.Accepts(g.sum, g.order.Amount) {
			continue
		}
		clash := false
		for _, p := range g.payments {
			if used[p.ID] {
				clash = true
				break
			}
		}
		if clash {
			continue
		}
		for _, p := range g.payments {
			used[p.ID] = true
		}
		accepted = append(accepted, SplitGroup{Order: g.order, Payments: g.payments, Sum: g.sum})
	}
	return accepted
}
