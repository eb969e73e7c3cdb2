package matcher

import (
	"sort"
	"time"
)

// OrderIndex sorts orders by window start so that the orders admitting a
// payment date are found with a binary search instead of a full scan.
type OrderIndex struct {
	orders  []*OrderEntry
	byStart []int
}

// NewOrderIndex creates an index over orders. The slice is not copied and must
// not be modified while the index is in use.
func NewOrderIndex(orders []*OrderEntry) *OrderIndex {
	byStart := make([]int, len(orders))
	for i := range byStart {
		byStart[i] = i
	}
	sort.SliceStable(byStart, func(i, j int) bool {
		return orders[byStart[i]].Start.Before(orders[byStart[j]].Start)
	})
	return &OrderIndex{orders: orders, byStart: byStart}
}

// Len returns the number of indexed orders
func (ix *OrderIndex) Len() int {
	return len(ix.orders)
}

// Window returns, in input order, the orders whose validity window admits the
// span [from, to] under rule. A raw payment passes from == to.
func (ix *OrderIndex) Window(from, to time.Time, rule SpanRule) []*OrderEntry {
	// Both rules need Start <= pivot; everything after the cut starts too late.
	pivot := from
	if rule == SpanOverlap {
		pivot = to
	}
	cut := sort.Search(len(ix.byStart), func(i int) bool {
		return ix.orders[ix.byStart[i]].Start.After(pivot)
	})

	// End must reach the far edge of the span for containment, the near edge for overlap.
	edge := to
	if rule == SpanOverlap {
		edge = from
	}

	positions := make([]int, 0, cut)
	for _, pos := range ix.byStart[:cut] {
		if !ix.orders[pos].End.Before(edge) {
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)

	result := make([]*OrderEntry, len(positions))
	for i, pos := range positions {
		result[i] = ix.orders[pos]
	}
	return result
}

// JoinRow is one row of the left outer interval join. Order is nil when the
// payment found no qualifying order.
type JoinRow struct {
	Payment *PaymentEntry
	Order   *OrderEntry
}

// IntervalJoin pairs every payment with every order whose window admits the
// payment date (or aggregate span) and whose amount passes threshold. Rows
// come out payment-major, orders in input order, each qualifying pair exactly
// once. Payments without a qualifying order keep one row with a nil Order.
func IntervalJoin(payments []*PaymentEntry, orders []*OrderEntry, threshold Threshold, rule SpanRule) []JoinRow {
	if len(payments) == 0 {
		return nil
	}

	index := NewOrderIndex(orders)
	rows := make([]JoinRow, 0, len(payments))
	for _, p := range payments {
		matched := false
		for _, o := range index.Window(p.Date, p.LastDate, rule) {
			if !threshold.Accepts(p.Amount, o.Amount) {
				continue
			}
			rows = append(rows, JoinRow{Payment: p, Order: o})
			matched = true
		}
		if !matched {
			rows = append(rows, JoinRow{Payment: p})
		}
	}
	return rows
}

// Candidates keeps the matched rows of a join as candidates
func Candidates(rows []JoinRow) []Candidate {
	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		if row.Order == nil {
			continue
		}
		candidates = append(candidates, NewCandidate(row.Payment, row.Order))
	}
	return candidates
}

// FilterByName keeps the candidates whose payer names reach the minimum score
// against the order holder name, recording the score.
func FilterByName(candidates []Candidate, scorer *Scorer) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		score, ok := scorer.Accepts(c.Payment.Names, c.Order.Name)
		if !ok {
			continue
		}
		c.Score = score
		kept = append(kept, c)
	}
	return kept
}
