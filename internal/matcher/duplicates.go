package matcher

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ResolveDuplicates turns a candidate set into 1:1 pairs.
//
// Candidates whose payment id and order id both appear once pass through.
// The others are ranked: per combined key (payer name | holder name), the
// oldest unresolved payment pairs with the oldest unresolved order of the same
// rank, ranks counted within (key, amount) groups on each side. Among the pairs
// produced, each payment keeps its smallest amount gap, then each order keeps
// its smallest gap, and pairs outside threshold are dropped.
//
// Output keeps the input order of the surviving candidates, so the resolver is
// idempotent: resolved output contains no duplicates and passes through unchanged.
func ResolveDuplicates(candidates []Candidate, threshold Threshold) []Candidate {
	return ResolveInRounds(candidates, threshold, 1)
}

// ResolveInRounds repeats the ranking on the duplicates left unresolved, after
// removing the ids resolved by earlier rounds.
func ResolveInRounds(candidates []Candidate, threshold Threshold, rounds int) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	paymentCount := make(map[string]int)
	orderCount := make(map[string]int)
	for _, c := range candidates {
		paymentCount[c.Payment.ID]++
		orderCount[c.Order.ID]++
	}

	var kept, remaining []int
	for i, c := range candidates {
		if paymentCount[c.Payment.ID] == 1 && orderCount[c.Order.ID] == 1 {
			kept = append(kept, i)
		} else {
			remaining = append(remaining, i)
		}
	}

	takenPayments := make(map[string]struct{})
	takenOrders := make(map[string]struct{})
	for round := 0; round < rounds && len(remaining) > 0; round++ {
		picked := rankAndPair(candidates, remaining, threshold)
		if len(picked) == 0 {
			break
		}
		for _, idx := range picked {
			kept = append(kept, idx)
			takenPayments[candidates[idx].Payment.ID] = struct{}{}
			takenOrders[candidates[idx].Order.ID] = struct{}{}
		}

		next := remaining[:0:0]
		for _, idx := range remaining {
			_, p := takenPayments[candidates[idx].Payment.ID]
			_, o := takenOrders[candidates[idx].Order.ID]
			if !p && !o {
				next = append(next, idx)
			}
		}
		remaining = next
	}

	sort.Ints(kept)
	resolved := make([]Candidate, len(kept))
	for i, idx := range kept {
		resolved[i] = candidates[idx]
	}
	return resolved
}

type rankedSide struct {
	id     string
	key    string
	date   time.Time
	amount decimal.Decimal
	rank   int
}

// rankAndPair runs one round of positional pairing over candidates[indices]
// and returns the indices of the accepted candidates.
func rankAndPair(candidates []Candidate, indices []int, threshold Threshold) []int {
	var left, right []*rankedSide
	seenPayments := make(map[string]bool)
	seenOrders := make(map[string]bool)
	lookup := make(map[string]int)

	for _, idx := range indices {
		c := candidates[idx]
		key := c.Payment.Name() + IDSeparator + c.Order.Name
		if _, ok := lookup[c.PairKey()]; !ok {
			lookup[c.PairKey()] = idx
		}
		if !seenPayments[c.Payment.ID] {
			seenPayments[c.Payment.ID] = true
			left = append(left, &rankedSide{id: c.Payment.ID, key: key, date: c.Payment.Date, amount: c.Payment.Amount})
		}
		if !seenOrders[c.Order.ID] {
			seenOrders[c.Order.ID] = true
			right = append(right, &rankedSide{id: c.Order.ID, key: key, date: c.Order.CreationDate, amount: c.Order.Amount})
		}
	}

	assignRanks(left)
	assignRanks(right)

	type slot struct {
		key  string
		rank int
	}
	byRank := make(map[slot][]*rankedSide)
	for _, r := range right {
		s := slot{key: r.key, rank: r.rank}
		byRank[s] = append(byRank[s], r)
	}

	type pair struct {
		cand     int
		payment  string
		order    string
		gap      decimal.Decimal
		leftPos  int
		rightPos int
	}
	rightPos := make(map[string]int, len(right))
	for i, r := range right {
		rightPos[r.id] = i
	}

	var pairs []pair
	for li, l := range left {
		for _, r := range byRank[slot{key: l.key, rank: l.rank}] {
			idx, ok := lookup[l.id+"\x00"+r.id]
			if !ok {
				continue
			}
			c := candidates[idx]
			if !threshold.Accepts(c.Payment.Amount, c.Order.Amount) {
				continue
			}
			pairs = append(pairs, pair{
				cand:     idx,
				payment:  l.id,
				order:    r.id,
				gap:      r.amount.Sub(l.amount).Abs(),
				leftPos:  li,
				rightPos: rightPos[r.id],
			})
		}
	}

	// One order per payment: smallest gap, then oldest order.
	bestForPayment := make(map[string]pair)
	for _, p := range pairs {
		cur, ok := bestForPayment[p.payment]
		if !ok || p.gap.LessThan(cur.gap) || (p.gap.Equal(cur.gap) && p.rightPos < cur.rightPos) {
			bestForPayment[p.payment] = p
		}
	}

	// One payment per order: smallest gap, then oldest payment.
	bestForOrder := make(map[string]pair)
	for _, p := range bestForPayment {
		cur, ok := bestForOrder[p.order]
		if !ok || p.gap.LessThan(cur.gap) || (p.gap.Equal(cur.gap) && p.leftPos < cur.leftPos) {
			bestForOrder[p.order] = p
		}
	}

	picked := make([]int, 0, len(bestForOrder))
	for _, p := range bestForOrder {
		picked = append(picked, p.cand)
	}
	sort.Ints(picked)
	return picked
}

// assignRanks sorts a side by (key, date, amount) and numbers each entry
// 1, 2, ... within its (key, amount) group.
func assignRanks(side []*rankedSide) {
	sort.SliceStable(side, func(i, j int) bool {
		a, b := side[i], side[j]
		if a.key != b.key {
			return a.key < b.key
		}
		if !a.date.Equal(b.date) {
			return a.date.Before(b.date)
		}
		return a.amount.LessThan(b.amount)
	})

	counters := make(map[string]int)
	for _, s := range side {
		group := s.key + "\x00" + s.amount.String()
		counters[group]++
		s.rank = counters[group]
	}
}
