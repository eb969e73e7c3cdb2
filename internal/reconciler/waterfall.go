package reconciler

import (
	"context"
	"strings"

	"waterfall-reconciliation-service/internal/matcher"
	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/pkg/errors"
	"waterfall-reconciliation-service/pkg/logger"
)

// holderField selects the order name a pass matches payer names against
type holderField int

const (
	holderSubscriber holderField = iota
	holderCoSubscriber
)

func (h holderField) name(o *models.Order) string {
	if h == holderCoSubscriber {
		return strings.TrimSpace(o.CoSubscriberName)
	}
	return strings.TrimSpace(o.SubscriberName)
}

func (h holderField) suffix() string {
	if h == holderCoSubscriber {
		return models.CoSubscriberSuffix
	}
	return ""
}

type passKind int

const (
	passBasic passKind = iota
	passMultiSubscriber
	passMultiPayment
	passLightCheckUnique
	passLightCheckPayments
)

// pass is one step of the waterfall, run over every account partition
type pass struct {
	name   string
	kind   passKind
	holder holderField
}

// waterfallPasses lists the passes in execution order
var waterfallPasses = []pass{
	{name: "basic", kind: passBasic, holder: holderSubscriber},
	{name: "basic_cosubscriber", kind: passBasic, holder: holderCoSubscriber},
	{name: "multi_subscriber", kind: passMultiSubscriber, holder: holderSubscriber},
	{name: "multi_payment", kind: passMultiPayment, holder: holderSubscriber},
	{name: "light_check_unique", kind: passLightCheckUnique, holder: holderSubscriber},
	{name: "light_check_payments", kind: passLightCheckPayments, holder: holderSubscriber},
}

// PassCount is the number of passes of one segment run
func PassCount() int {
	return len(waterfallPasses)
}

// Match is a payment paired with an order by one stage
type Match struct {
	Payment *models.Payment
	Order   *models.Order
	Motif   models.Motif
}

// Waterfall runs the ordered matching passes over a pool. It holds no run
// state: every call to Run works on the pool it is given.
type Waterfall struct {
	config      *Config
	threshold   matcher.Threshold
	spanRule    matcher.SpanRule
	rounds      int
	scorer      *matcher.Scorer
	words       *matcher.WordMatcher
	nameColumns []string
	logger      logger.Logger
}

// NewWaterfall creates a waterfall trying the payer name columns in the given order
func NewWaterfall(config *Config, nameColumns []string, log logger.Logger) *Waterfall {
	return &Waterfall{
		config:      config,
		threshold:   config.Matching.AmountThreshold,
		spanRule:    config.Matching.SpanRule,
		rounds:      config.Matching.LightCheckRounds,
		scorer:      matcher.NewScorer(config.Matching),
		words:       matcher.NewWordMatcher(config.Matching),
		nameColumns: append([]string(nil), nameColumns...),
		logger:      logger.OrGlobal(log).WithComponent("waterfall"),
	}
}

// SegmentResult holds the rows matched in one segment and what is left of the pool
type SegmentResult struct {
	Segment   string
	Records   []*models.ReconciledRecord
	Remaining Pool
}

// Run executes every pass once, in order, over pool. Each pass sees the pool
// exactly as the previous one left it. An empty side makes every pass a no-op.
func (w *Waterfall) Run(ctx context.Context, pool Pool, segment Segment, progress *logger.ProgressTracker) (*SegmentResult, error) {
	result := &SegmentResult{Segment: segment.Name}

	for _, p := range waterfallPasses {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "waterfall "+p.name, err)
		}

		before := len(pool.Payments)
		var records []*models.ReconciledRecord
		if !pool.IsEmpty() {
			pool, records = w.runPass(pool, p, segment.WindowDays)
		}
		for _, r := range records {
			r.Segment = segment.Name
		}
		result.Records = append(result.Records, records...)

		fields := logger.Fields{
			"segment":            segment.Name,
			"pass":               p.name,
			"rows_matched":       len(records),
			"payments_consumed":  before - len(pool.Payments),
			"payments_remaining": len(pool.Payments),
			"orders_remaining":   len(pool.Orders),
		}
		w.logger.WithFields(fields).Debug("Pass completed")
		if progress != nil {
			progress.Step(segment.Name+"/"+p.name, fields)
		}
	}

	result.Remaining = pool
	return result, nil
}

// runPass runs p over every account partition. Within a partition the orders
// of the account's own product and the other orders are matched separately,
// in the configured precedence, and matches against other products are
// flagged as account mismatches.
func (w *Waterfall) runPass(pool Pool, p pass, windowDays int) (Pool, []*models.ReconciledRecord) {
	accounts, byAccount := accountPartitions(pool.Payments)
	usedPayments := make(map[string]struct{})
	usedOrders := make(map[string]struct{})
	var records []*models.ReconciledRecord

	for _, account := range accounts {
		payments := byAccount[account]
		same, other := splitByProduct(withoutOrders(pool.Orders, usedOrders), account)
		subsets := [][]*models.Order{same, other}
		if w.config.PartitionOrder == PartitionOtherFirst {
			subsets = [][]*models.Order{other, same}
		}

		for _, orders := range subsets {
			if len(payments) == 0 || len(orders) == 0 {
				continue
			}
			mismatch := productsDiffer(payments, orders)
			for _, m := range w.runStages(p, Pool{Payments: payments, Orders: orders}, windowDays) {
				usedPayments[m.Payment.ID] = struct{}{}
				usedOrders[m.Order.ID] = struct{}{}
				records = append(records, &models.ReconciledRecord{
					Payment:         m.Payment,
					Order:           m.Order,
					Motif:           m.Motif,
					Category:        m.Motif.Category(),
					AccountMismatch: mismatch,
				})
			}
			payments = withoutPayments(payments, usedPayments)
		}
	}

	return pool.Without(usedPayments, usedOrders), records
}

// runStages dispatches a pass to its stages over one partition subset
func (w *Waterfall) runStages(p pass, pool Pool, windowDays int) []Match {
	s := newStage(pool)
	suffix := p.holder.suffix()

	switch p.kind {
	case passBasic:
		w.matchUnique(s, p.holder, models.MotifUniquePayment.WithSuffix(suffix), false)
		w.matchPaymentsToOrder(s, p.holder, models.MotifPaymentsToOneOrder.WithSuffix(suffix), w.config.NToOneLadder(windowDays), false)
		w.matchPaymentToOrders(s, p.holder, models.MotifPaymentToOrders.WithSuffix(suffix), w.config.OneToNLadder(windowDays))
	case passMultiSubscriber:
		w.matchSplit(s, models.MotifMultiSubscriber, true)
	case passMultiPayment:
		w.matchSplit(s, models.MotifMultiPayment, false)
	case passLightCheckUnique:
		w.matchUnique(s, p.holder, models.MotifLightCheckUnique, true)
	case passLightCheckPayments:
		w.matchPaymentsToOrder(s, p.holder, models.MotifLightCheckPayments, w.config.NToOneLadder(windowDays), true)
	}

	if len(s.matches) > 0 {
		w.logger.WithFields(logger.Fields{
			"pass":    p.name,
			"matches": len(s.matches),
		}).Debug("Stage matches accepted")
	}
	return s.matches
}

// matchUnique pairs raw payments with raw orders, one payer name column at a time
func (w *Waterfall) matchUnique(s *stage, holder holderField, motif models.Motif, light bool) {
	for _, col := range w.nameColumns {
		if s.isEmpty() {
			return
		}
		rows := matcher.IntervalJoin(paymentEntries(s.payments, col), orderEntries(s.orders, holder), w.threshold, w.spanRule)
		for _, c := range w.accept(matcher.Candidates(rows), light) {
			s.take(c.Payment.Members, c.Order.Members, motif)
		}
		s.commit()
	}
}

// matchPaymentsToOrder aggregates same-payer payments over each window of the
// ladder and pairs the aggregates with raw orders.
func (w *Waterfall) matchPaymentsToOrder(s *stage, holder holderField, motif models.Motif, windows []int, light bool) {
	for _, col := range w.nameColumns {
		for _, days := range windows {
			if s.isEmpty() {
				return
			}
			aggregates := matcher.AggregateByDate(paymentRecords(s.payments, col), days)
			entries := make([]*matcher.PaymentEntry, 0, len(aggregates))
			for _, a := range aggregates {
				entries = append(entries, matcher.PaymentEntryFromAggregate(a, s.paymentByID[a.IDs[0]].Account))
			}

			rows := matcher.IntervalJoin(entries, orderEntries(s.orders, holder), w.threshold, w.spanRule)
			for _, c := range w.accept(matcher.Candidates(rows), light) {
				s.take(c.Payment.Members, c.Order.Members, motif)
			}
			s.commit()
		}
	}
}

// matchPaymentToOrders aggregates same-holder orders over each window of the
// ladder and pairs raw payments with the aggregates.
func (w *Waterfall) matchPaymentToOrders(s *stage, holder holderField, motif models.Motif, windows []int) {
	for _, days := range windows {
		for _, col := range w.nameColumns {
			if s.isEmpty() {
				return
			}
			aggregates := matcher.AggregateByDate(orderRecords(s.orders, holder), days)
			entries := make([]*matcher.OrderEntry, 0, len(aggregates))
			for _, a := range aggregates {
				entries = append(entries, matcher.OrderEntryFromAggregate(a, s.orderByID))
			}

			rows := matcher.IntervalJoin(paymentEntries(s.payments, col), entries, w.threshold, w.spanRule)
			for _, c := range w.accept(matcher.Candidates(rows), false) {
				s.take(c.Payment.Members, c.Order.Members, motif)
			}
			s.commit()
		}
	}
}

// matchSplit sums several payments back to one order. Joint orders are seen
// through each holder; otherwise every order is seen through its subscriber.
func (w *Waterfall) matchSplit(s *stage, motif models.Motif, joint bool) {
	if s.isEmpty() {
		return
	}

	var holders []*matcher.OrderEntry
	for _, o := range s.orders {
		if joint {
			holders = append(holders, matcher.HolderEntries(o)...)
		} else if name := holderSubscriber.name(o); name != "" {
			holders = append(holders, matcher.NewOrderEntry(o, name))
		}
	}

	payments := paymentEntries(s.payments, w.nameColumns...)
	for _, g := range matcher.SplitAndSum(payments, holders, w.scorer, w.threshold, w.spanRule) {
		s.take(g.PaymentIDs(), g.Order.Members, motif)
	}
	s.commit()
}

// accept applies the name test of the stage and resolves duplicates
func (w *Waterfall) accept(candidates []matcher.Candidate, light bool) []matcher.Candidate {
	if light {
		return matcher.ResolveInRounds(matcher.FilterBySharedWord(candidates, w.words), w.threshold, w.rounds)
	}
	return matcher.ResolveDuplicates(matcher.FilterByName(candidates, w.scorer), w.threshold)
}

// stage tracks the pool of one partition subset while its stages consume it
type stage struct {
	payments    []*models.Payment
	orders      []*models.Order
	paymentByID map[string]*models.Payment
	orderByID   map[string]*models.Order
	matches     []Match
}

func newStage(pool Pool) *stage {
	s := &stage{
		payments:    pool.Payments,
		orders:      pool.Orders,
		paymentByID: make(map[string]*models.Payment, len(pool.Payments)),
		orderByID:   make(map[string]*models.Order, len(pool.Orders)),
	}
	for _, p := range pool.Payments {
		s.paymentByID[p.ID] = p
	}
	for _, o := range pool.Orders {
		s.orderByID[o.ID] = o
	}
	return s
}

func (s *stage) isEmpty() bool {
	return len(s.payments) == 0 || len(s.orders) == 0
}

// take records every (payment, order) pair of a group and removes its ids.
// A group touching an id already taken is skipped whole.
func (s *stage) take(paymentIDs, orderIDs []string, motif models.Motif) bool {
	for _, id := range paymentIDs {
		if _, ok := s.paymentByID[id]; !ok {
			return false
		}
	}
	for _, id := range orderIDs {
		if _, ok := s.orderByID[id]; !ok {
			return false
		}
	}

	for _, pid := range paymentIDs {
		for _, oid := range orderIDs {
			s.matches = append(s.matches, Match{Payment: s.paymentByID[pid], Order: s.orderByID[oid], Motif: motif})
		}
	}
	for _, id := range paymentIDs {
		delete(s.paymentByID, id)
	}
	for _, id := range orderIDs {
		delete(s.orderByID, id)
	}
	return true
}

// commit drops taken ids from the ordered views
func (s *stage) commit() {
	payments := s.payments[:0:0]
	for _, p := range s.payments {
		if _, ok := s.paymentByID[p.ID]; ok {
			payments = append(payments, p)
		}
	}
	orders := s.orders[:0:0]
	for _, o := range s.orders {
		if _, ok := s.orderByID[o.ID]; ok {
			orders = append(orders, o)
		}
	}
	s.payments, s.orders = payments, orders
}

func paymentEntries(payments []*models.Payment, nameColumns ...string) []*matcher.PaymentEntry {
	entries := make([]*matcher.PaymentEntry, len(payments))
	for i, p := range payments {
		entries[i] = matcher.NewPaymentEntry(p, nameColumns...)
	}
	return entries
}

// orderEntries skips orders without a name for the holder field
func orderEntries(orders []*models.Order, holder holderField) []*matcher.OrderEntry {
	entries := make([]*matcher.OrderEntry, 0, len(orders))
	for _, o := range orders {
		if name := holder.name(o); name != "" {
			entries = append(entries, matcher.NewOrderEntry(o, name))
		}
	}
	return entries
}

func paymentRecords(payments []*models.Payment, column string) []matcher.Record {
	records := make([]matcher.Record, len(payments))
	for i, p := range payments {
		records[i] = matcher.Record{ID: p.ID, Client: p.Name(column), Date: p.Date, Amount: p.Amount}
	}
	return records
}

func orderRecords(orders []*models.Order, holder holderField) []matcher.Record {
	records := make([]matcher.Record, len(orders))
	for i, o := range orders {
		records[i] = matcher.Record{ID: o.ID, Client: holder.name(o), Date: o.CreationDate, Amount: o.TotalAmount}
	}
	return records
}
