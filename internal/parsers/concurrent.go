package parsers

import (
	"context"
	"sync"

	"waterfall-reconciliation-service/internal/models"
)

// TableSet is the pair of tables of one reconciliation run
type TableSet struct {
	Payments     *models.PaymentTable
	Orders       *models.OrderTable
	PaymentStats *ParseStats
	OrderStats   *ParseStats
}

// TableLoader reads the payment and order files of a run concurrently.
// Both reads share ctx: the first failure cancels the other one.
type TableLoader struct {
	payments *PaymentParser
	orders   *OrderParser
}

// NewTableLoader creates a loader from the two parser configurations
func NewTableLoader(paymentConfig *PaymentParserConfig, orderConfig *OrderParserConfig) (*TableLoader, error) {
	payments, err := NewPaymentParser(paymentConfig)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderParser(orderConfig)
	if err != nil {
		return nil, err
	}
	return &TableLoader{payments: payments, orders: orders}, nil
}

// Load parses both files. When both reads fail, the first failure is
// returned; the other one is usually the cancellation it caused.
func (tl *TableLoader) Load(ctx context.Context, paymentsPath, ordersPath string) (*TableSet, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		set      TableSet
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		set.Payments, set.PaymentStats, err = tl.payments.ParsePayments(ctx, paymentsPath)
		if err != nil {
			fail(err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		set.Orders, set.OrderStats, err = tl.orders.ParseOrders(ctx, ordersPath)
		if err != nil {
			fail(err)
		}
	}()
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return &set, nil
}
