package reconciler

import (
	"strings"
	"time"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/pkg/errors"
)

// Table names used in validation errors
const (
	PaymentsTable = "payments"
	OrdersTable   = "orders"
)

// DataPreprocessor validates the input tables of a run and prepares the
// working copies of their rows. Input rows are never modified.
type DataPreprocessor struct {
	config *PreprocessingConfig
	stats  PreprocessingStats
}

// PreprocessingConfig contains configuration for data preprocessing
type PreprocessingConfig struct {
	// String normalization options, applied to payer and holder names
	TrimWhitespace bool
	NormalizeCase  bool

	// Validation options
	ValidateIDs     bool
	ValidateWindows bool
}

// DefaultPreprocessingConfig returns a default preprocessing configuration
func DefaultPreprocessingConfig() *PreprocessingConfig {
	return &PreprocessingConfig{
		TrimWhitespace:  true,
		NormalizeCase:   true,
		ValidateIDs:     true,
		ValidateWindows: true,
	}
}

// NewDataPreprocessor creates a new data preprocessor
func NewDataPreprocessor(config *PreprocessingConfig) *DataPreprocessor {
	if config == nil {
		config = DefaultPreprocessingConfig()
	}

	return &DataPreprocessor{
		config: config,
	}
}

// ValidateTables checks that both tables carry the columns the run needs and
// that their rows are usable. A missing column fails before any row is looked at.
func (dp *DataPreprocessor) ValidateTables(payments *models.PaymentTable, orders *models.OrderTable, nameColumns []string) error {
	if payments == nil {
		return errors.ValidationError(errors.CodeMissingField, PaymentsTable, nil, nil)
	}
	if orders == nil {
		return errors.ValidationError(errors.CodeMissingField, OrdersTable, nil, nil)
	}

	required := append(payments.Roles.Required(), nameColumns...)
	for _, col := range required {
		if !models.HasColumn(payments.Columns, col) {
			return errors.MissingColumnError(PaymentsTable, col)
		}
	}
	for _, col := range models.RequiredOrderColumns() {
		if !models.HasColumn(orders.Columns, col) {
			return errors.MissingColumnError(OrdersTable, col)
		}
	}

	if dp.config.ValidateIDs {
		seen := make(map[string]struct{}, len(payments.Rows))
		for _, p := range payments.Rows {
			if _, dup := seen[p.ID]; dup {
				return errors.RecordError(errors.CodeDuplicateID, PaymentsTable, p.ID, payments.Roles.ID, p.ID, nil)
			}
			seen[p.ID] = struct{}{}
		}

		seen = make(map[string]struct{}, len(orders.Rows))
		for _, o := range orders.Rows {
			if _, dup := seen[o.ID]; dup {
				return errors.RecordError(errors.CodeDuplicateID, OrdersTable, o.ID, models.OrderIDColumn, o.ID, nil)
			}
			seen[o.ID] = struct{}{}
		}
	}

	if dp.config.ValidateWindows {
		for _, o := range orders.Rows {
			if err := validateWindow(o); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateWindow rejects windows with a single bound or an end before the start
func validateWindow(o *models.Order) error {
	hasStart, hasEnd := !o.StartDate.IsZero(), !o.EndDate.IsZero()
	switch {
	case hasStart != hasEnd:
		field := models.OrderEndColumn
		if !hasStart {
			field = models.OrderStartColumn
		}
		return errors.RecordError(errors.CodeMalformedWindow, OrdersTable, o.ID, field, "only one bound is set", nil)
	case hasStart && o.EndDate.Before(o.StartDate):
		window := o.StartDate.Format(models.DateLayout) + " > " + o.EndDate.Format(models.DateLayout)
		return errors.RecordError(errors.CodeMalformedWindow, OrdersTable, o.ID, models.OrderEndColumn, window, nil)
	}
	return nil
}

// PreparePayments returns normalized copies of the payments
func (dp *DataPreprocessor) PreparePayments(payments []*models.Payment) []*models.Payment {
	start := time.Now()
	prepared := make([]*models.Payment, len(payments))
	for i, p := range payments {
		clone := *p
		clone.Names = make(map[string]string, len(p.Names))
		for col, name := range p.Names {
			clone.Names[col] = dp.normalizeString(name)
		}
		clone.Account = strings.TrimSpace(p.Account)
		prepared[i] = &clone
	}
	dp.stats.PaymentsPrepared += len(prepared)
	dp.stats.ProcessingTime += time.Since(start)
	return prepared
}

// PrepareOrders returns normalized copies of the orders. Orders without
// explicit bounds get the window [creation, creation + windowDays].
func (dp *DataPreprocessor) PrepareOrders(orders []*models.Order, windowDays int) []*models.Order {
	start := time.Now()
	prepared := make([]*models.Order, len(orders))
	for i, o := range orders {
		clone := *o
		if !o.HasWindow() {
			clone = *o.WithWindow(windowDays)
			dp.stats.WindowsDerived++
		}
		clone.SubscriberName = dp.normalizeString(o.SubscriberName)
		clone.CoSubscriberName = dp.normalizeString(o.CoSubscriberName)
		clone.ProductCode = strings.TrimSpace(o.ProductCode)
		prepared[i] = &clone
	}
	dp.stats.OrdersPrepared += len(prepared)
	dp.stats.ProcessingTime += time.Since(start)
	return prepared
}

// normalizeString applies string normalization rules
func (dp *DataPreprocessor) normalizeString(s string) string {
	result := s

	if dp.config.TrimWhitespace {
		result = strings.Join(strings.Fields(result), " ")
	}

	if dp.config.NormalizeCase {
		result = strings.ToUpper(result)
	}

	return result
}

// GetStatistics returns preprocessing statistics
func (dp *DataPreprocessor) GetStatistics() PreprocessingStats {
	stats := dp.stats
	stats.Config = dp.config
	return stats
}

// PreprocessingStats contains statistics about preprocessing operations
type PreprocessingStats struct {
	Config           *PreprocessingConfig `json:"config"`
	PaymentsPrepared int                  `json:"payments_prepared"`
	OrdersPrepared   int                  `json:"orders_prepared"`
	WindowsDerived   int                  `json:"windows_derived"`
	ProcessingTime   time.Duration        `json:"processing_time"`
}
