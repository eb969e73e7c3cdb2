// Package reconciler runs the payment/order matching waterfall.
//
// This package coordinates a reconciliation run, including:
//   - Input validation (required columns, unique ids, well-formed windows)
//   - Order segmentation by share type and window derivation
//   - The waterfall passes over every account partition
//   - Heavy check assignment of the payments left unmatched
//   - Result and summary generation
//
// The ReconciliationOrchestrator works on in-memory tables; the
// ReconciliationService adds file loading on top of it.
//
// Example usage:
//
//	orchestrator, err := reconciler.NewReconciliationOrchestrator(reconciler.ABCDConfig(), nil)
//	if err != nil {
//		return err
//	}
//	orchestrator.AddProgressCallback(func(progress *reconciler.ReconciliationProgress) {
//		fmt.Printf("Progress: %.1f%% - %s\n", progress.PercentComplete, progress.CurrentStep)
//	})
//
//	result, err := orchestrator.Reconcile(ctx, payments, orders)
package reconciler

import (
	"context"
	"sort"
	"sync"
	"time"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/pkg/errors"
	"waterfall-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// ReconciliationOrchestrator runs the waterfall over one (entity, payment
// type) batch. Segments run in configuration order; the payment pool left by
// one segment is the input of the next.
type ReconciliationOrchestrator struct {
	config       *Config
	preprocessor *DataPreprocessor
	logger       logger.Logger

	// Progress tracking
	progressCallbacks []ProgressCallback
	currentProgress   *ReconciliationProgress
	progressMutex     sync.RWMutex
}

// ReconciliationProgress tracks the progress of a run
type ReconciliationProgress struct {
	RunID           string        `json:"run_id"`
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`

	RowsMatched       int `json:"rows_matched"`
	PaymentsRemaining int `json:"payments_remaining"`
	OrdersRemaining   int `json:"orders_remaining"`
}

// ProgressCallback is called to report reconciliation progress
type ProgressCallback func(*ReconciliationProgress)

// NewReconciliationOrchestrator creates an orchestrator. A nil logger falls back to the global one.
func NewReconciliationOrchestrator(config *Config, log logger.Logger) (*ReconciliationOrchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"reconciler_config",
			config.Entity,
			err,
		).WithSuggestion("Check the entity profile: thresholds, segments and aggregation windows")
	}

	preprocessing := DefaultPreprocessingConfig()
	preprocessing.TrimWhitespace = config.NormalizeNames
	preprocessing.NormalizeCase = config.NormalizeNames

	return &ReconciliationOrchestrator{
		config:          config.Clone(),
		preprocessor:    NewDataPreprocessor(preprocessing),
		logger:          logger.OrGlobal(log).WithComponent("reconciliation_orchestrator"),
		currentProgress: &ReconciliationProgress{},
	}, nil
}

// AddProgressCallback adds a progress callback function
func (ro *ReconciliationOrchestrator) AddProgressCallback(callback ProgressCallback) {
	ro.progressCallbacks = append(ro.progressCallbacks, callback)
}

// GetConfiguration returns a copy of the run configuration
func (ro *ReconciliationOrchestrator) GetConfiguration() *Config {
	return ro.config.Clone()
}

// GetProgress returns a snapshot of the current progress
func (ro *ReconciliationOrchestrator) GetProgress() ReconciliationProgress {
	ro.progressMutex.RLock()
	defer ro.progressMutex.RUnlock()
	return *ro.currentProgress
}

// Reconcile validates both tables, runs every segment through the waterfall
// and returns the reconciled rows. Payments still unmatched at the end are
// emitted as Heavy check rows; unmatched orders are returned separately.
func (ro *ReconciliationOrchestrator) Reconcile(ctx context.Context, payments *models.PaymentTable, orders *models.OrderTable) (*Result, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	log := ro.logger.WithField("run_id", runID)

	nameColumns := ro.config.NameColumns
	if len(nameColumns) == 0 && payments != nil {
		nameColumns = payments.Roles.Names
	}

	if err := ro.preprocessor.ValidateTables(payments, orders, nameColumns); err != nil {
		log.WithError(err).Error("Input validation failed")
		return nil, err
	}

	log.WithFields(logger.Fields{
		"entity":       ro.config.Entity,
		"payment_type": payments.PaymentType,
		"payments":     len(payments.Rows),
		"orders":       len(orders.Rows),
		"name_columns": nameColumns,
		"segments":     len(ro.config.Segments),
	}).Info("Starting reconciliation run")

	totalSteps := len(ro.config.Segments) * PassCount()
	ro.initializeProgress(runID, totalSteps, startTime)
	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "waterfall",
		Total:     int64(totalSteps),
		Logger:    log,
	})

	segmentOrders, unassigned := ro.assignSegments(orders.Rows)
	if len(unassigned) > 0 {
		log.WithField("orders", len(unassigned)).Warn("Orders outside every segment are left unmatched")
	}

	waterfall := NewWaterfall(ro.config, nameColumns, log)
	remaining := ro.preprocessor.PreparePayments(payments.Rows)
	var records []*models.ReconciledRecord
	var unmatchedOrders []*models.Order

	for i, segment := range ro.config.Segments {
		pool := NewPool(remaining, ro.preprocessor.PrepareOrders(segmentOrders[i], segment.WindowDays))
		segmentResult, err := waterfall.Run(ctx, pool, segment, tracker)
		if err != nil {
			tracker.CompleteWithError(err)
			return nil, err
		}

		records = append(records, segmentResult.Records...)
		remaining = segmentResult.Remaining.Payments
		unmatchedOrders = append(unmatchedOrders, segmentResult.Remaining.Orders...)

		ro.updateProgress(segment.Name, (i+1)*PassCount(), len(records), len(remaining), len(segmentResult.Remaining.Orders))
		log.WithFields(logger.Fields{
			"segment":            segment.Name,
			"window_days":        segment.WindowDays,
			"rows_matched":       len(segmentResult.Records),
			"payments_remaining": len(remaining),
			"orders_remaining":   len(segmentResult.Remaining.Orders),
		}).Info("Segment completed")
	}
	unmatchedOrders = append(unmatchedOrders, ro.preprocessor.PrepareOrders(unassigned, 0)...)

	for _, p := range remaining {
		records = append(records, &models.ReconciledRecord{
			Payment:  p,
			Category: models.CategoryHeavyCheck,
		})
	}
	sortRecords(records)
	tracker.Complete()

	result := &Result{
		RunID:           runID,
		Entity:          ro.config.Entity,
		PaymentType:     payments.PaymentType,
		Records:         records,
		UnmatchedOrders: unmatchedOrders,
		PaymentColumns:  append([]string(nil), payments.Columns...),
		OrderColumns:    append([]string(nil), orders.Columns...),
		PaymentRoles:    payments.Roles,
		ProcessedAt:     startTime,
	}
	result.Summary = buildSummary(result, len(payments.Rows), len(orders.Rows), time.Since(startTime))

	log.WithFields(logger.Fields{
		"rows":               len(records),
		"heavy_checks":       result.Summary.RowsByCategory[models.CategoryHeavyCheck],
		"unmatched_orders":   len(unmatchedOrders),
		"account_mismatches": result.Summary.AccountMismatches,
		"duration":           result.Summary.ProcessingDuration.String(),
	}).Info("Reconciliation run completed")

	return result, nil
}

// assignSegments gives every order to the first segment accepting its share
// type. Orders accepted by no segment are returned apart, in input order.
func (ro *ReconciliationOrchestrator) assignSegments(orders []*models.Order) ([][]*models.Order, []*models.Order) {
	bySegment := make([][]*models.Order, len(ro.config.Segments))
	var unassigned []*models.Order
	for _, o := range orders {
		assigned := false
		for i, segment := range ro.config.Segments {
			if segment.Accepts(o.ShareType) {
				bySegment[i] = append(bySegment[i], o)
				assigned = true
				break
			}
		}
		if !assigned {
			unassigned = append(unassigned, o)
		}
	}
	return bySegment, unassigned
}

// sortRecords orders rows by category rank, keeping stage order within a category
func sortRecords(records []*models.ReconciledRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Category.Rank() < records[j].Category.Rank()
	})
}

func (ro *ReconciliationOrchestrator) initializeProgress(runID string, totalSteps int, startTime time.Time) {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()

	ro.currentProgress = &ReconciliationProgress{
		RunID:      runID,
		TotalSteps: totalSteps,
		StartTime:  startTime,
	}
}

func (ro *ReconciliationOrchestrator) updateProgress(step string, completed, rowsMatched, paymentsRemaining, ordersRemaining int) {
	ro.progressMutex.Lock()
	ro.currentProgress.CurrentStep = step
	ro.currentProgress.CompletedSteps = completed
	ro.currentProgress.ElapsedTime = time.Since(ro.currentProgress.StartTime)
	ro.currentProgress.RowsMatched = rowsMatched
	ro.currentProgress.PaymentsRemaining = paymentsRemaining
	ro.currentProgress.OrdersRemaining = ordersRemaining
	if ro.currentProgress.TotalSteps > 0 {
		ro.currentProgress.PercentComplete = float64(completed) / float64(ro.currentProgress.TotalSteps) * 100
	}
	snapshot := *ro.currentProgress
	ro.progressMutex.Unlock()

	for _, callback := range ro.progressCallbacks {
		callback(&snapshot)
	}
}
