package reconciler

import (
	"context"
	"fmt"
	"time"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/internal/parsers"
	"waterfall-reconciliation-service/pkg/errors"
	"waterfall-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// ReconciliationService loads the two input files of a run and hands them to the orchestrator
type ReconciliationService struct {
	loader       *parsers.TableLoader
	orchestrator *ReconciliationOrchestrator
	logger       logger.Logger
}

// ReconciliationRequest names the input files of a run
type ReconciliationRequest struct {
	PaymentsFile string `json:"payments_file"`
	OrdersFile   string `json:"orders_file"`
}

// Validate validates the reconciliation request
func (r *ReconciliationRequest) Validate() error {
	if r.PaymentsFile == "" {
		return fmt.Errorf("payments file path is required")
	}
	if r.OrdersFile == "" {
		return fmt.Errorf("orders file path is required")
	}
	return nil
}

// Result contains the complete results of one run
type Result struct {
	RunID       string `json:"run_id"`
	Entity      string `json:"entity"`
	PaymentType string `json:"payment_type,omitempty"`

	// Records holds one row per reconciled pair plus one Heavy check row per
	// unmatched payment, Proposition rows first and Heavy check rows last.
	Records []*models.ReconciledRecord `json:"records"`

	// UnmatchedOrders is the order pool left after the last segment
	UnmatchedOrders []*models.Order `json:"unmatched_orders,omitempty"`

	// Input headers, in input order, used to lay out reports
	PaymentColumns []string              `json:"payment_columns"`
	OrderColumns   []string              `json:"order_columns"`
	PaymentRoles   models.PaymentColumns `json:"payment_roles"`

	Summary         *ResultSummary   `json:"summary"`
	ProcessingStats *ProcessingStats `json:"processing_stats,omitempty"`
	ProcessedAt     time.Time        `json:"processed_at"`
}

// ResultSummary provides a high-level overview of reconciliation results
type ResultSummary struct {
	RunID  string `json:"run_id"`
	Entity string `json:"entity"`

	// Payment counts
	TotalPayments     int `json:"total_payments"`
	MatchedPayments   int `json:"matched_payments"`
	UnmatchedPayments int `json:"unmatched_payments"`

	// Order counts
	TotalOrders     int `json:"total_orders"`
	MatchedOrders   int `json:"matched_orders"`
	UnmatchedOrders int `json:"unmatched_orders"`

	// Row breakdowns
	RowsByCategory    map[models.Category]int `json:"rows_by_category"`
	RowsByMotif       map[models.Motif]int    `json:"rows_by_motif"`
	RowsBySegment     map[string]int          `json:"rows_by_segment"`
	AccountMismatches int                     `json:"account_mismatches"`

	// Financial summary
	MatchedAmount   decimal.Decimal `json:"matched_amount"`
	UnmatchedAmount decimal.Decimal `json:"unmatched_amount"`

	ProcessingDuration time.Duration `json:"processing_duration"`
}

// MatchRate returns the share of payments reconciled, in percent
func (s *ResultSummary) MatchRate() float64 {
	if s.TotalPayments == 0 {
		return 0
	}
	return float64(s.MatchedPayments) / float64(s.TotalPayments) * 100
}

// ProcessingStats contains file processing statistics
type ProcessingStats struct {
	PaymentParse *parsers.ParseStats `json:"payment_parse,omitempty"`
	OrderParse   *parsers.ParseStats `json:"order_parse,omitempty"`
	ParsingTime  time.Duration       `json:"parsing_time"`
	MatchingTime time.Duration       `json:"matching_time"`
}

// buildSummary counts the rows of a result. Amounts are summed once per
// payment, even when the payment appears on several rows of a 1:N group.
func buildSummary(result *Result, totalPayments, totalOrders int, duration time.Duration) *ResultSummary {
	summary := &ResultSummary{
		RunID:              result.RunID,
		Entity:             result.Entity,
		TotalPayments:      totalPayments,
		TotalOrders:        totalOrders,
		UnmatchedOrders:    len(result.UnmatchedOrders),
		RowsByCategory:     make(map[models.Category]int),
		RowsByMotif:        make(map[models.Motif]int),
		RowsBySegment:      make(map[string]int),
		MatchedAmount:      decimal.Zero,
		UnmatchedAmount:    decimal.Zero,
		ProcessingDuration: duration,
	}

	matchedPayments := make(map[string]struct{})
	matchedOrders := make(map[string]struct{})
	for _, r := range result.Records {
		summary.RowsByCategory[r.Category]++
		if !r.IsMatched() {
			summary.UnmatchedPayments++
			summary.UnmatchedAmount = summary.UnmatchedAmount.Add(r.Payment.Amount)
			continue
		}

		summary.RowsByMotif[r.Motif]++
		summary.RowsBySegment[r.Segment]++
		if r.AccountMismatch {
			summary.AccountMismatches++
		}
		if _, seen := matchedPayments[r.Payment.ID]; !seen {
			matchedPayments[r.Payment.ID] = struct{}{}
			summary.MatchedAmount = summary.MatchedAmount.Add(r.Payment.Amount)
		}
		matchedOrders[r.Order.ID] = struct{}{}
	}
	summary.MatchedPayments = len(matchedPayments)
	summary.MatchedOrders = len(matchedOrders)
	return summary
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	paymentConfig *parsers.PaymentParserConfig,
	orderConfig *parsers.OrderParserConfig,
	config *Config,
	log logger.Logger,
) (*ReconciliationService, error) {

	loader, err := parsers.NewTableLoader(paymentConfig, orderConfig)
	if err != nil {
		return nil, err
	}

	orchestrator, err := NewReconciliationOrchestrator(config, log)
	if err != nil {
		return nil, err
	}

	return &ReconciliationService{
		loader:       loader,
		orchestrator: orchestrator,
		logger:       logger.OrGlobal(log).WithComponent("reconciliation_service"),
	}, nil
}

// Orchestrator returns the orchestrator used by the service, e.g. to register progress callbacks
func (rs *ReconciliationService) Orchestrator() *ReconciliationOrchestrator {
	return rs.orchestrator
}

// GetConfiguration returns the current configuration
func (rs *ReconciliationService) GetConfiguration() *Config {
	return rs.orchestrator.GetConfiguration()
}

// ProcessReconciliation loads both files and runs the waterfall over them
func (rs *ReconciliationService) ProcessReconciliation(ctx context.Context, request *ReconciliationRequest) (*Result, error) {
	if err := request.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "reconciliation_request", request, err).
			WithSuggestion("Provide both --payments and --orders")
	}

	rs.logger.WithFields(logger.Fields{
		"payments_file": request.PaymentsFile,
		"orders_file":   request.OrdersFile,
	}).Info("Loading input tables")

	parseStart := time.Now()
	tables, err := rs.loader.Load(ctx, request.PaymentsFile, request.OrdersFile)
	if err != nil {
		return nil, err
	}
	parsingTime := time.Since(parseStart)

	matchStart := time.Now()
	result, err := rs.orchestrator.Reconcile(ctx, tables.Payments, tables.Orders)
	if err != nil {
		return nil, err
	}

	result.ProcessingStats = &ProcessingStats{
		PaymentParse: tables.PaymentStats,
		OrderParse:   tables.OrderStats,
		ParsingTime:  parsingTime,
		MatchingTime: time.Since(matchStart),
	}
	return result, nil
}
