// Package reporter renders reconciliation results.
//
// Supported output formats:
//   - Console: human-readable summary for terminal display
//   - JSON: structured data format for programmatic consumption
//   - CSV: the reconciled table, one row per pair or Heavy check payment
//   - XLSX: a workbook with the reconciled table, the unmatched orders and the summary
//
// The reconciled table lays out every row as the payment columns, in input
// order, followed by the order columns, in input order, then motif, category
// and account_mismatch.
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatCSV})
//	if err != nil {
//		return err
//	}
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// Appended columns of the reconciled table
const (
	ColumnMotif           = "motif"
	ColumnCategory        = "category"
	ColumnAccountMismatch = "account_mismatch"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format cannot be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeRecords         bool `json:"include_records"`
	IncludeUnmatchedOrders bool `json:"include_unmatched_orders"`
	IncludeProcessingStats bool `json:"include_processing_stats"`

	// MaxListItems caps the lists printed by the console format
	MaxListItems int `json:"max_list_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                 FormatConsole,
		IncludeRecords:         true,
		IncludeUnmatchedOrders: true,
		IncludeProcessingStats: true,
		MaxListItems:           10,
		CSVDelimiter:           ',',
		CSVHeaders:             true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}
	if c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r' {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport generates a report from reconciliation results and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// Header returns the column layout of the reconciled table
func Header(result *reconciler.Result) []string {
	header := make([]string, 0, len(result.PaymentColumns)+len(result.OrderColumns)+3)
	header = append(header, result.PaymentColumns...)
	header = append(header, result.OrderColumns...)
	return append(header, ColumnMotif, ColumnCategory, ColumnAccountMismatch)
}

// Row returns the cells of one reconciled record, aligned with Header.
// Heavy check rows leave the order cells, the motif and the mismatch flag empty.
func Row(result *reconciler.Result, record *models.ReconciledRecord) []string {
	row := make([]string, 0, len(result.PaymentColumns)+len(result.OrderColumns)+3)
	for _, col := range result.PaymentColumns {
		row = append(row, record.Payment.Cell(col, result.PaymentRoles))
	}
	for _, col := range result.OrderColumns {
		if record.Order == nil {
			row = append(row, "")
			continue
		}
		row = append(row, record.Order.Cell(col))
	}

	mismatch := ""
	if record.IsMatched() {
		mismatch = strconv.FormatBool(record.AccountMismatch)
	}
	return append(row, record.Motif.String(), record.Category.String(), mismatch)
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, writer io.Writer) error {
	summary := result.Summary
	if summary == nil {
		return fmt.Errorf("reconciliation result has no summary")
	}

	// Report header
	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Run:                 %s\n", result.RunID)
	fmt.Fprintf(writer, "Entity:              %s\n", result.Entity)
	if result.PaymentType != "" {
		fmt.Fprintf(writer, "Payment type:        %s\n", result.PaymentType)
	}
	fmt.Fprintf(writer, "Generated:           %s\n", result.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", summary.ProcessingDuration)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummaryTable(summary, writer)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== FINANCIAL SUMMARY ===\n")
	fmt.Fprintf(writer, "Matched Amount:   %s\n", summary.MatchedAmount.StringFixed(2))
	fmt.Fprintf(writer, "Unmatched Amount: %s\n", summary.UnmatchedAmount.StringFixed(2))
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== ROWS BY CATEGORY ===\n")
	for _, category := range []models.Category{models.CategoryProposition, models.CategoryLightCheck, models.CategoryHeavyCheck} {
		fmt.Fprintf(writer, "%-12s %d\n", category+":", summary.RowsByCategory[category])
	}
	fmt.Fprintf(writer, "Account mismatches: %d\n\n", summary.AccountMismatches)

	if len(summary.RowsByMotif) > 0 {
		fmt.Fprintf(writer, "=== ROWS BY MOTIF ===\n")
		rg.printCounts(motifCounts(summary.RowsByMotif), writer)
		fmt.Fprintf(writer, "\n")
	}

	if len(summary.RowsBySegment) > 1 {
		fmt.Fprintf(writer, "=== ROWS BY SEGMENT ===\n")
		rg.printCounts(summary.RowsBySegment, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeRecords {
		if heavy := heavyChecks(result.Records); len(heavy) > 0 {
			fmt.Fprintf(writer, "=== HEAVY CHECK PAYMENTS ===\n")
			rg.printPaymentList(heavy, writer)
			fmt.Fprintf(writer, "\n")
		}
	}

	if rg.config.IncludeUnmatchedOrders && len(result.UnmatchedOrders) > 0 {
		fmt.Fprintf(writer, "=== UNMATCHED ORDERS ===\n")
		rg.printOrderList(result.UnmatchedOrders, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		fmt.Fprintf(writer, "=== PROCESSING STATISTICS ===\n")
		rg.printProcessingStats(result.ProcessingStats, writer)
	}

	return nil
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(rg.filterResultForOutput(result))
}

// generateCSVReport writes the reconciled table
func (rg *ReportGenerator) generateCSVReport(result *reconciler.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(Header(result)); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, record := range result.Records {
		if err := csvWriter.Write(Row(result, record)); err != nil {
			return fmt.Errorf("failed to write record of payment %s: %w", record.Payment.ID, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// WriteUnmatchedOrders writes the orders left unmatched as CSV, in the order column layout
func (rg *ReportGenerator) WriteUnmatchedOrders(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(result.OrderColumns); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, o := range result.UnmatchedOrders {
		row := make([]string, len(result.OrderColumns))
		for i, col := range result.OrderColumns {
			row[i] = o.Cell(col)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write unmatched order %s: %w", o.ID, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummaryTable(summary *reconciler.ResultSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Payments:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.TotalPayments)
	fmt.Fprintf(writer, "  Matched:   %d (%.1f%%)\n",
		summary.MatchedPayments,
		rg.calculatePercentage(summary.MatchedPayments, summary.TotalPayments))
	fmt.Fprintf(writer, "  Unmatched: %d (%.1f%%)\n",
		summary.UnmatchedPayments,
		rg.calculatePercentage(summary.UnmatchedPayments, summary.TotalPayments))

	fmt.Fprintf(writer, "\nOrders:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.TotalOrders)
	fmt.Fprintf(writer, "  Matched:   %d (%.1f%%)\n",
		summary.MatchedOrders,
		rg.calculatePercentage(summary.MatchedOrders, summary.TotalOrders))
	fmt.Fprintf(writer, "  Unmatched: %d (%.1f%%)\n",
		summary.UnmatchedOrders,
		rg.calculatePercentage(summary.UnmatchedOrders, summary.TotalOrders))
}

// printCounts prints the counts sorted by key
func (rg *ReportGenerator) printCounts(counts map[string]int, writer io.Writer) {
	keys := sortedKeys(counts)
	width := 0
	for _, k := range keys {
		if len(k) > width {
			width = len(k)
		}
	}

	for _, k := range keys {
		fmt.Fprintf(writer, "%-*s %d\n", width+1, k+":", counts[k])
	}
}

func (rg *ReportGenerator) printPaymentList(records []*models.ReconciledRecord, writer io.Writer) {
	fmt.Fprintf(writer, "Total Heavy Check Payments: %d\n\n", len(records))
	for i, r := range records {
		if rg.config.MaxListItems > 0 && i >= rg.config.MaxListItems {
			fmt.Fprintf(writer, "  ... and %d more\n", len(records)-i)
			break
		}
		fmt.Fprintf(writer, "  %d. ID: %s, Amount: %s, Account: %s, Date: %s\n",
			i+1,
			r.Payment.ID,
			r.Payment.Amount.StringFixed(2),
			r.Payment.Account,
			r.Payment.Date.Format(models.DateLayout))
	}
}

func (rg *ReportGenerator) printOrderList(orders []*models.Order, writer io.Writer) {
	fmt.Fprintf(writer, "Total Unmatched Orders: %d\n\n", len(orders))
	for i, o := range orders {
		if rg.config.MaxListItems > 0 && i >= rg.config.MaxListItems {
			fmt.Fprintf(writer, "  ... and %d more\n", len(orders)-i)
			break
		}
		fmt.Fprintf(writer, "  %d. ID: %s, Amount: %s, Subscriber: %s, Product: %s, Created: %s\n",
			i+1,
			o.ID,
			o.TotalAmount.StringFixed(2),
			o.SubscriberName,
			o.ProductCode,
			o.CreationDate.Format(models.DateLayout))
	}
}

func (rg *ReportGenerator) printProcessingStats(stats *reconciler.ProcessingStats, writer io.Writer) {
	if stats.PaymentParse != nil {
		fmt.Fprintf(writer, "Payments Parsed:      %d (%d errors)\n", stats.PaymentParse.RecordsValid, stats.PaymentParse.ErrorCount())
	}
	if stats.OrderParse != nil {
		fmt.Fprintf(writer, "Orders Parsed:        %d (%d errors)\n", stats.OrderParse.RecordsValid, stats.OrderParse.ErrorCount())
	}
	fmt.Fprintf(writer, "Parsing Time:         %v\n", stats.ParsingTime)
	fmt.Fprintf(writer, "Matching Time:        %v\n", stats.MatchingTime)
}

// Helper methods

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

// jsonRow is one reconciled record keyed by column, in the reconciled table layout
type jsonRow struct {
	Columns []string          `json:"-"`
	Cells   map[string]string `json:"-"`
}

func (r jsonRow) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.Cells[col])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// jsonRows keys every row by its header. A column present on both sides keeps the payment value.
func jsonRows(result *reconciler.Result) []jsonRow {
	header := Header(result)
	var columns []string
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}

	rows := make([]jsonRow, 0, len(result.Records))
	for _, record := range result.Records {
		cells := make(map[string]string, len(columns))
		for i, v := range Row(result, record) {
			if _, ok := cells[header[i]]; !ok {
				cells[header[i]] = v
			}
		}
		rows = append(rows, jsonRow{Columns: columns, Cells: cells})
	}
	return rows
}

func (rg *ReportGenerator) filterResultForOutput(result *reconciler.Result) map[string]interface{} {
	output := map[string]interface{}{
		"run_id":       result.RunID,
		"entity":       result.Entity,
		"summary":      result.Summary,
		"processed_at": result.ProcessedAt,
	}
	if result.PaymentType != "" {
		output["payment_type"] = result.PaymentType
	}

	if rg.config.IncludeRecords {
		output["columns"] = Header(result)
		output["records"] = jsonRows(result)
	}

	if rg.config.IncludeUnmatchedOrders && result.UnmatchedOrders != nil {
		output["unmatched_orders"] = result.UnmatchedOrders
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		output["processing_stats"] = result.ProcessingStats
	}

	return output
}

func heavyChecks(records []*models.ReconciledRecord) []*models.ReconciledRecord {
	var heavy []*models.ReconciledRecord
	for _, r := range records {
		if !r.IsMatched() {
			heavy = append(heavy, r)
		}
	}
	return heavy
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func motifCounts(byMotif map[models.Motif]int) map[string]int {
	counts := make(map[string]int, len(byMotif))
	for motif, n := range byMotif {
		counts[motif.String()] = n
	}
	return counts
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
