package reporter

import (
	"fmt"
	"io"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/internal/reconciler"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names
const (
	SheetReconciled      = "Reconciled"
	SheetUnmatchedOrders = "Unmatched orders"
	SheetSummary         = "Summary"
)

// generateXLSXReport writes a workbook holding the reconciled table, the
// unmatched orders and the run summary.
func (rg *ReportGenerator) generateXLSXReport(result *reconciler.Result, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetReconciled); err != nil {
		return fmt.Errorf("failed to name sheet %s: %w", SheetReconciled, err)
	}

	rows := make([][]string, 0, len(result.Records)+1)
	rows = append(rows, Header(result))
	for _, record := range result.Records {
		rows = append(rows, Row(result, record))
	}
	if err := writeSheet(f, SheetReconciled, rows); err != nil {
		return err
	}

	if rg.config.IncludeUnmatchedOrders {
		if _, err := f.NewSheet(SheetUnmatchedOrders); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", SheetUnmatchedOrders, err)
		}
		rows = [][]string{result.OrderColumns}
		for _, o := range result.UnmatchedOrders {
			row := make([]string, len(result.OrderColumns))
			for i, col := range result.OrderColumns {
				row[i] = o.Cell(col)
			}
			rows = append(rows, row)
		}
		if err := writeSheet(f, SheetUnmatchedOrders, rows); err != nil {
			return err
		}
	}

	if result.Summary != nil {
		if _, err := f.NewSheet(SheetSummary); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", SheetSummary, err)
		}
		if err := writeSheet(f, SheetSummary, summaryRows(result)); err != nil {
			return err
		}
	}

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of sheet %s: %w", i+1, sheet, err)
		}
	}
	return nil
}

func summaryRows(result *reconciler.Result) [][]string {
	s := result.Summary
	rows := [][]string{
		{"run_id", result.RunID},
		{"entity", result.Entity},
		{"payment_type", result.PaymentType},
		{"total_payments", fmt.Sprint(s.TotalPayments)},
		{"matched_payments", fmt.Sprint(s.MatchedPayments)},
		{"unmatched_payments", fmt.Sprint(s.UnmatchedPayments)},
		{"total_orders", fmt.Sprint(s.TotalOrders)},
		{"matched_orders", fmt.Sprint(s.MatchedOrders)},
		{"unmatched_orders", fmt.Sprint(s.UnmatchedOrders)},
		{"account_mismatches", fmt.Sprint(s.AccountMismatches)},
		{"matched_amount", s.MatchedAmount.StringFixed(2)},
		{"unmatched_amount", s.UnmatchedAmount.StringFixed(2)},
		{"processing_duration", s.ProcessingDuration.String()},
	}
	for _, category := range []models.Category{models.CategoryProposition, models.CategoryLightCheck, models.CategoryHeavyCheck} {
		rows = append(rows, []string{"category:" + category.String(), fmt.Sprint(s.RowsByCategory[category])})
	}
	counts := motifCounts(s.RowsByMotif)
	for _, motif := range sortedKeys(counts) {
		rows = append(rows, []string{"motif:" + motif, fmt.Sprint(counts[motif])})
	}
	for _, segment := range sortedKeys(s.RowsBySegment) {
		rows = append(rows, []string{"segment:" + segment, fmt.Sprint(s.RowsBySegment[segment])})
	}
	return rows
}
