package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/internal/parsers"
	"waterfall-reconciliation-service/internal/reconciler"

	"github.com/shopspring/decimal"
)

// ValidationResult represents the result of validating a payment/order table pair
type ValidationResult struct {
	PaymentsFile string
	OrdersFile   string
	IsValid      bool
	TableError   error
	PaymentStats *parsers.ParseStats
	OrderStats   *parsers.ParseStats
	Payments     TableSummary
	Orders       TableSummary
	Windows      WindowSummary
}

// TableSummary provides aggregate statistics of one table
type TableSummary struct {
	Records     int
	AmountRange AmountRange
	DateRange   DateRange
	PerAccount  map[string]int
}

// WindowSummary counts how order validity windows are given
type WindowSummary struct {
	Explicit  int
	Derived   int
	JointHeld int
}

// AmountRange represents the range of amounts in the dataset
type AmountRange struct {
	Min   decimal.Decimal
	Max   decimal.Decimal
	Total decimal.Decimal
}

// DateRange represents the range of dates in the dataset
type DateRange struct {
	Min time.Time
	Max time.Time
}

func main() {
	var (
		payments = flag.String("payments", "", "Payment CSV file to validate")
		orders   = flag.String("orders", "", "Order CSV file to validate")
		output   = flag.String("output", "", "Output file for the validation report (optional)")
		samples  = flag.Int("samples", 10, "Number of rejected rows to print per table")
	)
	flag.Parse()

	if *payments == "" || *orders == "" {
		fmt.Println("Table Validator")
		fmt.Println("===============")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  go run data_validator.go -payments=<file> -orders=<file> [options]")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  go run data_validator.go -payments=../payments_sample.csv -orders=../orders_sample.csv")
		fmt.Println("  go run data_validator.go -payments=generated/payments.csv -orders=generated/orders.csv -output=report.txt")
		return
	}

	validator := &DataValidator{Samples: *samples}
	result, err := validator.Validate(context.Background(), *payments, *orders)
	if err != nil {
		log.Fatalf("Cannot read tables: %v", err)
	}

	validator.PrintResult(os.Stdout, result)

	if *output != "" {
		if err := validator.WriteReport(*output, result); err != nil {
			log.Printf("Failed to write report: %v", err)
		} else {
			fmt.Printf("\nValidation report written to: %s\n", *output)
		}
	}

	if !result.IsValid {
		os.Exit(1)
	}
}

// DataValidator reads both tables with the production parsers in lenient
// mode and runs the table checks of a reconciliation on them.
type DataValidator struct {
	Samples int
}

// Validate parses both files and summarizes their content
func (dv *DataValidator) Validate(ctx context.Context, paymentsFile, ordersFile string) (*ValidationResult, error) {
	paymentConfig := parsers.DefaultPaymentParserConfig()
	paymentConfig.SkipInvalidRows = true
	orderConfig := parsers.DefaultOrderParserConfig()
	orderConfig.SkipInvalidRows = true

	loader, err := parsers.NewTableLoader(paymentConfig, orderConfig)
	if err != nil {
		return nil, err
	}
	tables, err := loader.Load(ctx, paymentsFile, ordersFile)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		PaymentsFile: paymentsFile,
		OrdersFile:   ordersFile,
		PaymentStats: tables.PaymentStats,
		OrderStats:   tables.OrderStats,
	}
	result.TableError = reconciler.NewDataPreprocessor(nil).ValidateTables(tables.Payments, tables.Orders, nil)
	result.IsValid = result.TableError == nil && !tables.PaymentStats.HasErrors() && !tables.OrderStats.HasErrors()

	paymentSummary := newTableSummary()
	for _, p := range tables.Payments.Rows {
		paymentSummary.add(p.Amount, p.Date, p.Account)
	}
	result.Payments = paymentSummary

	orderSummary := newTableSummary()
	for _, o := range tables.Orders.Rows {
		orderSummary.add(o.TotalAmount, o.CreationDate, o.ProductCode)
		if o.HasWindow() {
			result.Windows.Explicit++
		} else {
			result.Windows.Derived++
		}
		if o.IsJoint() {
			result.Windows.JointHeld++
		}
	}
	result.Orders = orderSummary

	return result, nil
}

func newTableSummary() TableSummary {
	return TableSummary{PerAccount: make(map[string]int)}
}

func (ts *TableSummary) add(amount decimal.Decimal, date time.Time, account string) {
	if ts.Records == 0 {
		ts.AmountRange = AmountRange{Min: amount, Max: amount, Total: decimal.Zero}
		ts.DateRange = DateRange{Min: date, Max: date}
	}
	ts.Records++
	ts.PerAccount[account]++
	ts.AmountRange.Total = ts.AmountRange.Total.Add(amount)
	if amount.LessThan(ts.AmountRange.Min) {
		ts.AmountRange.Min = amount
	}
	if amount.GreaterThan(ts.AmountRange.Max) {
		ts.AmountRange.Max = amount
	}
	if date.Before(ts.DateRange.Min) {
		ts.DateRange.Min = date
	}
	if date.After(ts.DateRange.Max) {
		ts.DateRange.Max = date
	}
}

// PrintResult writes a human-readable validation report
func (dv *DataValidator) PrintResult(w io.Writer, result *ValidationResult) {
	status := "VALID"
	if !result.IsValid {
		status = "INVALID"
	}
	fmt.Fprintf(w, "Validation: %s\n", status)
	fmt.Fprintf(w, "========================================\n")

	dv.printTable(w, "Payments", result.PaymentsFile, result.PaymentStats, result.Payments)
	dv.printTable(w, "Orders", result.OrdersFile, result.OrderStats, result.Orders)

	fmt.Fprintf(w, "\nOrder windows: %d explicit, %d derived from the creation date\n",
		result.Windows.Explicit, result.Windows.Derived)
	fmt.Fprintf(w, "Joint orders:  %d\n", result.Windows.JointHeld)

	if result.TableError != nil {
		fmt.Fprintf(w, "\nTable check failed: %v\n", result.TableError)
	}
}

func (dv *DataValidator) printTable(w io.Writer, title, path string, stats *parsers.ParseStats, summary TableSummary) {
	fmt.Fprintf(w, "\n%s (%s)\n", title, path)
	fmt.Fprintf(w, "  %s\n", stats)
	if summary.Records > 0 {
		fmt.Fprintf(w, "  Amounts: %s to %s, total %s\n",
			summary.AmountRange.Min.StringFixed(2), summary.AmountRange.Max.StringFixed(2),
			summary.AmountRange.Total.StringFixed(2))
		fmt.Fprintf(w, "  Dates:   %s to %s\n",
			summary.DateRange.Min.Format(models.DateLayout), summary.DateRange.Max.Format(models.DateLayout))

		accounts := make([]string, 0, len(summary.PerAccount))
		for account := range summary.PerAccount {
			accounts = append(accounts, account)
		}
		sort.Strings(accounts)
		for _, account := range accounts {
			fmt.Fprintf(w, "  %-12s %d\n", account, summary.PerAccount[account])
		}
	}
	for _, sample := range stats.GetSampleErrors(dv.Samples) {
		fmt.Fprintf(w, "  ERROR %s\n", sample)
	}
}

// WriteReport writes the validation report to a file
func (dv *DataValidator) WriteReport(filename string, result *ValidationResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	dv.PrintResult(file, result)
	return nil
}
