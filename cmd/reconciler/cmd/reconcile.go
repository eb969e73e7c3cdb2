package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"waterfall-reconciliation-service/cmd/reconciler/config"
	"waterfall-reconciliation-service/internal/matcher"
	"waterfall-reconciliation-service/internal/reconciler"
	"waterfall-reconciliation-service/internal/reporter"
	"waterfall-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	paymentsFile        string
	ordersFile          string
	entity              string
	profileFile         string
	amountThreshold     string
	minScore            int
	nameColumns         []string
	outputFormat        string
	outputFile          string
	unmatchedOrdersFile string
	partitionOrder      string
	showProgress        bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match a payment table against an order table",
	Long: `Reconcile runs the matching waterfall over a payment table and an order
table and writes one row per reconciled payment/order pair.

Rows are labelled:
- Proposition: matched on name, amount and date
- Light check: matched on a shared name word, to be confirmed
- Heavy check: payment left without any order

The entity profile decides the amount threshold, the payer name columns and
the share type segments. Use --entity for a built-in profile or --profile
for a YAML one; the other matching flags override the profile.

Examples:
  # Built-in entity profile
  reconciler reconcile --payments payments.csv --orders orders.csv --entity ABCD

  # YAML profile, spreadsheet report and unmatched orders
  reconciler reconcile --payments pay.csv --orders orders.csv --profile qrst.yaml \
    --format xlsx --output reconciled.xlsx --unmatched-orders unmatched.csv

  # Looser matching on two payer name columns
  reconciler reconcile --payments pay.csv --orders orders.csv --entity XYZ \
    --amount-threshold 2.5 --min-score 85 --name-columns reference1,clientname

  # With progress indicators
  reconciler reconcile --payments pay.csv --orders orders.csv --entity ABCD --progress`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&paymentsFile, "payments", "p", "", "path to the payment CSV file (required)")
	reconcileCmd.Flags().StringVarP(&ordersFile, "orders", "r", "", "path to the order CSV file (required)")

	// Profile flags
	reconcileCmd.Flags().StringVarP(&entity, "entity", "e", "", "built-in entity profile: ABCD, XYZ")
	reconcileCmd.Flags().StringVar(&profileFile, "profile", "", "path to a YAML entity profile")

	// Matching overrides
	reconcileCmd.Flags().StringVarP(&amountThreshold, "amount-threshold", "a", "", "amount tolerance, a decimal or 'unbounded'")
	reconcileCmd.Flags().IntVar(&minScore, "min-score", 0, "minimum name similarity score (0-100)")
	reconcileCmd.Flags().StringSliceVar(&nameColumns, "name-columns", nil, "payer name columns, in the order they are tried")
	reconcileCmd.Flags().StringVar(&partitionOrder, "partition-order", "", "order subset matched first: matching_first, other_first")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "format", "f", "console", "output format: console, json, csv, xlsx")
	reconcileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().StringVar(&unmatchedOrdersFile, "unmatched-orders", "", "write the unmatched orders as CSV to this file")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	// Bind flags to viper
	for _, name := range []string{
		"payments", "orders", "entity", "profile",
		"amount-threshold", "min-score", "name-columns", "partition-order",
		"format", "output", "unmatched-orders", "progress",
	} {
		viper.BindPFlag(name, reconcileCmd.Flags().Lookup(name))
	}
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and environment)
	paymentsFile = viper.GetString("payments")
	ordersFile = viper.GetString("orders")
	entity = viper.GetString("entity")
	profileFile = viper.GetString("profile")
	amountThreshold = viper.GetString("amount-threshold")
	minScore = viper.GetInt("min-score")
	nameColumns = viper.GetStringSlice("name-columns")
	partitionOrder = viper.GetString("partition-order")
	outputFormat = viper.GetString("format")
	outputFile = viper.GetString("output")
	unmatchedOrdersFile = viper.GetString("unmatched-orders")
	showProgress = viper.GetBool("progress")

	var errs []error

	if paymentsFile == "" {
		errs = append(errs, fmt.Errorf("--payments is required"))
	} else if err := validateFileExists(paymentsFile, "payment file"); err != nil {
		errs = append(errs, err)
	}
	if ordersFile == "" {
		errs = append(errs, fmt.Errorf("--orders is required"))
	} else if err := validateFileExists(ordersFile, "order file"); err != nil {
		errs = append(errs, err)
	}

	if entity == "" && profileFile == "" {
		errs = append(errs, fmt.Errorf("either --entity or --profile is required"))
	}
	if profileFile != "" {
		if err := validateFileExists(profileFile, "profile file"); err != nil {
			errs = append(errs, err)
		}
	}

	format := reporter.OutputFormat(strings.ToLower(outputFormat))
	if !format.IsValid() {
		errs = append(errs, fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv, xlsx", outputFormat))
	} else if format.IsBinary() && outputFile == "" {
		errs = append(errs, fmt.Errorf("--output is required for the %s format", format))
	}

	if amountThreshold != "" {
		if _, err := matcher.ParseThreshold(amountThreshold); err != nil {
			errs = append(errs, err)
		}
	}
	if minScore < 0 || minScore > 100 {
		errs = append(errs, fmt.Errorf("min score must be between 0 and 100, got %d", minScore))
	}
	for _, col := range nameColumns {
		if strings.TrimSpace(col) == "" {
			errs = append(errs, fmt.Errorf("name columns cannot contain an empty name"))
			break
		}
	}
	if _, err := reconciler.ParsePartitionOrder(partitionOrder); err != nil {
		errs = append(errs, err)
	}

	for _, path := range []string{outputFile, unmatchedOrdersFile} {
		if err := validateOutputDir(path); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", FormatValidationErrors(errs))
	}
	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func validateOutputDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("output directory does not exist: %s", dir)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logger.GetGlobalLogger().WithComponent("cli")

	profile, err := config.ResolveProfile(entity, profileFile)
	if err != nil {
		return err
	}
	profile = config.Overrides{
		AmountThreshold: amountThreshold,
		MinScore:        minScore,
		NameColumns:     nameColumns,
		PartitionOrder:  partitionOrder,
	}.Apply(profile)

	engineConfig, err := profile.ToEngineConfig()
	if err != nil {
		return err
	}
	paymentConfig, err := config.CreatePaymentParserConfig(profile)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Payment file: %s\n", paymentsFile)
		fmt.Fprintf(os.Stderr, "Order file: %s\n", ordersFile)
		fmt.Fprintf(os.Stderr, "Configuration: %s\n", engineConfig)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	service, err := reconciler.NewReconciliationService(
		paymentConfig,
		config.CreateOrderParserConfig(profile),
		engineConfig,
		log,
	)
	if err != nil {
		return err
	}

	if showProgress {
		service.Orchestrator().AddProgressCallback(func(progress *reconciler.ReconciliationProgress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	result, err := service.ProcessReconciliation(ctx, &reconciler.ReconciliationRequest{
		PaymentsFile: paymentsFile,
		OrdersFile:   ordersFile,
	})
	if showProgress {
		fmt.Fprintf(os.Stderr, "\n") // New line after progress
	}
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(config.CreateReportConfig(outputFormat), log)
	if err != nil {
		return err
	}

	// Determine output destination
	output := os.Stdout
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	if err := generator.GenerateReportSafely(result, output); err != nil {
		return err
	}

	if unmatchedOrdersFile != "" {
		file, err := os.Create(unmatchedOrdersFile)
		if err != nil {
			return fmt.Errorf("failed to create unmatched orders file: %w", err)
		}
		defer file.Close()

		if err := generator.WriteUnmatchedOrdersSafely(result, file); err != nil {
			return err
		}
	}

	// Show completion message
	if viper.GetBool("verbose") {
		s := result.Summary
		fmt.Fprintf(os.Stderr, "\nReconciliation %s completed successfully.\n", result.RunID)
		fmt.Fprintf(os.Stderr, "Processed %d payments and %d orders.\n", s.TotalPayments, s.TotalOrders)
		fmt.Fprintf(os.Stderr, "Matched %d payments (%.1f%%), %d orders left unmatched.\n",
			s.MatchedPayments, s.MatchRate(), s.UnmatchedOrders)
		if s.AccountMismatches > 0 {
			fmt.Fprintf(os.Stderr, "Flagged %d rows with an account mismatch.\n", s.AccountMismatches)
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", s.ProcessingDuration)
	}

	return nil
}
