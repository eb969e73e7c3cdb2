package parsers

import (
	"context"
	"io"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/pkg/errors"
	"waterfall-reconciliation-service/pkg/logger"
)

// PaymentTableName names the payment table in errors and logs
const PaymentTableName = "payments"

// PaymentParser reads cleaned payment tables
type PaymentParser struct {
	*BaseParser
	config *PaymentParserConfig
	logger logger.Logger
}

// NewPaymentParser creates a PaymentParser with the given configuration
func NewPaymentParser(config *PaymentParserConfig) (*PaymentParser, error) {
	if config == nil {
		config = DefaultPaymentParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"payment_parser_config",
			config.Columns,
			err,
		).WithSuggestion("Check the payment column roles of the entity profile")
	}

	return &PaymentParser{
		BaseParser: NewBaseParser(PaymentTableName, parseConfigFor(config.Delimiter)),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("payment_parser"),
	}, nil
}

// ParsePayments reads the payment table stored at filePath
func (pp *PaymentParser) ParsePayments(ctx context.Context, filePath string) (*models.PaymentTable, *ParseStats, error) {
	pp.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "parse_payments",
	}).Info("Starting payment parsing")

	file, err := pp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return pp.ParsePaymentsFrom(ctx, file, filePath)
}

// ParsePaymentsFrom reads a payment table from r; source names it in errors
func (pp *PaymentParser) ParsePaymentsFrom(ctx context.Context, r io.Reader, source string) (*models.PaymentTable, *ParseStats, error) {
	reader := pp.NewReader(r)
	parseCtx := NewParseContext(ctx, source)
	stats := NewParseStats(source)

	if err := pp.ReadHeaders(reader, parseCtx, pp.config.Columns.Required()); err != nil {
		return nil, stats, err
	}

	table := &models.PaymentTable{
		Columns:     append([]string(nil), parseCtx.Headers...),
		Roles:       pp.config.Columns,
		PaymentType: pp.config.PaymentType,
	}

	for {
		record, err := pp.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := errors.AsReconcilerError(err); ok {
				return nil, stats, err
			}
			return nil, stats, errors.ParseError(errors.CodeInvalidFormat, source, parseCtx.LineNumber+1, "record", "", err)
		}
		stats.RecordsParsed++

		payment, rowErr := pp.parsePaymentFromRecord(record, parseCtx)
		if rowErr != nil {
			stats.AddError(rowErr)
			if !pp.config.SkipInvalidRows {
				return nil, stats, errors.ParseError(errors.CodeInvalidData, source, rowErr.Line, rowErr.Column, rowErr.Value, rowErr)
			}
			pp.logger.WithError(rowErr).WithField("line_number", rowErr.Line).Warn("Skipping invalid payment row")
			continue
		}

		table.Rows = append(table.Rows, payment)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber
	pp.logger.WithFields(logger.Fields{
		"source":         source,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount(),
	}).Info("Payment parsing completed")

	if stats.HasErrors() {
		pp.logger.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Encountered errors during parsing")
	}

	return table, stats, nil
}

// parsePaymentFromRecord converts one CSV record using the configured roles
func (pp *PaymentParser) parsePaymentFromRecord(record []string, parseCtx *ParseContext) (*models.Payment, *RowError) {
	cols := pp.config.Columns
	line := parseCtx.LineNumber

	id := pp.FieldValue(record, parseCtx, cols.ID)
	if id == "" {
		return nil, &RowError{Line: line, Column: cols.ID, Message: "payment id cannot be empty"}
	}

	dateStr := pp.FieldValue(record, parseCtx, cols.Date)
	date, err := models.ParseTimeWithFormats(dateStr)
	if err != nil {
		return nil, &RowError{Line: line, Column: cols.Date, Value: dateStr, Message: "invalid payment date", Err: err}
	}

	amountStr := pp.FieldValue(record, parseCtx, cols.Amount)
	amount, err := models.ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, &RowError{Line: line, Column: cols.Amount, Value: amountStr, Message: "invalid payment amount", Err: err}
	}

	payment := models.NewPayment(id, date, amount, pp.FieldValue(record, parseCtx, cols.Account))
	for _, col := range cols.Names {
		payment.Names[col] = pp.FieldValue(record, parseCtx, col)
	}
	payment.Values = pp.RawValues(record, parseCtx)

	if err := payment.Validate(); err != nil {
		return nil, &RowError{Line: line, Column: cols.ID, Value: id, Message: "invalid payment", Err: err}
	}
	return payment, nil
}
