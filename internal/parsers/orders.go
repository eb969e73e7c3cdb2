package parsers

import (
	"context"
	"io"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/pkg/errors"
	"waterfall-reconciliation-service/pkg/logger"
)

// OrderTableName names the order table in errors and logs
const OrderTableName = "orders"

// OrderParser reads cleaned back-office order tables
type OrderParser struct {
	*BaseParser
	config *OrderParserConfig
	logger logger.Logger
}

// NewOrderParser creates an OrderParser with the given configuration
func NewOrderParser(config *OrderParserConfig) (*OrderParser, error) {
	if config == nil {
		config = DefaultOrderParserConfig()
	}
	return &OrderParser{
		BaseParser: NewBaseParser(OrderTableName, parseConfigFor(config.Delimiter)),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("order_parser"),
	}, nil
}

// ParseOrders reads the order table stored at filePath
func (op *OrderParser) ParseOrders(ctx context.Context, filePath string) (*models.OrderTable, *ParseStats, error) {
	op.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "parse_orders",
	}).Info("Starting order parsing")

	file, err := op.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return op.ParseOrdersFrom(ctx, file, filePath)
}

// ParseOrdersFrom reads an order table from r; source names it in errors
func (op *OrderParser) ParseOrdersFrom(ctx context.Context, r io.Reader, source string) (*models.OrderTable, *ParseStats, error) {
	reader := op.NewReader(r)
	parseCtx := NewParseContext(ctx, source)
	stats := NewParseStats(source)

	if err := op.ReadHeaders(reader, parseCtx, models.RequiredOrderColumns()); err != nil {
		return nil, stats, err
	}

	table := &models.OrderTable{Columns: append([]string(nil), parseCtx.Headers...)}

	for {
		record, err := op.ReadRecord(reader, parseCtx)
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

		order, rowErr := op.parseOrderFromRecord(record, parseCtx)
		if rowErr != nil {
			stats.AddError(rowErr)
			if !op.config.SkipInvalidRows {
				return nil, stats, errors.ParseError(errors.CodeInvalidData, source, rowErr.Line, rowErr.Column, rowErr.Value, rowErr)
			}
			op.logger.WithError(rowErr).WithField("line_number", rowErr.Line).Warn("Skipping invalid order row")
			continue
		}

		table.Rows = append(table.Rows, order)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber
	op.logger.WithFields(logger.Fields{
		"source":         source,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount(),
	}).Info("Order parsing completed")

	return table, stats, nil
}

// parseOrderFromRecord converts one CSV record. Window bounds are optional:
// orders without them get a derived window from their entity segment.
func (op *OrderParser) parseOrderFromRecord(record []string, parseCtx *ParseContext) (*models.Order, *RowError) {
	line := parseCtx.LineNumber
	field := func(column string) string {
		return op.FieldValue(record, parseCtx, column)
	}

	order := &models.Order{
		ID:               field(models.OrderIDColumn),
		SubscriberName:   field(models.OrderSubscriberColumn),
		CoSubscriberName: field(models.OrderCoSubscriberColumn),
		ProductCode:      field(models.OrderProductColumn),
		ShareType:        field(models.OrderShareTypeColumn),
		Values:           op.RawValues(record, parseCtx),
	}
	if order.ID == "" {
		return nil, &RowError{Line: line, Column: models.OrderIDColumn, Message: "order id cannot be empty"}
	}

	var err error
	raw := field(models.OrderCreationColumn)
	if order.CreationDate, err = models.ParseTimeWithFormats(raw); err != nil {
		return nil, &RowError{Line: line, Column: models.OrderCreationColumn, Value: raw, Message: "invalid creation date", Err: err}
	}

	raw = field(models.OrderAmountColumn)
	if order.TotalAmount, err = models.ParseDecimalFromString(raw); err != nil {
		return nil, &RowError{Line: line, Column: models.OrderAmountColumn, Value: raw, Message: "invalid total amount", Err: err}
	}

	if raw = field(models.OrderStartColumn); raw != "" {
		if order.StartDate, err = models.ParseTimeWithFormats(raw); err != nil {
			return nil, &RowError{Line: line, Column: models.OrderStartColumn, Value: raw, Message: "invalid window start", Err: err}
		}
	}
	if raw = field(models.OrderEndColumn); raw != "" {
		if order.EndDate, err = models.ParseTimeWithFormats(raw); err != nil {
			return nil, &RowError{Line: line, Column: models.OrderEndColumn, Value: raw, Message: "invalid window end", Err: err}
		}
	}

	return order, nil
}
