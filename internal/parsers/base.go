// Package parsers reads the cleaned payment and order tables fed to the
// waterfall engine.
//
// Both tables are CSV files with a header row. The payment table is read
// through column roles (id, date, amount, account and one or more payer-name
// columns) because every entity exports it with its own headers; the order
// table always uses the fixed headers listed in package models. Every other
// column is kept verbatim, with the original header order, so that reports
// can reproduce the input rows.
//
// A missing required column fails the whole read with a configuration error
// naming the column. Malformed cells are collected per row in ParseStats and,
// unless the parser is configured to skip them, fail the read as well.
//
// Example usage:
//
//	parser, err := parsers.NewPaymentParser(parsers.DefaultPaymentParserConfig())
//	table, stats, err := parser.ParsePayments(ctx, "payments.csv")
//
//	orders, err := parsers.NewOrderParser(nil)
//	orderTable, _, err := orders.ParseOrders(ctx, "orders.csv")
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"waterfall-reconciliation-service/pkg/errors"
	"waterfall-reconciliation-service/pkg/logger"
)

// RowError describes one rejected cell of an input table
type RowError struct {
	Line    int
	Column  string
	Value   string
	Message string
	Err     error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d, column %s ('%s'): %s: %v", e.Line, e.Column, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d, column %s ('%s'): %s", e.Line, e.Column, e.Value, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ParseConfig holds the CSV dialect shared by both table parsers
type ParseConfig struct {
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	MaxFieldSize     int
	ValidateEncoding bool
}

// DefaultParseConfig returns the dialect of the cleaned exports
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1 << 20,
		ValidateEncoding: true,
	}
}

// BaseParser provides the CSV plumbing of the table parsers
type BaseParser struct {
	config *ParseConfig
	table  string
	logger logger.Logger
}

// NewBaseParser creates a BaseParser for the named table
func NewBaseParser(table string, config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("parser").WithField("table", table)
	log.WithFields(logger.Fields{
		"delimiter":         string(config.Delimiter),
		"validate_encoding": config.ValidateEncoding,
	}).Debug("Created table parser")

	return &BaseParser{config: config, table: table, logger: log}
}

// ParseContext holds state during one read
type ParseContext struct {
	Source     string
	LineNumber int
	Headers    []string
	HeaderMap  map[string]int
	ctx        context.Context
}

// NewParseContext creates a parsing context for the named source
func NewParseContext(ctx context.Context, source string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		Source:    source,
		HeaderMap: make(map[string]int),
		ctx:       ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// GetColumnIndex returns the index of a column by name, or -1 if not found.
// Exact matches win over case-insensitive ones.
func (pc *ParseContext) GetColumnIndex(name string) int {
	if index, exists := pc.HeaderMap[name]; exists {
		return index
	}
	for i, header := range pc.Headers {
		if strings.EqualFold(header, name) {
			return i
		}
	}
	return -1
}

// OpenFile opens a table file, validating its encoding when configured
func (bp *BaseParser) OpenFile(filePath string) (*os.File, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening CSV file")

	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open CSV file")
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, filePath, err)
	}

	if bp.config.ValidateEncoding {
		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			return nil, err
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	return file, nil
}

// NewReader wraps r in a csv.Reader configured with the parser dialect
func (bp *BaseParser) NewReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	return reader
}

// validateEncoding checks that the first lines of the file are valid UTF-8
func (bp *BaseParser) validateEncoding(file *os.File, filePath string) error {
	maxLine := 1 << 20
	if bp.config.MaxFieldSize > maxLine {
		maxLine = bp.config.MaxFieldSize
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	lineNum := 0

	for scanner.Scan() && lineNum < 100 {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(
				errors.CodeEncodingError,
				filePath,
				lineNum,
				"encoding",
				"",
				fmt.Errorf("invalid UTF-8 encoding detected"),
			).WithSuggestion("Save the file in UTF-8 encoding and try again")
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}
	return nil
}

// ReadHeaders reads the header row and checks that every required column is present.
// The first missing column is reported as a configuration error.
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, required []string) error {
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return errors.ValidationError(
				errors.CodeMissingField,
				bp.table,
				"empty",
				fmt.Errorf("file %s has no header row", parseCtx.Source),
			).WithSuggestion("Ensure the file contains a header row")
		}
		return errors.ParseError(errors.CodeInvalidFormat, parseCtx.Source, 1, "headers", "", err).
			WithSuggestion("Check the file format and ensure it's a valid CSV")
	}

	parseCtx.LineNumber++
	parseCtx.Headers = make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		parseCtx.Headers[i] = h
		if _, dup := parseCtx.HeaderMap[h]; !dup {
			parseCtx.HeaderMap[h] = i
		}
	}

	for _, column := range required {
		if parseCtx.GetColumnIndex(column) == -1 {
			bp.logger.WithFields(logger.Fields{
				"missing_column":    column,
				"available_headers": parseCtx.Headers,
			}).Error("Required column is missing")
			return errors.MissingColumnError(bp.table, column).
				WithContext("file", parseCtx.Source).
				WithContext("available_headers", strings.Join(parseCtx.Headers, ", "))
		}
	}

	bp.logger.WithField("headers", parseCtx.Headers).Debug("Read headers")
	return nil
}

// ReadRecord returns the next non-empty record, or io.EOF
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "csv_parsing", parseCtx.ctx.Err())
		}

		record, err := reader.Read()
		if err != nil {
			return nil, err
		}
		parseCtx.LineNumber++

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) > bp.config.MaxFieldSize {
					return nil, errors.ParseError(
						errors.CodeInvalidData,
						parseCtx.Source,
						parseCtx.LineNumber,
						headerName(parseCtx, i),
						truncate(field, 50),
						fmt.Errorf("field exceeds maximum size of %d bytes", bp.config.MaxFieldSize),
					)
				}
			}
		}
		return record, nil
	}
}

// FieldValue returns the trimmed value of the named column in record.
// Short records yield an empty value.
func (bp *BaseParser) FieldValue(record []string, parseCtx *ParseContext, column string) string {
	index := parseCtx.GetColumnIndex(column)
	if index == -1 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

// RawValues maps every header to its cell in record, keeping the text verbatim
func (bp *BaseParser) RawValues(record []string, parseCtx *ParseContext) map[string]string {
	values := make(map[string]string, len(parseCtx.Headers))
	for i, h := range parseCtx.Headers {
		if i < len(record) {
			values[h] = record[i]
		} else {
			values[h] = ""
		}
	}
	return values
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func headerName(parseCtx *ParseContext, index int) string {
	if index < len(parseCtx.Headers) {
		return parseCtx.Headers[index]
	}
	return fmt.Sprintf("field_%d", index)
}

// ParseStats holds statistics about one table read
type ParseStats struct {
	Source        string
	TotalLines    int
	RecordsParsed int
	RecordsValid  int
	Errors        []*RowError
}

// NewParseStats creates a new ParseStats instance
func NewParseStats(source string) *ParseStats {
	return &ParseStats{Source: source}
}

// AddError records a rejected row
func (ps *ParseStats) AddError(err *RowError) {
	ps.Errors = append(ps.Errors, err)
}

// ErrorCount returns the number of rejected rows
func (ps *ParseStats) ErrorCount() int {
	return len(ps.Errors)
}

// HasErrors returns true if there were any parsing errors
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d valid), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, len(ps.Errors))
}

// GetSampleErrors returns up to maxSamples error messages for logging
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}
	samples := make([]string, 0, limit)
	for _, err := range ps.Errors[:limit] {
		samples = append(samples, err.Error())
	}
	return samples
}
