package parsers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create temporary CSV file
func createTempCSVFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

const paymentsCSV = `id,effective_date,amount,account_num,clientname,reference
P1,2024-03-10,1000.00,ACC1,DUPONT JEAN,VIR SEPA
P2,05/01/2024,"1 300,50",ACC2,MARTIN ALICE,

P3,2024-01-06,-200,ACC1,,CHQ 12
`

const ordersCSV = `order_id,creation_date,total_amount,subscriber_name,cosubscriber_name,product_code,share_type,start_date,end_date,branch
O1,2024-03-01,1000,JEAN DUPONT,,ACC1,Full ownership,2024-03-01,2024-04-01,PARIS
O2,2024-01-02,500,ALICE MARTIN,BOB MARTIN,ACC2,Dismemberment,,,LYON
`

func TestPaymentParserConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *PaymentParserConfig)
		wantError bool
	}{
		{"default", func(c *PaymentParserConfig) {}, false},
		{"empty id", func(c *PaymentParserConfig) { c.Columns.ID = "" }, true},
		{"empty account", func(c *PaymentParserConfig) { c.Columns.Account = " " }, true},
		{"no names", func(c *PaymentParserConfig) { c.Columns.Names = nil }, true},
		{"blank name", func(c *PaymentParserConfig) { c.Columns.Names = []string{"clientname", ""} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultPaymentParserConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestPaymentParser_ParsePayments(t *testing.T) {
	config := DefaultPaymentParserConfig()
	config.Columns.Names = []string{"reference", "clientname"}
	parser, err := NewPaymentParser(config)
	require.NoError(t, err)

	path := createTempCSVFile(t, paymentsCSV)
	table, stats, err := parser.ParsePayments(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "effective_date", "amount", "account_num", "clientname", "reference"}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, 3, stats.RecordsValid)
	assert.False(t, stats.HasErrors())

	p1 := table.Rows[0]
	assert.Equal(t, "P1", p1.ID)
	assert.Equal(t, "2024-03-10", p1.Date.Format(models.DateLayout))
	assert.Equal(t, "1000", p1.Amount.String())
	assert.Equal(t, "ACC1", p1.Account)
	assert.Equal(t, "VIR SEPA", p1.Name("reference"))
	assert.Equal(t, "DUPONT JEAN", p1.Name("clientname"))
	assert.Equal(t, "1000.00", p1.Values["amount"], "raw values are kept verbatim")

	p2 := table.Rows[1]
	assert.Equal(t, "2024-01-05", p2.Date.Format(models.DateLayout))
	assert.Equal(t, "1300.5", p2.Amount.String())

	assert.Equal(t, "-200", table.Rows[2].Amount.String())
	assert.Equal(t, "", table.Rows[2].Name("clientname"))
}

func TestPaymentParser_MissingColumn(t *testing.T) {
	config := DefaultPaymentParserConfig()
	config.Columns.Names = []string{"clientname", "payer_name"}
	parser, err := NewPaymentParser(config)
	require.NoError(t, err)

	_, _, err = parser.ParsePaymentsFrom(context.Background(), strings.NewReader(paymentsCSV), "payments.csv")
	require.Error(t, err)

	rErr, ok := errors.AsReconcilerError(err)
	require.True(t, ok, "expected a ReconcilerError, got %T", err)
	assert.Equal(t, errors.CategoryConfiguration, rErr.Category)
	assert.Equal(t, errors.CodeMissingColumn, rErr.Code)
	assert.Equal(t, "payer_name", rErr.Context["column"])
	assert.Equal(t, PaymentTableName, rErr.Context["table"])
	assert.Contains(t, rErr.Error(), "payer_name")
}

func TestPaymentParser_InvalidRows(t *testing.T) {
	content := "id,effective_date,amount,account_num,clientname\n" +
		"P1,2024-03-10,100,A,X\n" +
		"P2,not-a-date,100,A,X\n" +
		"P3,2024-03-10,abc,A,X\n"

	parser, err := NewPaymentParser(nil)
	require.NoError(t, err)

	_, stats, err := parser.ParsePaymentsFrom(context.Background(), strings.NewReader(content), "payments.csv")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidData))
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, 3, stats.Errors[0].Line)
	assert.Equal(t, "effective_date", stats.Errors[0].Column)

	config := DefaultPaymentParserConfig()
	config.SkipInvalidRows = true
	lenient, err := NewPaymentParser(config)
	require.NoError(t, err)

	table, stats, err := lenient.ParsePaymentsFrom(context.Background(), strings.NewReader(content), "payments.csv")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 2, stats.ErrorCount())
	assert.Equal(t, "amount", stats.Errors[1].Column)
}

func TestOrderParser_ParseOrders(t *testing.T) {
	parser, err := NewOrderParser(nil)
	require.NoError(t, err)

	table, stats, err := parser.ParseOrders(context.Background(), createTempCSVFile(t, ordersCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RecordsValid)
	assert.Equal(t, "branch", table.Columns[len(table.Columns)-1])
	require.Len(t, table.Rows, 2)

	o1 := table.Rows[0]
	assert.Equal(t, "O1", o1.ID)
	assert.True(t, o1.HasWindow())
	assert.Equal(t, "2024-04-01", o1.EndDate.Format(models.DateLayout))
	assert.False(t, o1.IsJoint())
	assert.Equal(t, "PARIS", o1.Values["branch"])

	o2 := table.Rows[1]
	assert.True(t, o2.IsJoint())
	assert.False(t, o2.HasWindow(), "empty bounds are derived later")
	assert.Equal(t, "Dismemberment", o2.ShareType)
}

func TestOrderParser_MissingColumn(t *testing.T) {
	content := "order_id,creation_date,total_amount,subscriber_name,share_type\nO1,2024-01-01,10,A,Full ownership\n"
	parser, err := NewOrderParser(nil)
	require.NoError(t, err)

	_, _, err = parser.ParseOrdersFrom(context.Background(), strings.NewReader(content), "orders.csv")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeMissingColumn))
	rErr, _ := errors.AsReconcilerError(err)
	assert.Equal(t, models.OrderProductColumn, rErr.Context["column"])
}

func TestOrderParser_SemicolonDialect(t *testing.T) {
	content := strings.ReplaceAll(ordersCSV, ",", ";")
	delimiter, err := DetectDelimiter(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, ';', delimiter)

	parser, err := NewOrderParser(&OrderParserConfig{Delimiter: delimiter})
	require.NoError(t, err)
	table, _, err := parser.ParseOrdersFrom(context.Background(), strings.NewReader(content), "orders.csv")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		header string
		want   rune
	}{
		{"a,b,c\n", ','},
		{"a;b;c\n", ';'},
		{"a\tb\tc", '\t'},
		{"single\n", ','},
	}
	for _, tt := range tests {
		got, err := DetectDelimiter(strings.NewReader(tt.header))
		if err != nil {
			t.Fatalf("DetectDelimiter(%q) error: %v", tt.header, err)
		}
		if got != tt.want {
			t.Errorf("DetectDelimiter(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestParseFileErrors(t *testing.T) {
	parser, err := NewOrderParser(nil)
	require.NoError(t, err)

	_, _, err = parser.ParseOrders(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, errors.HasCode(err, errors.CodeFileNotFound))

	_, _, err = parser.ParseOrdersFrom(context.Background(), strings.NewReader(""), "empty.csv")
	assert.True(t, errors.HasCode(err, errors.CodeMissingField))

	invalid := createTempCSVFile(t, "order_id\n\xff\xfe\n")
	_, _, err = parser.ParseOrders(context.Background(), invalid)
	assert.True(t, errors.HasCode(err, errors.CodeEncodingError))
}

func TestParseCancelled(t *testing.T) {
	parser, err := NewOrderParser(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = parser.ParseOrdersFrom(ctx, strings.NewReader(ordersCSV), "orders.csv")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeUnexpectedError))
}

func TestTableLoader_Load(t *testing.T) {
	loader, err := NewTableLoader(nil, nil)
	require.NoError(t, err)

	payments := createTempCSVFile(t, paymentsCSV)
	orders := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(orders, []byte(ordersCSV), 0o644))

	set, err := loader.Load(context.Background(), payments, orders)
	require.NoError(t, err)
	assert.Len(t, set.Payments.Rows, 3)
	assert.Len(t, set.Orders.Rows, 2)
	assert.Equal(t, 2, set.OrderStats.RecordsValid)

	_, err = loader.Load(context.Background(), payments, filepath.Join(t.TempDir(), "nope.csv"))
	assert.True(t, errors.HasCode(err, errors.CodeFileNotFound))
}
