package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const servicePaymentsCSV = `id,effective_date,amount,account_num,clientname
P1,2024-03-10,1000.00,ACC1,DUPONT JEAN
P2,2024-01-05,300,ACC1,MARTIN PAUL
P3,2024-01-06,200,ACC1,MARTIN PAUL
P6,2024-05-20,75,ACC1,UNKNOWN PAYER
`

const serviceOrdersCSV = `order_id,creation_date,total_amount,subscriber_name,cosubscriber_name,product_code,share_type,start_date,end_date
O1,2024-03-01,1000,JEAN DUPONT,,ACC1,Full ownership,2024-03-01,2024-04-01
O2,2024-01-02,500,PAUL MARTIN,,ACC1,Full ownership,2024-01-02,2024-02-01
O9,2024-05-01,1000,HUGO PETIT,,ACC1,Dismemberment,,
`

func writeTable(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestService(t *testing.T, config *Config) *ReconciliationService {
	t.Helper()
	service, err := NewReconciliationService(nil, nil, config, quietLogger(t))
	require.NoError(t, err)
	return service
}

func TestReconciliationService_ProcessReconciliation(t *testing.T) {
	service := newTestService(t, ABCDConfig())
	request := &ReconciliationRequest{
		PaymentsFile: writeTable(t, "payments.csv", servicePaymentsCSV),
		OrdersFile:   writeTable(t, "orders.csv", serviceOrdersCSV),
	}

	result, err := service.ProcessReconciliation(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"P1>O1@paiement_unique",
		"P2>O2@npaiements_1ordre",
		"P3>O2@npaiements_1ordre",
		"P6>-@Heavy check",
	}, pairs(result.Records))
	assert.Equal(t, []string{"O9"}, orderIDs(result.UnmatchedOrders))
	assert.Equal(t, "ABCD", result.Entity)
	assert.Equal(t, "virement", result.PaymentType)
	assert.Equal(t, []string{"id", "effective_date", "amount", "account_num", "clientname"}, result.PaymentColumns)
	assert.Contains(t, result.OrderColumns, models.OrderCoSubscriberColumn)

	require.NotNil(t, result.ProcessingStats)
	assert.Equal(t, 4, result.ProcessingStats.PaymentParse.RecordsValid)
	assert.Equal(t, 3, result.ProcessingStats.OrderParse.RecordsValid)

	summary := result.Summary
	assert.Equal(t, 3, summary.MatchedPayments)
	assert.True(t, summary.MatchedAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, 3, summary.RowsBySegment["full_ownership"])
}

func TestReconciliationService_InvalidRequest(t *testing.T) {
	service := newTestService(t, nil)

	_, err := service.ProcessReconciliation(context.Background(), &ReconciliationRequest{PaymentsFile: "payments.csv"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeMissingField))
}

func TestReconciliationService_MissingFile(t *testing.T) {
	service := newTestService(t, nil)
	request := &ReconciliationRequest{
		PaymentsFile: writeTable(t, "payments.csv", servicePaymentsCSV),
		OrdersFile:   filepath.Join(t.TempDir(), "missing.csv"),
	}

	_, err := service.ProcessReconciliation(context.Background(), request)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeFileNotFound))
}

func TestReconciliationService_GetConfiguration(t *testing.T) {
	service := newTestService(t, XYZConfig())

	config := service.GetConfiguration()
	assert.Equal(t, "XYZ", config.Entity)
	config.Entity = "changed"
	assert.Equal(t, "XYZ", service.GetConfiguration().Entity)
	assert.NotNil(t, service.Orchestrator())
}

func TestResultSummary_MatchRate(t *testing.T) {
	assert.Zero(t, (&ResultSummary{}).MatchRate())
	assert.InDelta(t, 25.0, (&ResultSummary{TotalPayments: 4, MatchedPayments: 1}).MatchRate(), 0.001)
}
