package parsers

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"waterfall-reconciliation-service/internal/models"
)

// PaymentParserConfig holds configuration for reading a payment table
type PaymentParserConfig struct {
	Columns         models.PaymentColumns `json:"columns" yaml:"columns"`
	PaymentType     string                `json:"payment_type,omitempty" yaml:"payment_type,omitempty"`
	Delimiter       rune                  `json:"delimiter" yaml:"delimiter"`
	SkipInvalidRows bool                  `json:"skip_invalid_rows" yaml:"skip_invalid_rows"`
}

// DefaultPaymentParserConfig returns the configuration of the cleaned transfer export
func DefaultPaymentParserConfig() *PaymentParserConfig {
	return &PaymentParserConfig{
		Columns:     models.DefaultPaymentColumns(),
		PaymentType: "virement",
		Delimiter:   ',',
	}
}

// Validate checks that every column role is set
func (c *PaymentParserConfig) Validate() error {
	roles := map[string]string{
		"id":      c.Columns.ID,
		"date":    c.Columns.Date,
		"amount":  c.Columns.Amount,
		"account": c.Columns.Account,
	}
	for _, role := range []string{"id", "date", "amount", "account"} {
		if strings.TrimSpace(roles[role]) == "" {
			return fmt.Errorf("payment %s column cannot be empty", role)
		}
	}
	if len(c.Columns.Names) == 0 {
		return fmt.Errorf("at least one payer name column is required")
	}
	for i, name := range c.Columns.Names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("payer name column %d cannot be empty", i+1)
		}
	}
	return nil
}

// OrderParserConfig holds configuration for reading an order table
type OrderParserConfig struct {
	Delimiter       rune `json:"delimiter" yaml:"delimiter"`
	SkipInvalidRows bool `json:"skip_invalid_rows" yaml:"skip_invalid_rows"`
}

// DefaultOrderParserConfig returns the configuration of the cleaned back-office export
func DefaultOrderParserConfig() *OrderParserConfig {
	return &OrderParserConfig{Delimiter: ','}
}

// DetectDelimiter sniffs the header line of r and returns ';', '\t' or ','
// depending on which separator occurs most. Ties fall back to ','.
func DetectDelimiter(r io.Reader) (rune, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return ',', err
	}

	best, bestCount := ',', strings.Count(line, ",")
	for _, candidate := range []rune{';', '\t'} {
		if n := strings.Count(line, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best, nil
}

func parseConfigFor(delimiter rune) *ParseConfig {
	config := DefaultParseConfig()
	if delimiter != 0 {
		config.Delimiter = delimiter
	}
	return config
}
