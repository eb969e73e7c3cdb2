package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// BatchGenerator generates a payment table and the order table it settles
type BatchGenerator struct {
	Orders       int
	StartDate    time.Time
	Days         int
	MismatchRate float64
	NoiseRate    float64
	rng          *rand.Rand
}

// PaymentTemplate represents a payment row
type PaymentTemplate struct {
	ID      string
	Date    time.Time
	Amount  decimal.Decimal
	Account string
	Name    string
}

// OrderTemplate represents an order row
type OrderTemplate struct {
	ID           string
	CreationDate time.Time
	Amount       decimal.Decimal
	Subscriber   string
	CoSubscriber string
	Product      string
	ShareType    string
	Start        time.Time
	End          time.Time
}

var firstNames = []string{"JEAN", "MARIE", "PAUL", "CLAIRE", "LUC", "ANNE", "HUGO", "LEA", "LOUIS", "EMMA"}
var lastNames = []string{"DUPONT", "MARTIN", "DURAND", "LEROY", "MOREAU", "PETIT", "GARNIER", "FAURE", "ROUSSEAU", "BLANC"}

func main() {
	var (
		outputDir = flag.String("output-dir", "generated", "Output directory for payments.csv and orders.csv")
		count     = flag.Int("orders", 200, "Number of orders to generate")
		startDate = flag.String("start-date", "2024-01-01", "First order creation date (YYYY-MM-DD)")
		days      = flag.Int("days", 180, "Number of days over which orders are created")
		mismatch  = flag.Float64("mismatch-rate", 0.1, "Share of payments received on another account")
		noise     = flag.Float64("noise-rate", 0.2, "Unrelated payments per order")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	start, err := time.Parse(dateLayout, *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}

	generator := &BatchGenerator{
		Orders:       *count,
		StartDate:    start,
		Days:         *days,
		MismatchRate: *mismatch,
		NoiseRate:    *noise,
		rng:          rand.New(rand.NewSource(*seed)),
	}

	payments, orders := generator.Generate()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := WritePayments(filepath.Join(*outputDir, "payments.csv"), payments); err != nil {
		log.Fatalf("Failed to write payments: %v", err)
	}
	if err := WriteOrders(filepath.Join(*outputDir, "orders.csv"), orders); err != nil {
		log.Fatalf("Failed to write orders: %v", err)
	}

	fmt.Printf("Generated %d orders and %d payments in %s\n", len(orders), len(payments), *outputDir)
	fmt.Printf("Seed used: %d\n", *seed)
}

// Generate builds the batch. Each order is settled by one payment, by two
// close payments of the same payer, by one payment per holder, or not at
// all; unrelated payments are added as noise.
func (bg *BatchGenerator) Generate() ([]PaymentTemplate, []OrderTemplate) {
	var payments []PaymentTemplate
	orders := make([]OrderTemplate, 0, bg.Orders)

	pay := func(day time.Time, amount decimal.Decimal, account, name string) {
		payments = append(payments, PaymentTemplate{
			ID:      fmt.Sprintf("PG%06d", len(payments)+1),
			Date:    day,
			Amount:  amount,
			Account: account,
			Name:    name,
		})
	}

	for i := 0; i < bg.Orders; i++ {
		created := bg.StartDate.AddDate(0, 0, bg.rng.Intn(bg.Days))
		amount := decimal.NewFromInt(int64(50 * (1 + bg.rng.Intn(60))))
		order := OrderTemplate{
			ID:           fmt.Sprintf("OG%06d", i+1),
			CreationDate: created,
			Amount:       amount,
			Subscriber:   bg.name(),
			Product:      fmt.Sprintf("ACC%d", 1+bg.rng.Intn(3)),
			ShareType:    "Full ownership",
		}
		if bg.rng.Float64() < 0.25 {
			order.CoSubscriber = bg.name()
			order.ShareType = "Dismemberment"
		}
		if bg.rng.Float64() < 0.5 {
			order.Start = created
			order.End = created.AddDate(0, 1, 0)
		}
		orders = append(orders, order)

		account := order.Product
		if bg.rng.Float64() < bg.MismatchRate {
			account = "ACC9"
		}
		day := created.AddDate(0, 0, bg.rng.Intn(20))
		payer := reverse(order.Subscriber)

		switch r := bg.rng.Float64(); {
		case r < 0.45:
			pay(day, amount.Add(decimal.NewFromInt(int64(bg.rng.Intn(4)))), account, payer)
		case r < 0.65:
			half := amount.Div(decimal.NewFromInt(2)).Round(0)
			pay(day, half, account, payer)
			pay(day.AddDate(0, 0, 1+bg.rng.Intn(2)), amount.Sub(half), account, payer)
		case r < 0.8 && order.CoSubscriber != "":
			half := amount.Div(decimal.NewFromInt(2)).Round(0)
			pay(day, half, account, payer)
			pay(day.AddDate(0, 0, 2), amount.Sub(half), account, reverse(order.CoSubscriber))
		case r < 0.9:
			// the payer kept a single name word, only a light check can find it
			pay(day, amount, account, strings.Fields(order.Subscriber)[1]+" "+bg.name())
		}
	}

	noise := int(float64(bg.Orders) * bg.NoiseRate)
	for i := 0; i < noise; i++ {
		day := bg.StartDate.AddDate(0, 0, bg.rng.Intn(bg.Days+30))
		pay(day, decimal.NewFromInt(int64(1+bg.rng.Intn(3000))), "ACC1", "UNKNOWN PAYER")
	}
	return payments, orders
}

func (bg *BatchGenerator) name() string {
	return firstNames[bg.rng.Intn(len(firstNames))] + " " + lastNames[bg.rng.Intn(len(lastNames))]
}

// reverse swaps "FIRST LAST" into "LAST FIRST", the way bank references often carry names
func reverse(name string) string {
	parts := strings.Fields(name)
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " ")
}

// WritePayments writes the payment table with the default column roles
func WritePayments(filename string, payments []PaymentTemplate) error {
	rows := [][]string{{"id", "effective_date", "amount", "account_num", "clientname"}}
	for _, p := range payments {
		rows = append(rows, []string{p.ID, p.Date.Format(dateLayout), p.Amount.StringFixed(2), p.Account, p.Name})
	}
	return writeCSV(filename, rows)
}

// WriteOrders writes the order table
func WriteOrders(filename string, orders []OrderTemplate) error {
	rows := [][]string{{
		"order_id", "creation_date", "total_amount", "subscriber_name", "cosubscriber_name",
		"product_code", "share_type", "start_date", "end_date",
	}}
	for _, o := range orders {
		rows = append(rows, []string{
			o.ID, o.CreationDate.Format(dateLayout), o.Amount.StringFixed(2), o.Subscriber, o.CoSubscriber,
			o.Product, o.ShareType, formatOptionalDate(o.Start), formatOptionalDate(o.End),
		})
	}
	return writeCSV(filename, rows)
}

func formatOptionalDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func writeCSV(filename string, rows [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}
