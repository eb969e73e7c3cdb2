package matcher

import (
	"sort"
	"strings"
	"time"

	"waterfall-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// Record is one atomic payment or order fed to AggregateByDate
type Record struct {
	ID     string
	Client string
	Date   time.Time
	Amount decimal.Decimal
}

// Aggregate is a synthetic record standing for every member id. Date is the
// anchor (earliest) date and LastDate the latest date reached in the window.
type Aggregate struct {
	IDs      []string
	Client   string
	Date     time.Time
	LastDate time.Time
	Amount   decimal.Decimal
}

// Key joins the member ids with IDSeparator
func (a Aggregate) Key() string {
	return strings.Join(a.IDs, IDSeparator)
}

// Total returns the summed amount of the members
func (a Aggregate) Total() decimal.Decimal {
	return a.Amount
}

// AggregateByDate merges same-client records whose dates fall within nbDays of
// an anchor into one aggregate.
//
// Records are first summed per (client, day). Per client, the earliest
// unconsumed day opens a window (anchor, anchor+nbDays]; every day inside it is
// consumed and joins the anchor. A window is never re-anchored on a consumed
// day. The next unconsumed day opens the next window, so every record ends up
// in exactly one aggregate. Records without a client are skipped.
//
// Aggregates come out ordered by client, then anchor date.
func AggregateByDate(records []Record, nbDays int) []Aggregate {
	type day struct {
		client string
		date   time.Time
		ids    []string
		amount decimal.Decimal
	}

	days := make([]*day, 0, len(records))
	byKey := make(map[string]*day)
	for _, r := range records {
		client := strings.TrimSpace(r.Client)
		if client == "" {
			continue
		}
		date := models.DateOnly(r.Date)
		key := client + "\x00" + date.Format(models.DateLayout)
		d, ok := byKey[key]
		if !ok {
			d = &day{client: client, date: date, amount: decimal.Zero}
			byKey[key] = d
			days = append(days, d)
		}
		d.ids = append(d.ids, r.ID)
		d.amount = d.amount.Add(r.Amount)
	}

	sort.SliceStable(days, func(i, j int) bool {
		if days[i].client != days[j].client {
			return days[i].client < days[j].client
		}
		return days[i].date.Before(days[j].date)
	})

	aggregates := make([]Aggregate, 0, len(days))
	for i := 0; i < len(days); {
		anchor := days[i]
		limit := anchor.date.AddDate(0, 0, nbDays)
		agg := Aggregate{
			IDs:      append([]string(nil), anchor.ids...),
			Client:   anchor.client,
			Date:     anchor.date,
			LastDate: anchor.date,
			Amount:   anchor.amount,
		}

		j := i + 1
		for ; j < len(days) && days[j].client == anchor.client && !days[j].date.After(limit); j++ {
			agg.IDs = append(agg.IDs, days[j].ids...)
			agg.Amount = agg.Amount.Add(days[j].amount)
			agg.LastDate = days[j].date
		}

		aggregates = append(aggregates, agg)
		i = j
	}
	return aggregates
}

// ExplodeIDs returns the member ids of every aggregate, in aggregate order
func ExplodeIDs(aggregates []Aggregate) []string {
	var ids []string
	for _, a := range aggregates {
		ids = append(ids, a.IDs...)
	}
	return ids
}

// SplitKey splits an aggregated id back into its member ids
func SplitKey(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, IDSeparator)
}
