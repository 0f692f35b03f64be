// Package report computes the aggregate views shown next to the transaction table: spending by
// category, income against expense per day, and the top merchants by absolute spend.
package report

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/budgetr/pkg/api"
)

// Uncategorized labels transactions with an empty category.
const Uncategorized = "Uncategorized"

// DefaultTopMerchants is the number of merchants TopMerchants returns when n <= 0.
const DefaultTopMerchants = 8

// CategoryTotal is the absolute amount spent in a category.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// DayFlow holds the money in and out on a single date.
type DayFlow struct {
	Date    string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// MerchantTotal is the absolute amount attributed to a merchant.
type MerchantTotal struct {
	Merchant string
	Total    decimal.Decimal
}

// Summary bundles every view over a filtered set of transactions.
type Summary struct {
	Count      int
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Net        decimal.Decimal
	Categories []CategoryTotal
	Daily      []DayFlow
	Merchants  []MerchantTotal
}

// Filter returns txns, or only the expenses (negative amounts) when excludeIncome is set.
func Filter(txns []api.Transaction, excludeIncome bool) []api.Transaction {
	if !excludeIncome {
		return txns
	}
	out := make([]api.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Amount < 0 {
			out = append(out, t)
		}
	}
	return out
}

// ByCategory totals absolute amounts per category, largest first.
func ByCategory(txns []api.Transaction) []CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	for _, t := range txns {
		cat := t.Category
		if cat == "" {
			cat = Uncategorized
		}
		totals[cat] = totals[cat].Add(amount(t).Abs())
	}

	out := make([]CategoryTotal, 0, len(totals))
	for cat, total := range totals {
		out = append(out, CategoryTotal{Category: cat, Total: total})
	}
	slices.SortFunc(out, func(a, b CategoryTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// DailyFlow groups transactions by date. Rows without a date are skipped.
func DailyFlow(txns []api.Transaction) []DayFlow {
	index := make(map[string]int)
	var out []DayFlow
	for _, t := range txns {
		if t.Date == "" {
			continue
		}
		i, ok := index[t.Date]
		if !ok {
			i = len(out)
			index[t.Date] = i
			out = append(out, DayFlow{Date: t.Date})
		}
		amt := amount(t)
		if amt.IsNegative() {
			out[i].Expense = out[i].Expense.Add(amt.Abs())
		} else {
			out[i].Income = out[i].Income.Add(amt)
		}
	}

	slices.SortStableFunc(out, func(a, b DayFlow) int {
		return compareDates(a.Date, b.Date)
	})
	return out
}

// TopMerchants totals absolute amounts by merchant, taken as the first word of the description,
// and returns the n largest.
func TopMerchants(txns []api.Transaction, n int) []MerchantTotal {
	if n <= 0 {
		n = DefaultTopMerchants
	}

	totals := make(map[string]decimal.Decimal)
	for _, t := range txns {
		m := Merchant(t.Description)
		totals[m] = totals[m].Add(amount(t).Abs())
	}

	out := make([]MerchantTotal, 0, len(totals))
	for m, total := range totals {
		out = append(out, MerchantTotal{Merchant: m, Total: total})
	}
	slices.SortFunc(out, func(a, b MerchantTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Merchant, b.Merchant)
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Merchant returns the text before the first space of a description, or the whole description
// when it starts with a space.
func Merchant(description string) string {
	first, _, _ := strings.Cut(description, " ")
	if first == "" {
		return description
	}
	return first
}

// Build computes every view over txns after applying Filter.
func Build(txns []api.Transaction, excludeIncome bool) Summary {
	filtered := Filter(txns, excludeIncome)

	s := Summary{Count: len(filtered)}
	for _, t := range filtered {
		amt := amount(t)
		if amt.IsNegative() {
			s.Expense = s.Expense.Add(amt.Abs())
		} else {
			s.Income = s.Income.Add(amt)
		}
	}
	s.Net = s.Income.Sub(s.Expense)
	s.Categories = ByCategory(filtered)
	s.Daily = DailyFlow(filtered)
	s.Merchants = TopMerchants(filtered, DefaultTopMerchants)
	return s
}

func amount(t api.Transaction) decimal.Decimal {
	return decimal.NewFromFloat(t.Amount)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// compareDates orders parseable dates chronologically ahead of unparseable ones, which are
// ordered lexically.
func compareDates(a, b string) int {
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	switch {
	case okA && okB:
		if c := ta.Compare(tb); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
