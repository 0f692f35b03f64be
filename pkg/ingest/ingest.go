// Package ingest normalizes raw statement tables into rows the categorizer understands.
//
// Bank exports disagree on column names, so every logical field is resolved through a
// prioritized alias list: the first alias with a non-empty value wins.
package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ArionMiles/budgetr/pkg/api"
)

// Aliases lists the accepted column names for each logical field, highest priority first.
type Aliases struct {
	Date        []string
	Description []string
	Amount      []string
}

// DefaultAliases covers the column names seen in common bank and card exports.
var DefaultAliases = Aliases{
	Date:        []string{"Date", "date", "TransactionDate", "Posted Date"},
	Description: []string{"Description", "Payee", "Merchant"},
	Amount:      []string{"Amount", "amount", "Debit", "Credit", "Transaction Amount"},
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]+`)

// ParseAmount strips currency symbols, separators and other noise and parses what is left.
// Unparseable input yields 0.
func ParseAmount(s string) float64 {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// Normalize resolves a single record keyed by column name into a Row.
// It reports false when the record has no date or no description.
func (a Aliases) Normalize(record map[string]string) (api.Row, bool) {
	row := api.Row{
		Date:        lookup(record, a.Date),
		Description: lookup(record, a.Description),
		Amount:      ParseAmount(lookup(record, a.Amount)),
	}
	if row.Date == "" || row.Description == "" {
		return api.Row{}, false
	}
	return row, true
}

// FromRecords converts a table whose first record is the header row into normalized rows.
// Records missing a date or description are dropped; blank lines are skipped.
func (a Aliases) FromRecords(records [][]string) []api.Row {
	if len(records) == 0 {
		return nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]api.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		m := make(map[string]string, len(header))
		for i, name := range header {
			if i >= len(rec) {
				break
			}
			if _, seen := m[name]; seen {
				continue
			}
			m[name] = strings.TrimSpace(rec[i])
		}
		if row, ok := a.Normalize(m); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// ToTransactions turns rows into uncategorized transactions.
func ToTransactions(rows []api.Row) []api.Transaction {
	out := make([]api.Transaction, len(rows))
	for i, r := range rows {
		out[i] = api.Transaction{
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
		}
	}
	return out
}

func lookup(record map[string]string, aliases []string) string {
	for _, name := range aliases {
		if v := record[name]; v != "" {
			return v
		}
	}
	return ""
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
