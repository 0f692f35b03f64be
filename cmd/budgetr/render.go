package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/notify"
	"github.com/ArionMiles/budgetr/pkg/report"
)

const (
	colorRed     lipgloss.Color = "#f38ba8"
	colorGreen   lipgloss.Color = "#a6e3a1"
	colorYellow  lipgloss.Color = "#f9e2af"
	colorTeal    lipgloss.Color = "#94e2d5"
	colorLavend  lipgloss.Color = "#b4befe"
	colorOverlay lipgloss.Color = "#7f849c"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorLavend).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = cellStyle.Foreground(colorOverlay)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	borderStyle = lipgloss.NewStyle().Foreground(colorOverlay)
)

func noticeStyle(kind notify.Kind) lipgloss.Style {
	switch kind {
	case notify.RuleLearned, notify.RulesImported:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case notify.ImportFailed:
		return lipgloss.NewStyle().Foreground(colorRed)
	default:
		return lipgloss.NewStyle().Foreground(colorYellow)
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func printTransactions(w io.Writer, txns []api.Transaction) {
	if len(txns) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No transactions"))
		return
	}

	rows := make([][]string, 0, len(txns))
	for i, t := range txns {
		rows = append(rows, []string{strconv.Itoa(i), t.Date, t.Description, money(t.Amount), t.Category})
	}

	t := newTable("#", "Date", "Description", "Amount", "Category").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			switch col {
			case 3:
				if txns[row].Amount < 0 {
					return cellStyle.Foreground(colorRed).Align(lipgloss.Right)
				}
				return cellStyle.Foreground(colorGreen).Align(lipgloss.Right)
			case 4:
				if txns[row].Category == "" {
					return mutedStyle
				}
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.String())
}

func printRules(w io.Writer, rs []api.Rule) {
	if len(rs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No rules"))
		return
	}

	rows := make([][]string, 0, len(rs))
	for i, r := range rs {
		rows = append(rows, []string{strconv.Itoa(i), r.Keyword, r.Category})
	}

	t := newTable("#", "Keyword", "Category").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.String())
}

func printReport(w io.Writer, s report.Summary) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d transactions  income %s  expense %s  net %s",
		s.Count, s.Income.StringFixed(2), s.Expense.StringFixed(2), s.Net.StringFixed(2))))

	if s.Count == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No data"))
		return
	}

	// Shares are relative to the total absolute volume.
	volume := s.Income.Add(s.Expense)

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Spending by Category"))
	cats := make([][]string, 0, len(s.Categories))
	for _, c := range s.Categories {
		cats = append(cats, []string{c.Category, c.Total.StringFixed(2), share(c.Total, volume)})
	}
	fmt.Fprintln(w, totalsTable("Category", cats).String())

	fmt.Fprintln(w, titleStyle.Render("Income vs Expense (by date)"))
	days := make([][]string, 0, len(s.Daily))
	for _, d := range s.Daily {
		days = append(days, []string{d.Date, d.Income.StringFixed(2), d.Expense.StringFixed(2)})
	}
	fmt.Fprintln(w, newTable("Date", "Income", "Expense").
		Rows(days...).
		StyleFunc(rightAlignFrom(1)).
		String())

	fmt.Fprintln(w, titleStyle.Render("Top Merchants (by absolute spend)"))
	merchants := make([][]string, 0, len(s.Merchants))
	for _, m := range s.Merchants {
		merchants = append(merchants, []string{m.Merchant, m.Total.StringFixed(2), share(m.Total, volume)})
	}
	fmt.Fprintln(w, totalsTable("Merchant", merchants).String())
}

func totalsTable(label string, rows [][]string) *table.Table {
	return newTable(label, "Total", "Share").Rows(rows...).StyleFunc(rightAlignFrom(1))
}

func rightAlignFrom(first int) table.StyleFunc {
	return func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col >= first {
			return cellStyle.Align(lipgloss.Right)
		}
		return cellStyle
	}
}

// share formats part as a percentage of whole.
func share(part, whole decimal.Decimal) string {
	if whole.IsZero() {
		return "0%"
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}
