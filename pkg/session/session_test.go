package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/categorize"
	"github.com/ArionMiles/budgetr/pkg/ingest"
	"github.com/ArionMiles/budgetr/pkg/notify"
	csvreader "github.com/ArionMiles/budgetr/pkg/reader/csv"
	"github.com/ArionMiles/budgetr/pkg/ruleio"
	"github.com/ArionMiles/budgetr/pkg/rules"
	"github.com/ArionMiles/budgetr/pkg/storage/file"
)

func newSession(t *testing.T, initial ...api.Rule) *Session {
	t.Helper()
	storage := file.New(filepath.Join(t.TempDir(), "rules.json"), nil)
	if len(initial) > 0 {
		require.NoError(t, storage.Save(context.Background(), initial))
	}

	loader := ingest.NewLoader(nil)
	require.NoError(t, loader.Register(".csv", csvreader.New(csvreader.Config{}, nil)))

	return New(rules.New(context.Background(), storage, nil), notify.New(notify.Config{}, nil), loader, nil)
}

func categories(txns []api.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.Category
	}
	return out
}

func TestEditCategory_GeneralizesToSimilarRows(t *testing.T) {
	s := newSession(t)
	s.Ingest([]api.Row{
		{Date: "2024-01-01", Description: "Starbucks Coffee #4521", Amount: -5.4},
		{Date: "2024-01-02", Description: "STARBUCKS STORE 0231", Amount: -4.1},
		{Date: "2024-01-03", Description: "Shell Oil 57442", Amount: -31},
	})
	assert.Equal(t, []string{"", "", ""}, categories(s.Transactions()))

	out, err := s.EditCategory(0, "Food & Drink")
	require.NoError(t, err)
	assert.True(t, out.Learned)
	assert.True(t, out.Appended)
	assert.Equal(t, api.Rule{Keyword: "starbucks", Category: "Food & Drink"}, out.Rule)

	assert.Equal(t, []string{"Food & Drink", "Food & Drink", ""}, categories(s.Transactions()))
	assert.Equal(t, []api.Rule{{Keyword: "starbucks", Category: "Food & Drink"}}, s.Rules())

	active := s.Notifier().Active()
	require.Len(t, active, 1)
	assert.Equal(t, notify.RuleLearned, active[0].Kind)
	assert.Equal(t, "Rule added/updated: 'starbucks' → Food & Drink", active[0].Message)
}

func TestEditCategory_UpdatesExistingRule(t *testing.T) {
	s := newSession(t, api.Rule{Keyword: "starbucks", Category: "Coffee"}, api.Rule{Keyword: "shell", Category: "Fuel"})
	s.Ingest([]api.Row{
		{Date: "d", Description: "Starbucks 1"},
		{Date: "d", Description: "Starbucks 2"},
	})
	assert.Equal(t, []string{"Coffee", "Coffee"}, categories(s.Transactions()))

	out, err := s.EditCategory(1, "Treats")
	require.NoError(t, err)
	assert.False(t, out.Appended)
	assert.Equal(t, []api.Rule{{Keyword: "starbucks", Category: "Treats"}, {Keyword: "shell", Category: "Fuel"}}, s.Rules())
	assert.Equal(t, []string{"Treats", "Treats"}, categories(s.Transactions()))
}

func TestEditCategory_EditedRowKeepsLiteralCategory(t *testing.T) {
	s := newSession(t, api.Rule{Keyword: "coffee", Category: "Cafe"})
	s.Ingest([]api.Row{
		{Date: "d", Description: "Starbucks Coffee"},
		{Date: "d", Description: "Blue Bottle Coffee"},
	})

	_, err := s.EditCategory(0, "Treats")
	require.NoError(t, err)

	// The earlier "coffee" rule still wins for every other row.
	assert.Equal(t, []string{"Treats", "Cafe"}, categories(s.Transactions()))

	// An explicit apply makes the edited row a pure function of the rules again.
	s.ApplyRules()
	assert.Equal(t, []string{"Cafe", "Cafe"}, categories(s.Transactions()))
}

func TestEditCategory_NoKeyword(t *testing.T) {
	s := newSession(t)
	s.Ingest([]api.Row{{Date: "d", Description: "#!?"}})

	out, err := s.EditCategory(0, "Misc")
	require.NoError(t, err)
	assert.False(t, out.Learned)
	assert.Equal(t, "Misc", out.Transaction.Category)
	assert.Empty(t, s.Rules())
	assert.Empty(t, s.Notifier().Active())
	assert.Equal(t, []string{"Misc"}, categories(s.Transactions()))
}

func TestEditCategory_OutOfRange(t *testing.T) {
	s := newSession(t)
	s.Ingest([]api.Row{{Date: "d", Description: "Shell"}})

	_, err := s.EditCategory(3, "Fuel")
	assert.ErrorIs(t, err, categorize.ErrIndexOutOfRange)
	assert.Equal(t, []string{""}, categories(s.Transactions()))
}

func TestRuleMutations_Recategorize(t *testing.T) {
	s := newSession(t)
	s.Ingest([]api.Row{
		{Date: "d", Description: "Amazon Marketplace"},
		{Date: "d", Description: "Uber Trip"},
	})

	require.NoError(t, s.AddRule(api.Rule{Keyword: "amazon", Category: "Shopping"}))
	require.NoError(t, s.AddRule(api.Rule{Keyword: "uber", Category: "Transport"}))
	assert.Equal(t, []string{"Shopping", "Transport"}, categories(s.Transactions()))

	require.NoError(t, s.UpdateRule(1, api.Rule{Keyword: "uber", Category: "Travel"}))
	assert.Equal(t, []string{"Shopping", "Travel"}, categories(s.Transactions()))

	require.NoError(t, s.RemoveRule(0))
	assert.Equal(t, []string{"", "Travel"}, categories(s.Transactions()))

	assert.ErrorIs(t, s.UpdateRule(5, api.Rule{Keyword: "x"}), rules.ErrIndexOutOfRange)
	assert.ErrorIs(t, s.AddRule(api.Rule{Keyword: "  "}), rules.ErrInvalidRule)
	assert.Equal(t, []string{"", "Travel"}, categories(s.Transactions()))
}

func TestImportRules(t *testing.T) {
	s := newSession(t, api.Rule{Keyword: "shell", Category: "Fuel"})
	s.Ingest([]api.Row{{Date: "d", Description: "Netflix.com"}, {Date: "d", Description: "Shell"}})

	doc := `[{"keyword":"netflix","category":"Subscriptions"}]`
	require.NoError(t, s.ImportRules(strings.NewReader(doc), ruleio.JSON))

	assert.Equal(t, []api.Rule{{Keyword: "netflix", Category: "Subscriptions"}}, s.Rules())
	assert.Equal(t, []string{"Subscriptions", ""}, categories(s.Transactions()))

	active := s.Notifier().Active()
	require.Len(t, active, 1)
	assert.Equal(t, notify.RulesImported, active[0].Kind)
	assert.Equal(t, "Rules imported and replaced.", active[0].Message)
}

func TestImportRules_RejectsNonList(t *testing.T) {
	prev := []api.Rule{{Keyword: "shell", Category: "Fuel"}}

	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"object", `{"keyword":"netflix","category":"Subscriptions"}`, ruleio.ErrMalformedImport},
		{"blank keyword", `[{"keyword":"ok","category":"A"},{"keyword":" ","category":"B"}]`, rules.ErrInvalidRule},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t, prev...)
			s.Ingest([]api.Row{{Date: "d", Description: "Shell"}})

			err := s.ImportRules(strings.NewReader(tc.doc), ruleio.JSON)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, prev, s.Rules())
			assert.Equal(t, []string{"Fuel"}, categories(s.Transactions()))

			active := s.Notifier().Active()
			require.Len(t, active, 1)
			assert.Equal(t, notify.ImportFailed, active[0].Kind)
			assert.True(t, strings.HasPrefix(active[0].Message, "Could not import rules: "), active[0].Message)
		})
	}
}

func TestExportRules(t *testing.T) {
	s := newSession(t, api.Rule{Keyword: "shell", Category: "Fuel"})

	var buf bytes.Buffer
	require.NoError(t, s.ExportRules(&buf, ruleio.JSON))

	other := newSession(t)
	require.NoError(t, other.ImportRules(&buf, ruleio.JSON))
	assert.Equal(t, s.Rules(), other.Rules())
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestIngestFiles(t *testing.T) {
	s := newSession(t, api.Rule{Keyword: "rent", Category: "Housing"})
	a := writeCSV(t, "a.csv", "Date,Description,Amount\n2024-01-01,Rent January,-1200\n")
	b := writeCSV(t, "b.csv", "Posted Date,Payee,Debit\n2024-01-05,Corner Shop,-3.20\n")

	require.NoError(t, s.IngestFiles(context.Background(), []string{a, b}, ingest.Options{}))
	assert.Equal(t, []api.Transaction{
		{Date: "2024-01-01", Description: "Rent January", Amount: -1200, Category: "Housing"},
		{Date: "2024-01-05", Description: "Corner Shop", Amount: -3.2},
	}, s.Transactions())
}

func TestIngestFiles_IncompleteBatchKeepsPrevious(t *testing.T) {
	s := newSession(t)
	s.Ingest([]api.Row{{Date: "d", Description: "Existing"}})
	before := s.Transactions()

	a := writeCSV(t, "a.csv", "Date,Description,Amount\n2024-01-01,New,-1\n")
	b := writeCSV(t, "b.csv", "Date,Description,Amount\n2024-01-02,Newer,-2\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.IngestFiles(ctx, []string{a, b}, ingest.Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, s.Transactions())
}

type sliceWriter struct {
	got []api.Transaction
}

func (w *sliceWriter) Write(ctx context.Context, in <-chan *api.Transaction) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-in:
			if !ok {
				return nil
			}
			w.got = append(w.got, *t)
		}
	}
}

func TestExport(t *testing.T) {
	s := newSession(t, api.Rule{Keyword: "shell", Category: "Fuel"})
	s.Ingest([]api.Row{{Date: "d1", Description: "Shell", Amount: -20}, {Date: "d2", Description: "Salary", Amount: 100}})

	w := &sliceWriter{}
	require.NoError(t, s.Export(context.Background(), w))
	assert.Equal(t, s.Transactions(), w.got)
}

func TestReport(t *testing.T) {
	s := newSession(t, api.Rule{Keyword: "shell", Category: "Fuel"})
	s.Ingest([]api.Row{{Date: "2024-01-01", Description: "Shell", Amount: -20}, {Date: "2024-01-01", Description: "Salary", Amount: 100}})

	all := s.Report(false)
	assert.Equal(t, 2, all.Count)

	expenses := s.Report(true)
	assert.Equal(t, 1, expenses.Count)
	require.Len(t, expenses.Categories, 1)
	assert.Equal(t, "Fuel", expenses.Categories[0].Category)
}

func TestRulesPersistAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	first := New(rules.New(context.Background(), file.New(path, nil), nil), nil, nil, nil)
	first.Ingest([]api.Row{{Date: "d", Description: "Trader Joe's #552"}})
	_, err := first.EditCategory(0, "Groceries")
	require.NoError(t, err)

	second := New(rules.New(context.Background(), file.New(path, nil), nil), nil, nil, nil)
	assert.Equal(t, []api.Rule{{Keyword: "trader", Category: "Groceries"}}, second.Rules())
}

func TestIngest_ConcurrentRuleChangesStayConsistent(t *testing.T) {
	s := newSession(t)
	rows := []api.Row{
		{Date: "2024-01-01", Description: "Starbucks Coffee", Amount: -5},
		{Date: "2024-01-02", Description: "Shell Oil", Amount: -30},
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Ingest(rows)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AddRule(api.Rule{Keyword: "starbucks", Category: "Coffee"}))
		}()
	}
	wg.Wait()

	txns := s.Transactions()
	assert.Equal(t, categorize.ApplyRulesToAll(txns, s.Rules()), txns)
	assert.Equal(t, []string{"Coffee", ""}, categories(txns))
}
