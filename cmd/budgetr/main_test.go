package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir       string
	rulesFile string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{dir: dir, rulesFile: filepath.Join(dir, "rules.json")}
	t.Setenv("BUDGETR_RULES_BACKEND", "file")
	t.Setenv("BUDGETR_RULES_FILE", env.rulesFile)
	return env
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	full := append([]string{"-env", filepath.Join(e.dir, "missing.env")}, args...)
	err := run(context.Background(), full, &out, logger)
	return out.String(), err
}

func (e testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const statement = `Date,Description,Amount
2024-03-01,Starbucks Coffee #4521,-5.40
2024-03-02,STARBUCKS STORE 0231,-4.10
2024-03-02,Payroll Deposit,2500.00
`

func TestRun_NoCommand(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t)
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, "Commands:")
}

func TestRun_UnknownCommand(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "frobnicate")
	require.ErrorIs(t, err, errUsage)
}

func TestRun_Help(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "categorize", "-h")
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestRules_AddListRemove(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "rules", "add", "-keyword", "starbucks", "-category", "Coffee")
	require.NoError(t, err)
	assert.Contains(t, out, "starbucks")

	_, err = env.run(t, "rules", "add", "-keyword", "shell", "-category", "Fuel")
	require.NoError(t, err)

	out, err = env.run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Coffee")
	assert.Contains(t, out, "Fuel")

	out, err = env.run(t, "rules", "remove", "-index", "0")
	require.NoError(t, err)
	assert.NotContains(t, out, "starbucks")
	assert.Contains(t, out, "shell")
}

func TestRules_AddBlankKeyword(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "rules", "add", "-keyword", "  ", "-category", "Coffee")
	require.Error(t, err)
}

func TestRules_ExportImport(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "rules", "add", "-keyword", "starbucks", "-category", "Coffee")
	require.NoError(t, err)

	exported := filepath.Join(env.dir, "out", "rules.yaml")
	out, err := env.run(t, "rules", "export", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "Rules exported")

	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(data), "keyword: starbucks")

	replacement := env.write(t, "new.json", `[{"keyword":"uber","category":"Transport"}]`)
	out, err = env.run(t, "rules", "import", replacement)
	require.NoError(t, err)
	assert.Contains(t, out, "Rules imported and replaced.")
	assert.Contains(t, out, "uber")
	assert.NotContains(t, out, "starbucks")
}

func TestRules_ImportMalformedKeepsRules(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "rules", "add", "-keyword", "starbucks", "-category", "Coffee")
	require.NoError(t, err)

	bad := env.write(t, "bad.json", `{"keyword":"uber"}`)
	out, err := env.run(t, "rules", "import", bad)
	require.Error(t, err)
	assert.Contains(t, out, "Could not import rules")

	out, err = env.run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "starbucks")
}

func TestCategorize_AppliesRulesAndExports(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "rules", "add", "-keyword", "starbucks", "-category", "Coffee")
	require.NoError(t, err)

	stmt := env.write(t, "march.csv", statement)
	exported := filepath.Join(env.dir, "categorized.csv")

	out, err := env.run(t, "categorize", "-out", exported, stmt)
	require.NoError(t, err)
	assert.Contains(t, out, "Spending by Category")
	assert.Contains(t, out, "Exported 3 transactions")

	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, "Date,Description,Amount,Category\n"+
		"2024-03-01,Starbucks Coffee #4521,-5.40,Coffee\n"+
		"2024-03-02,STARBUCKS STORE 0231,-4.10,Coffee\n"+
		"2024-03-02,Payroll Deposit,2500.00,\n", string(data))
}

func TestCategorize_NoFiles(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "categorize")
	require.ErrorIs(t, err, errUsage)
}

func TestLearn_PersistsRule(t *testing.T) {
	env := newTestEnv(t)
	stmt := env.write(t, "march.csv", statement)

	out, err := env.run(t, "learn", "-index", "1", "-category", "Food & Drink", stmt)
	require.NoError(t, err)
	assert.Contains(t, out, "Rule added/updated: 'starbucks' → Food & Drink")

	out, err = env.run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "starbucks")
	assert.Contains(t, out, "Food & Drink")
}

func TestLearn_RequiresIndex(t *testing.T) {
	env := newTestEnv(t)
	stmt := env.write(t, "march.csv", statement)
	_, err := env.run(t, "learn", "-category", "Coffee", stmt)
	require.ErrorIs(t, err, errUsage)
}

func TestReport(t *testing.T) {
	env := newTestEnv(t)
	stmt := env.write(t, "march.csv", statement)

	out, err := env.run(t, "report", "-exclude-income", stmt)
	require.NoError(t, err)
	assert.Contains(t, out, "Top Merchants")
	assert.Contains(t, out, "Uncategorized")
	assert.NotContains(t, out, "Payroll")
}

func TestReport_Directory(t *testing.T) {
	env := newTestEnv(t)
	stmts := filepath.Join(env.dir, "statements")
	require.NoError(t, os.MkdirAll(stmts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stmts, "march.csv"), []byte(statement), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(stmts, "notes.md"), []byte("not a statement"), 0o600))

	out, err := env.run(t, "report", stmts)
	require.NoError(t, err)
	assert.Contains(t, out, "3 transactions")
}

func TestCategorize_LoadsExplicitFilesWithAnyExtension(t *testing.T) {
	env := newTestEnv(t)
	jan := env.write(t, "jan.csv", statement)
	feb := env.write(t, "feb.dat", "Date,Description,Amount\n2024-04-01,Netflix Subscription,-15.99\n")

	out, err := env.run(t, "categorize", "-no-report", jan, feb)
	require.NoError(t, err)
	assert.Contains(t, out, "Starbucks Coffee #4521")
	assert.Contains(t, out, "Netflix Subscription")
}
