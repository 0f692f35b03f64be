// Package session holds the working state of a budgeting session: the current transaction
// batch, the rule store and the notifier.
//
// Every rule mutation goes through two explicit steps. The rule store is changed (and persisted)
// first, then every transaction is recategorized against the new rules with ApplyRules.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/categorize"
	"github.com/ArionMiles/budgetr/pkg/ingest"
	"github.com/ArionMiles/budgetr/pkg/notify"
	"github.com/ArionMiles/budgetr/pkg/report"
	"github.com/ArionMiles/budgetr/pkg/ruleio"
	"github.com/ArionMiles/budgetr/pkg/rules"
)

// Session is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	txns     []api.Transaction
	store    *rules.Store
	notifier *notify.Notifier
	loader   *ingest.Loader
	logger   *slog.Logger
}

// EditOutcome describes what a manual category edit changed.
type EditOutcome struct {
	// Transaction is the edited row.
	Transaction api.Transaction
	// Learned reports whether a rule was derived from the row's description.
	Learned bool
	// Rule is the learned rule. Zero when Learned is false.
	Rule api.Rule
	// Appended is true when Rule was new rather than an update of an existing keyword.
	Appended bool
}

// New creates a session. A nil notifier gets a default one; loader may be nil when only
// Ingest is used.
func New(store *rules.Store, notifier *notify.Notifier, loader *ingest.Loader, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.New(notify.Config{}, logger)
	}
	return &Session{
		store:    store,
		notifier: notifier,
		loader:   loader,
		logger:   logger,
	}
}

// Notifier returns the session's notifier.
func (s *Session) Notifier() *notify.Notifier {
	return s.notifier
}

// Ingest replaces the current batch with rows, categorized by the current rules.
func (s *Session) Ingest(rows []api.Row) {
	s.mu.Lock()
	s.txns = categorize.ApplyRulesToAll(ingest.ToTransactions(rows), s.store.All())
	count := len(s.txns)
	s.mu.Unlock()

	s.logger.Info("ingested transactions", "count", count)
}

// IngestFiles loads a complete batch from paths and replaces the current batch with it. If the
// batch cannot be completed the previous transactions are kept.
func (s *Session) IngestFiles(ctx context.Context, paths []string, opts ingest.Options) error {
	if s.loader == nil {
		return fmt.Errorf("ingesting files: %w", ingest.ErrNoReader)
	}

	rows, err := s.loader.LoadBatch(ctx, paths, opts)
	if err != nil {
		return fmt.Errorf("loading batch: %w", err)
	}

	s.Ingest(rows)
	return nil
}

// Transactions returns a copy of the current batch.
func (s *Session) Transactions() []api.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]api.Transaction, len(s.txns))
	copy(out, s.txns)
	return out
}

// Rules returns a copy of the current rules.
func (s *Session) Rules() []api.Rule {
	return s.store.All()
}

// EditCategory sets the category of the transaction at index and learns a rule from its
// description. The other rows are then recategorized; the edited row keeps the literal category.
func (s *Session) EditCategory(index int, category string) (EditOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := categorize.OnManualCategoryEdit(s.txns, index, category, s.store.All())
	if err != nil {
		return EditOutcome{}, fmt.Errorf("editing transaction %d: %w", index, err)
	}

	out := EditOutcome{Transaction: res.Transactions[index]}
	if res.Learned == nil {
		s.txns = res.Transactions
		s.logger.Debug("no keyword learned", "index", index, "description", out.Transaction.Description)
		return out, nil
	}

	rule, appended, err := s.store.Upsert(res.Learned.Keyword, res.Learned.Category)
	if err != nil {
		return EditOutcome{}, fmt.Errorf("learning rule: %w", err)
	}
	s.notifier.RuleLearned(rule.Keyword, rule.Category)

	txns := categorize.ApplyRulesToAll(res.Transactions, s.store.All())
	txns[index].Category = category
	s.txns = txns

	out.Learned = true
	out.Rule = rule
	out.Appended = appended
	s.logger.Info("learned rule from edit", "keyword", rule.Keyword, "category", rule.Category, "appended", appended)
	return out, nil
}

// AddRule appends a rule and recategorizes.
func (s *Session) AddRule(rule api.Rule) error {
	return s.mutateRules(func() error { return s.store.Add(rule) })
}

// UpdateRule replaces the rule at index and recategorizes.
func (s *Session) UpdateRule(index int, rule api.Rule) error {
	return s.mutateRules(func() error { return s.store.Update(index, rule) })
}

// RemoveRule deletes the rule at index and recategorizes.
func (s *Session) RemoveRule(index int) error {
	return s.mutateRules(func() error { return s.store.Remove(index) })
}

// ReplaceRules swaps in a new rule set and recategorizes.
func (s *Session) ReplaceRules(rs []api.Rule) error {
	return s.mutateRules(func() error { return s.store.ReplaceAll(rs) })
}

// ImportRules replaces the rule set with the document read from r. A rejected document leaves
// the rules unchanged; either way the user is notified.
func (s *Session) ImportRules(r io.Reader, format ruleio.Format) error {
	imported, err := ruleio.Import(r, format)
	if err == nil {
		err = s.ReplaceRules(imported)
	}
	if err != nil {
		s.notifier.ImportFailed(err)
		s.logger.Warn("rule import rejected", "error", err)
		return fmt.Errorf("importing rules: %w", err)
	}

	s.notifier.RulesImported()
	s.logger.Info("imported rules", "count", len(imported))
	return nil
}

// ExportRules writes the current rules to w.
func (s *Session) ExportRules(w io.Writer, format ruleio.Format) error {
	return ruleio.Export(w, s.store.All(), format)
}

// ApplyRules recategorizes every transaction against the current rules, overwriting manual edits.
func (s *Session) ApplyRules() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked()
}

func (s *Session) applyLocked() {
	s.txns = categorize.ApplyRulesToAll(s.txns, s.store.All())
}

func (s *Session) mutateRules(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		return err
	}
	s.applyLocked()
	return nil
}

// Export streams the current transactions into w and waits for it to finish.
func (s *Session) Export(ctx context.Context, w api.Writer) error {
	txns := s.Transactions()
	ch := make(chan *api.Transaction)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(ch)
		for i := range txns {
			select {
			case ch <- &txns[i]:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		return w.Write(gctx, ch)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("exporting transactions: %w", err)
	}
	s.logger.Info("exported transactions", "count", len(txns))
	return nil
}

// Report summarizes the current batch.
func (s *Session) Report(excludeIncome bool) report.Summary {
	return report.Build(s.Transactions(), excludeIncome)
}
