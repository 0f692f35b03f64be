// Package rules provides the ordered, persisted rule set used for categorization.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/categorize"
)

var (
	// ErrInvalidRule is returned when a rule has an empty keyword.
	ErrInvalidRule = errors.New("rule keyword must not be empty")
	// ErrIndexOutOfRange is returned when an index does not address an existing rule.
	ErrIndexOutOfRange = errors.New("rule index out of range")
)

// Store holds the canonical ordered rule sequence. Rule at index 0 has the highest precedence.
//
// Every successful mutation is persisted through the configured storage. Persistence failures
// are logged and never change the in-memory result of the mutation.
type Store struct {
	mu      sync.Mutex
	rules   []api.Rule
	storage api.RuleStorage
	logger  *slog.Logger
}

// New creates a store seeded from storage. Load failures degrade to an empty rule set.
func New(ctx context.Context, storage api.RuleStorage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		storage: storage,
		logger:  logger,
	}

	if storage != nil {
		loaded, err := storage.Load(ctx)
		if err != nil {
			logger.Warn("could not load rules, starting empty", "error", err)
			loaded = nil
		}
		s.rules = api.CloneRules(loaded)
	}

	logger.Debug("rule store initialized", "rule_count", len(s.rules))
	return s
}

// All returns a copy of the current rules in precedence order.
func (s *Store) All() []api.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return api.CloneRules(s.rules)
}

// Len returns the number of rules.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rules)
}

// ReplaceAll overwrites the whole rule set. The input is rejected wholesale if any rule
// has an empty keyword.
func (s *Store) ReplaceAll(rules []api.Rule) error {
	next := make([]api.Rule, 0, len(rules))
	for i, r := range rules {
		r, err := normalize(r)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		next = append(next, r)
	}

	return s.mutate(func([]api.Rule) ([]api.Rule, error) {
		return next, nil
	})
}

// Add appends a rule at the lowest precedence.
func (s *Store) Add(rule api.Rule) error {
	rule, err := normalize(rule)
	if err != nil {
		return err
	}

	return s.mutate(func(cur []api.Rule) ([]api.Rule, error) {
		return append(cur, rule), nil
	})
}

// Update replaces the rule at index, keeping its precedence.
func (s *Store) Update(index int, rule api.Rule) error {
	rule, err := normalize(rule)
	if err != nil {
		return err
	}

	return s.mutate(func(cur []api.Rule) ([]api.Rule, error) {
		if index < 0 || index >= len(cur) {
			return nil, fmt.Errorf("update %d: %w", index, ErrIndexOutOfRange)
		}
		cur[index] = rule
		return cur, nil
	})
}

// Remove deletes the rule at index. Later rules move up one position.
func (s *Store) Remove(index int) error {
	return s.mutate(func(cur []api.Rule) ([]api.Rule, error) {
		if index < 0 || index >= len(cur) {
			return nil, fmt.Errorf("remove %d: %w", index, ErrIndexOutOfRange)
		}
		return append(cur[:index], cur[index+1:]...), nil
	})
}

// Upsert sets the category of the rule whose keyword equals keyword exactly, or appends a
// new rule when none exists. It returns the resulting rule and whether it was appended.
func (s *Store) Upsert(keyword, category string) (api.Rule, bool, error) {
	rule, err := normalize(api.Rule{Keyword: keyword, Category: category})
	if err != nil {
		return api.Rule{}, false, err
	}
	keyword, category = rule.Keyword, rule.Category

	var appended bool
	err = s.mutate(func(cur []api.Rule) ([]api.Rule, error) {
		var next []api.Rule
		next, appended = categorize.Upsert(cur, keyword, category)
		return next, nil
	})
	if err != nil {
		return api.Rule{}, false, err
	}

	s.logger.Debug("rule upserted", "keyword", keyword, "category", category, "appended", appended)
	return api.Rule{Keyword: keyword, Category: category}, appended, nil
}

// mutate applies fn to a private copy of the rules. On success the copy replaces the current
// rules and is persisted before the lock is released, so readers never observe a state that
// differs from what was last handed to storage.
func (s *Store) mutate(fn func(cur []api.Rule) ([]api.Rule, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(api.CloneRules(s.rules))
	if err != nil {
		return err
	}
	s.rules = next
	s.persist(next)
	return nil
}

func (s *Store) persist(rules []api.Rule) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Save(context.Background(), api.CloneRules(rules)); err != nil {
		s.logger.Error("failed to persist rules", "rule_count", len(rules), "error", err)
		return
	}
	s.logger.Debug("persisted rules", "rule_count", len(rules))
}

func normalize(r api.Rule) (api.Rule, error) {
	r.Keyword = strings.TrimSpace(r.Keyword)
	r.Category = strings.TrimSpace(r.Category)
	if r.Keyword == "" {
		return api.Rule{}, ErrInvalidRule
	}
	return r, nil
}

// Shadowed returns the indexes of rules that can never match because an earlier rule's keyword
// is contained in theirs.
func Shadowed(rules []api.Rule) []int {
	var out []int
	for i := 1; i < len(rules); i++ {
		later := strings.ToLower(rules[i].Keyword)
		for _, earlier := range rules[:i] {
			if earlier.Keyword == "" {
				continue
			}
			if strings.Contains(later, strings.ToLower(earlier.Keyword)) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}
