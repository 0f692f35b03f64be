// Package api defines the core interfaces and data structures for budgetr.
package api

import (
	"context"
	"io"
)

// Rule maps a keyword found in a transaction description to a category.
// Rules are evaluated in order; the first matching rule wins.
type Rule struct {
	Keyword  string `json:"keyword" yaml:"keyword"`
	Category string `json:"category" yaml:"category"`
}

// Transaction is a single categorized statement line.
type Transaction struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	// Amount is signed: negative values are expenses, the rest income or credits.
	Amount float64 `json:"amount"`
	// Category is derived from the rule set and recomputed whenever the rules change.
	Category string `json:"category"`
}

// Row is a raw statement record after column aliasing and amount normalization.
type Row struct {
	Date        string
	Description string
	Amount      float64
}

// Reader parses a statement export into normalized rows.
// It returns the complete set of rows for the input or an error; it never streams partial results.
type Reader interface {
	Read(ctx context.Context, r io.Reader) ([]Row, error)
}

// Writer consumes transactions from a channel and writes them to a destination.
// Implementations return when the channel is closed or the context is canceled.
type Writer interface {
	Write(ctx context.Context, in <-chan *Transaction) error
}

// RuleStorage persists the ordered rule sequence.
//
// Load must return an empty slice rather than an error when nothing has been stored yet.
type RuleStorage interface {
	Load(ctx context.Context) ([]Rule, error)
	Save(ctx context.Context, rules []Rule) error
}

// CloneRules returns a copy of rules that shares no backing array with the input.
func CloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}
