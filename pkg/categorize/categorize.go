// Package categorize implements keyword based transaction categorization.
//
// All functions are pure: they never mutate their inputs and keep no state between calls.
// Callers that mutate the rule set are responsible for calling ApplyRulesToAll afterwards.
package categorize

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ArionMiles/budgetr/pkg/api"
)

// ErrIndexOutOfRange is returned when an edit targets a transaction that does not exist.
var ErrIndexOutOfRange = errors.New("transaction index out of range")

// minKeywordLen is the shortest token length considered a useful keyword.
const minKeywordLen = 3

var nonWord = regexp.MustCompile(`[^\w\s]`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "at": {}, "in": {}, "on": {}, "of": {},
	"for": {}, "to": {}, "by": {}, "from": {}, "with": {}, "store": {}, "inc": {}, "llc": {},
}

// MatchCategory returns the category of the first rule whose keyword appears in description,
// ignoring case. It returns an empty string when nothing matches.
func MatchCategory(description string, rules []api.Rule) string {
	if description == "" {
		return ""
	}

	lowered := strings.ToLower(description)
	for _, rule := range rules {
		if rule.Keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(rule.Keyword)) {
			return rule.Category
		}
	}

	return ""
}

// ExtractKeyword picks a merchant identifying token from a free text description.
//
// Punctuation becomes whitespace and the text is lower-cased. The first token longer than two
// characters that is not a stopword is returned; if none qualifies the first token is used.
func ExtractKeyword(description string) string {
	if description == "" {
		return ""
	}

	tokens := strings.Fields(strings.ToLower(nonWord.ReplaceAllString(description, " ")))
	for _, token := range tokens {
		if len(token) < minKeywordLen {
			continue
		}
		if _, ok := stopwords[token]; ok {
			continue
		}
		return token
	}

	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// ApplyRulesToAll recomputes the category of every transaction against rules.
func ApplyRulesToAll(transactions []api.Transaction, rules []api.Rule) []api.Transaction {
	out := make([]api.Transaction, len(transactions))
	for i, t := range transactions {
		t.Category = MatchCategory(t.Description, rules)
		out[i] = t
	}
	return out
}

// Upsert replaces the category of the rule whose keyword equals keyword exactly, keeping its
// position, or appends a new rule. It reports whether a rule was appended.
func Upsert(rules []api.Rule, keyword, category string) ([]api.Rule, bool) {
	out := api.CloneRules(rules)
	for i := range out {
		if out[i].Keyword == keyword {
			out[i].Category = category
			return out, false
		}
	}
	return append(out, api.Rule{Keyword: keyword, Category: category}), true
}

// EditResult is the outcome of a manual category edit.
type EditResult struct {
	// Transactions is a copy of the input with only the edited row changed.
	Transactions []api.Transaction
	// Rules is the rule set after learning, or an unchanged copy when nothing was learned.
	Rules []api.Rule
	// Learned is the rule created or updated by the edit. It is nil when the description
	// yields no usable keyword.
	Learned *api.Rule
}

// OnManualCategoryEdit applies a user supplied category to transactions[index] and derives a
// rule from its description so that similar transactions pick up the same category.
//
// Other rows keep their current categories; recategorizing them is left to the caller.
func OnManualCategoryEdit(transactions []api.Transaction, index int, category string, rules []api.Rule) (EditResult, error) {
	if index < 0 || index >= len(transactions) {
		return EditResult{}, ErrIndexOutOfRange
	}

	updated := make([]api.Transaction, len(transactions))
	copy(updated, transactions)
	updated[index].Category = category

	result := EditResult{
		Transactions: updated,
		Rules:        api.CloneRules(rules),
	}

	keyword := ExtractKeyword(updated[index].Description)
	if keyword == "" {
		return result, nil
	}

	result.Rules, _ = Upsert(rules, keyword, category)
	result.Learned = &api.Rule{Keyword: keyword, Category: category}
	return result, nil
}
