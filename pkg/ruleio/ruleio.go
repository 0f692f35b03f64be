// Package ruleio exports and imports rule sets as JSON or YAML documents.
//
// An exported document is a plain array of {keyword, category} objects, so a file written by
// Export can be handed straight back to Import.
package ruleio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ArionMiles/budgetr/pkg/api"
)

// ErrMalformedImport is returned when an import document is not a list of rule objects.
var ErrMalformedImport = errors.New("malformed rule import")

// Format is a rule document encoding.
type Format int

const (
	// JSON is the default export format.
	JSON Format = iota
	// YAML format.
	YAML
)

func (f Format) String() string {
	switch f {
	case YAML:
		return "yaml"
	default:
		return "json"
	}
}

// FormatFromPath picks the format by file extension. Anything that is not .yaml or .yml is JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// Export writes rules to w.
func Export(w io.Writer, rules []api.Rule, format Format) error {
	if rules == nil {
		rules = []api.Rule{}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case YAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(rules); err == nil {
			err = enc.Close()
		}
	default:
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		err = enc.Encode(rules)
	}
	if err != nil {
		return fmt.Errorf("encoding rules as %s: %w", format, err)
	}

	data := buf.Bytes()
	if format != YAML {
		data = bytes.TrimSuffix(data, []byte("\n"))
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}

// Import decodes a rule document. Any document that is not a list of objects with a string
// keyword is rejected as a whole with ErrMalformedImport. Keyword validity is left to the
// rule store.
func Import(r io.Reader, format Format) ([]api.Rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}

	var doc any
	switch format {
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}

	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of rules", ErrMalformedImport)
	}

	rules := make([]api.Rule, 0, len(items))
	for i, item := range items {
		rule, err := decodeRule(item)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", ErrMalformedImport, i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func decodeRule(item any) (api.Rule, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return api.Rule{}, errors.New("not an object")
	}

	keyword, ok := obj["keyword"].(string)
	if !ok {
		return api.Rule{}, errors.New("keyword must be a string")
	}

	var category string
	if v, present := obj["category"]; present && v != nil {
		if category, ok = v.(string); !ok {
			return api.Rule{}, errors.New("category must be a string")
		}
	}

	return api.Rule{Keyword: keyword, Category: category}, nil
}
