// Package file persists rules as a JSON array on the local filesystem.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ArionMiles/budgetr/pkg/api"
)

// DefaultPath is where rules are stored when no path is configured.
const DefaultPath = "data/rules.json"

// Storage reads and writes the rule set to a single JSON file.
type Storage struct {
	path   string
	logger *slog.Logger
}

// New creates a file backed rule storage.
func New(path string, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultPath
	}
	return &Storage{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *Storage) Path() string {
	return s.path
}

// Load returns the stored rules. A missing, empty or corrupt file yields an empty rule set.
func (s *Storage) Load(_ context.Context) ([]api.Rule, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read rules file", "file", s.path, "error", err)
		}
		return []api.Rule{}, nil
	}

	if len(data) == 0 {
		return []api.Rule{}, nil
	}

	var rules []api.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		s.logger.Warn("ignoring corrupt rules file", "file", s.path, "error", err)
		return []api.Rule{}, nil
	}
	if rules == nil {
		rules = []api.Rule{}
	}

	s.logger.Debug("loaded rules", "file", s.path, "count", len(rules))
	return rules, nil
}

// Save writes rules to a temporary file and renames it over the old one, so a crash never
// leaves a half written rule set behind.
func (s *Storage) Save(_ context.Context, rules []api.Rule) error {
	if rules == nil {
		rules = []api.Rule{}
	}

	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating rules directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing rules file: %w", err)
	}

	s.logger.Debug("saved rules", "file", s.path, "count", len(rules))
	return nil
}
