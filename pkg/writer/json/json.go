// Package json implements a Writer that exports categorized transactions to a JSON file.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/writer/buffered"
)

// Writer writes transactions to a JSON array file with buffered batching.
type Writer struct {
	filePath     string
	transactions []*api.Transaction
	mu           sync.Mutex
	buffered     *buffered.Writer
	logger       *slog.Logger
}

// Config holds configuration for the JSON writer.
type Config struct {
	// FilePath is the path to the JSON output file.
	FilePath string
	// Append keeps transactions already present in the file.
	Append bool
	// BatchSize is the number of transactions to buffer before writing.
	BatchSize int
}

// New creates a new JSON writer.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w := &Writer{
		filePath:     cfg.FilePath,
		transactions: make([]*api.Transaction, 0),
		logger:       logger,
	}

	if cfg.Append {
		if err := w.loadExisting(); err != nil {
			logger.Warn("could not load existing transactions", "error", err)
		}
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{BatchSize: cfg.BatchSize}, logger.With("component", "json_buffer"))

	logger.Info("json writer initialized", "file", cfg.FilePath, "existing_count", len(w.transactions))
	return w, nil
}

// loadExisting loads existing transactions from the JSON file if it exists.
func (w *Writer) loadExisting() error {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, &w.transactions)
}

// Write consumes transactions from the input channel and writes them to JSON. The file always
// holds a complete array, even when nothing was received.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Transaction) error {
	if err := w.buffered.Write(ctx, in); err != nil {
		return err
	}
	return w.flushBatch(nil)
}

// flushBatch appends a batch of transactions and rewrites the JSON file.
func (w *Writer) flushBatch(transactions []*api.Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.transactions = append(w.transactions, transactions...)

	// JSON arrays can't be appended to in place.
	data, err := json.MarshalIndent(w.transactions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.filePath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(w.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}

	w.logger.Debug("wrote transactions to json",
		"batch_count", len(transactions),
		"total_count", len(w.transactions),
	)
	return nil
}

// TransactionCount returns the total number of transactions written.
func (w *Writer) TransactionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.transactions)
}
