// Package csv implements a Writer that exports categorized transactions to a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/writer/buffered"
)

// Header is the first row of every file written from scratch.
var Header = []string{"Date", "Description", "Amount", "Category"}

// Writer writes transactions to a CSV file with buffered batching.
type Writer struct {
	filePath string
	file     *os.File
	writer   *csv.Writer
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the CSV writer.
type Config struct {
	// FilePath is the path to the CSV output file.
	FilePath string
	// Append adds rows to an existing file instead of replacing it.
	Append bool
	// BatchSize is the number of transactions to buffer before writing.
	BatchSize int
}

// New creates a new CSV writer.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if cfg.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(cfg.FilePath, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}

	w := &Writer{
		filePath: cfg.FilePath,
		file:     file,
		writer:   csv.NewWriter(file),
		logger:   logger,
	}

	// Write headers if file is new/empty
	stat, err := file.Stat()
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return nil, fmt.Errorf("stat csv file: %w (close error: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	if stat.Size() == 0 {
		if err := w.writeHeaders(); err != nil {
			if closeErr := file.Close(); closeErr != nil {
				return nil, fmt.Errorf("writing headers: %w (close error: %w)", err, closeErr)
			}
			return nil, fmt.Errorf("writing headers: %w", err)
		}
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{BatchSize: cfg.BatchSize}, logger.With("component", "csv_buffer"))

	logger.Info("csv writer initialized", "file", cfg.FilePath, "append", cfg.Append)
	return w, nil
}

func (w *Writer) writeHeaders() error {
	if err := w.writer.Write(Header); err != nil {
		return err
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Write consumes transactions from the input channel and writes them to CSV. The file is
// closed when Write returns.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Transaction) error {
	err := w.buffered.Write(ctx, in)
	if closeErr := w.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// flushBatch writes a batch of transactions to the CSV file.
func (w *Writer) flushBatch(transactions []*api.Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range transactions {
		record := []string{
			t.Date,
			t.Description,
			strconv.FormatFloat(t.Amount, 'f', 2, 64),
			t.Category,
		}
		if err := w.writer.Write(record); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	w.logger.Debug("wrote transactions to csv", "count", len(transactions))
	return nil
}

// Close flushes and closes the CSV file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing csv file: %w", err)
	}

	w.logger.Info("csv writer closed", "file", w.filePath)
	return nil
}
