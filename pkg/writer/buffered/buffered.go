// Package buffered provides the batching loop shared by the transaction writers.
package buffered

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ArionMiles/budgetr/pkg/api"
)

// DefaultBatchSize is the default number of transactions to buffer before flushing.
const DefaultBatchSize = 50

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 5 * time.Second

// Flusher is called with each batch, in arrival order.
type Flusher func(transactions []*api.Transaction) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize is the number of transactions to buffer before flushing.
	// Defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
}

// Writer buffers transactions and flushes them in batches.
type Writer struct {
	buffer  []*api.Transaction
	mu      sync.Mutex
	flusher Flusher
	config  Config
	logger  *slog.Logger
	flushed int
}

// New creates a new buffered writer with the given flusher function.
func New(flusher Flusher, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		buffer:  make([]*api.Transaction, 0, cfg.BatchSize),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes transactions until in is closed or ctx is done. The remaining buffer is
// flushed in both cases. A failed flush stops the loop and is returned.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Transaction) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Debug("buffered writer started",
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			return w.handleShutdown(ctx)
		case <-ticker.C:
			if err := w.flush(); err != nil {
				return fmt.Errorf("flushing on interval: %w", err)
			}
		case transaction, ok := <-in:
			if done, err := w.handleTransaction(transaction, ok); done || err != nil {
				return err
			}
		}
	}
}

func (w *Writer) handleShutdown(ctx context.Context) error {
	w.logger.Info("buffered writer stopping, flushing remaining buffer")
	if err := w.flush(); err != nil {
		w.logger.Error("failed to flush on shutdown", "error", err)
	}
	return ctx.Err()
}

func (w *Writer) handleTransaction(transaction *api.Transaction, ok bool) (bool, error) {
	if !ok {
		if err := w.flush(); err != nil {
			return true, fmt.Errorf("flushing on close: %w", err)
		}
		return true, nil
	}
	if transaction == nil {
		return false, nil
	}

	w.mu.Lock()
	w.buffer = append(w.buffer, transaction)
	shouldFlush := len(w.buffer) >= w.config.BatchSize
	w.mu.Unlock()

	if shouldFlush {
		if err := w.flush(); err != nil {
			return true, fmt.Errorf("flushing batch: %w", err)
		}
	}
	return false, nil
}

// flush writes all buffered transactions using the flusher function.
func (w *Writer) flush() error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}

	toFlush := make([]*api.Transaction, len(w.buffer))
	copy(toFlush, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	if err := w.flusher(toFlush); err != nil {
		return err
	}

	w.mu.Lock()
	w.flushed += len(toFlush)
	w.mu.Unlock()

	w.logger.Debug("flushed transactions", "count", len(toFlush))
	return nil
}

// BufferLen returns the current number of buffered transactions.
func (w *Writer) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// Flushed returns how many transactions have been handed to the flusher successfully.
func (w *Writer) Flushed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushed
}
