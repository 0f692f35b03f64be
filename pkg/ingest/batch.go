package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ArionMiles/budgetr/pkg/api"
)

// ErrNoReader is returned when no reader is registered for a file extension.
var ErrNoReader = errors.New("no reader registered for file type")

// Loader reads statement files into one complete batch of rows.
type Loader struct {
	readers map[string]api.Reader
	logger  *slog.Logger
}

// Options controls a batch load.
type Options struct {
	// Strict fails the whole batch when any file cannot be parsed.
	// By default unreadable files are logged and skipped.
	Strict bool
	// Concurrency bounds the number of files parsed at once. Zero means unbounded.
	Concurrency int
}

// NewLoader creates a loader with no registered readers.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		readers: make(map[string]api.Reader),
		logger:  logger,
	}
}

// Register associates a reader with a file extension such as ".csv".
func (l *Loader) Register(ext string, reader api.Reader) error {
	ext = strings.ToLower(ext)
	if _, exists := l.readers[ext]; exists {
		return fmt.Errorf("reader for %q already registered", ext)
	}
	l.readers[ext] = reader
	return nil
}

// Extensions returns the registered extensions.
func (l *Loader) Extensions() []string {
	exts := make([]string, 0, len(l.readers))
	for ext := range l.readers {
		exts = append(exts, ext)
	}
	return exts
}

// SelectFiles keeps the paths with a registered extension. If none qualify every path is kept,
// so a folder of oddly named exports still gets a chance to parse.
func (l *Loader) SelectFiles(paths []string) []string {
	selected := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := l.readers[strings.ToLower(filepath.Ext(p))]; ok {
			selected = append(selected, p)
		}
	}
	if len(selected) == 0 {
		return paths
	}
	return selected
}

// ExpandPaths replaces every directory in paths with the regular files directly inside it,
// sorted by name. Hidden files are skipped. Plain file paths are kept as given.
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", p, err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			out = append(out, filepath.Join(p, e.Name()))
		}
	}
	return out, nil
}

// LoadFile parses a single file with the reader registered for its extension.
// Files with an unknown extension are parsed as CSV when a CSV reader is registered.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]api.Row, error) {
	reader, ok := l.readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		reader, ok = l.readers[".csv"]
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNoReader)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := reader.Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rows, nil
}

// LoadBatch parses all files concurrently and returns their rows concatenated in path order.
// Paths are loaded as given; use SelectFiles to narrow a directory listing first.
//
// The batch is all or nothing from the caller's point of view: if ctx is canceled before every
// file has resolved, no rows are returned.
func (l *Loader) LoadBatch(ctx context.Context, paths []string, opts Options) ([]api.Row, error) {
	results := make([][]api.Row, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for i, path := range paths {
		g.Go(func() error {
			rows, err := l.LoadFile(gctx, path)
			if err != nil {
				if opts.Strict || gctx.Err() != nil {
					return err
				}
				l.logger.Warn("skipping unreadable file", "file", path, "error", err)
				return nil
			}
			l.logger.Debug("parsed file", "file", path, "rows", len(rows))
			results[i] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	rows := make([]api.Row, 0, total)
	for _, r := range results {
		rows = append(rows, r...)
	}

	l.logger.Info("loaded batch", "files", len(paths), "rows", len(rows))
	return rows, nil
}
