// Package csv implements a Reader for delimited text statement exports.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/ingest"
)

// Config holds configuration for the CSV reader.
type Config struct {
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
	// Legacy decodes input as Windows-1252 instead of UTF-8.
	// Several banks still export in that code page.
	Legacy bool
	// Aliases maps column names to fields. Defaults to ingest.DefaultAliases.
	Aliases *ingest.Aliases
}

// Reader parses CSV exports with a header row.
type Reader struct {
	comma   rune
	legacy  bool
	aliases ingest.Aliases
	logger  *slog.Logger
}

// New creates a new CSV reader.
func New(cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}

	comma := cfg.Comma
	if comma == 0 {
		comma = ','
	}

	aliases := ingest.DefaultAliases
	if cfg.Aliases != nil {
		aliases = *cfg.Aliases
	}

	return &Reader{
		comma:   comma,
		legacy:  cfg.Legacy,
		aliases: aliases,
		logger:  logger,
	}
}

// newDecoder returns a fresh decoder per input; transformers carry state.
// BOMOverride strips a UTF-8/UTF-16 byte order mark and otherwise defers to the fallback.
func (r *Reader) newDecoder() *encoding.Decoder {
	fallback := unicode.UTF8.NewDecoder()
	if r.legacy {
		fallback = charmap.Windows1252.NewDecoder()
	}
	return &encoding.Decoder{Transformer: unicode.BOMOverride(fallback)}
}

// Read parses the whole input and returns its normalized rows.
func (r *Reader) Read(ctx context.Context, in io.Reader) ([]api.Row, error) {
	cr := csv.NewReader(transform.NewReader(in, r.newDecoder()))
	cr.Comma = r.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := r.aliases.FromRecords(records)
	r.logger.Debug("parsed csv", "records", len(records), "rows", len(rows))
	return rows, nil
}
