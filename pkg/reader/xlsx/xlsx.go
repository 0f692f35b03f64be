// Package xlsx implements a Reader for spreadsheet statement exports.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/ingest"
)

// ErrNoSheet is returned when the workbook has no readable sheet.
var ErrNoSheet = errors.New("workbook has no sheets")

// Config holds configuration for the spreadsheet reader.
type Config struct {
	// Sheet is the name of the sheet to read. Defaults to the first sheet.
	Sheet string
	// Aliases maps column names to fields. Defaults to ingest.DefaultAliases.
	Aliases *ingest.Aliases
}

// Reader parses .xlsx workbooks whose first row is a header.
type Reader struct {
	sheet   string
	aliases ingest.Aliases
	logger  *slog.Logger
}

// New creates a new spreadsheet reader.
func New(cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}

	aliases := ingest.DefaultAliases
	if cfg.Aliases != nil {
		aliases = *cfg.Aliases
	}

	return &Reader{
		sheet:   cfg.Sheet,
		aliases: aliases,
		logger:  logger,
	}
}

// Read parses the configured sheet and returns its normalized rows.
func (r *Reader) Read(ctx context.Context, in io.Reader) ([]api.Row, error) {
	f, err := excelize.OpenReader(in)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("failed to close workbook", "error", err)
		}
	}()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, ErrNoSheet
	}

	// GetRows returns formatted cell values, so dates and amounts arrive as displayed.
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := r.aliases.FromRecords(records)
	r.logger.Debug("parsed workbook", "sheet", sheet, "records", len(records), "rows", len(rows))
	return rows, nil
}
