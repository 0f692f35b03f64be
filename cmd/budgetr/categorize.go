package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/client"
	"github.com/ArionMiles/budgetr/pkg/session"
	csvwriter "github.com/ArionMiles/budgetr/pkg/writer/csv"
	jsonwriter "github.com/ArionMiles/budgetr/pkg/writer/json"
	sheetswriter "github.com/ArionMiles/budgetr/pkg/writer/sheets"
)

// runCategorize ingests statements, prints the categorized table and report and optionally
// exports the result.
func (a *app) runCategorize(ctx context.Context, args []string) error {
	fs := a.flagSet("categorize", "FILE|DIR...")
	outPath := fs.String("out", "", "export categorized transactions to a .csv or .json file")
	toSheets := fs.Bool("sheets", false, "append categorized transactions to Google Sheets")
	excludeIncome := fs.Bool("exclude-income", false, "report expenses only")
	strict := fs.Bool("strict", false, "fail if any file cannot be parsed")
	noReport := fs.Bool("no-report", false, "skip the report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	if err := a.ingestArgs(ctx, s, fs.Args(), *strict); err != nil {
		return err
	}

	printTransactions(a.out, s.Transactions())
	if !*noReport {
		fmt.Fprintln(a.out)
		printReport(a.out, s.Report(*excludeIncome))
	}

	if *outPath != "" {
		if err := a.exportFile(ctx, s, *outPath); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Exported %d transactions to %s\n", len(s.Transactions()), *outPath)
	}
	if *toSheets {
		if err := a.exportSheets(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// runLearn sets the category of one transaction. The rule learned from it is persisted and the
// rest of the batch is recategorized.
func (a *app) runLearn(ctx context.Context, args []string) error {
	fs := a.flagSet("learn", "FILE|DIR...")
	index := fs.Int("index", -1, "row number of the transaction to edit (see 'categorize')")
	category := fs.String("category", "", "category to assign")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *index < 0 {
		return fmt.Errorf("%w: -index is required", errUsage)
	}

	s, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	if err := a.ingestArgs(ctx, s, fs.Args(), false); err != nil {
		return err
	}

	out, err := s.EditCategory(*index, *category)
	if err != nil {
		return err
	}
	if !out.Learned {
		fmt.Fprintf(a.out, "No keyword could be taken from %q; only this row was changed.\n", out.Transaction.Description)
	}

	printTransactions(a.out, s.Transactions())
	return nil
}

// runReport prints the aggregate views for the given statements.
func (a *app) runReport(ctx context.Context, args []string) error {
	fs := a.flagSet("report", "FILE|DIR...")
	excludeIncome := fs.Bool("exclude-income", false, "report expenses only")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	if err := a.ingestArgs(ctx, s, fs.Args(), false); err != nil {
		return err
	}

	printReport(a.out, s.Report(*excludeIncome))
	return nil
}

func (a *app) exportFile(ctx context.Context, s *session.Session, path string) error {
	logger := a.logger.With("component", "export")

	var w api.Writer
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		w, err = jsonwriter.New(jsonwriter.Config{FilePath: path}, logger)
	case ".csv", "":
		w, err = csvwriter.New(csvwriter.Config{FilePath: path}, logger)
	default:
		return fmt.Errorf("%w: unsupported export format %q (want .csv or .json)", errUsage, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	return s.Export(ctx, w)
}

func (a *app) exportSheets(ctx context.Context, s *session.Session) error {
	if err := a.cfg.ValidateSheets(); err != nil {
		return fmt.Errorf("invalid sheets configuration: %w", err)
	}

	httpClient, err := client.New(ctx, client.Config{
		SecretFile: a.cfg.ClientSecretFile,
		TokenFile:  a.cfg.TokenFile,
	}, sheets.SpreadsheetsScope)
	if err != nil {
		return fmt.Errorf("creating oauth client: %w", err)
	}

	w, err := sheetswriter.New(ctx, httpClient, sheetswriter.Config{
		SheetTitle:    a.cfg.GSheetsTitle,
		SheetID:       a.cfg.GSheetsID,
		SheetName:     a.cfg.GSheetsName,
		FlushInterval: 10 * time.Second,
	}, a.logger.With("component", "sheets"))
	if err != nil {
		return fmt.Errorf("creating sheets writer: %w", err)
	}

	if err := s.Export(ctx, w); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d transactions to spreadsheet %s\n", len(s.Transactions()), w.SpreadsheetID())
	return nil
}
