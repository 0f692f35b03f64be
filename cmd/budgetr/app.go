package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/config"
	"github.com/ArionMiles/budgetr/pkg/ingest"
	"github.com/ArionMiles/budgetr/pkg/notify"
	csvreader "github.com/ArionMiles/budgetr/pkg/reader/csv"
	xlsxreader "github.com/ArionMiles/budgetr/pkg/reader/xlsx"
	"github.com/ArionMiles/budgetr/pkg/rules"
	"github.com/ArionMiles/budgetr/pkg/session"
	"github.com/ArionMiles/budgetr/pkg/storage/file"
	"github.com/ArionMiles/budgetr/pkg/storage/postgres"
	"github.com/ArionMiles/budgetr/pkg/storage/sqlite"
)

// app carries what every command needs and releases it when the command returns.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	out     io.Writer
	loader  *ingest.Loader
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) flagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.Usage = func() {
		fmt.Fprintf(a.out, "Usage: budgetr %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// openStorage connects the configured rule backend.
func (a *app) openStorage(ctx context.Context) (api.RuleStorage, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := a.logger.With("component", "rule_storage", "backend", a.cfg.RulesBackend)
	switch a.cfg.RulesBackend {
	case config.BackendSQLite:
		s, err := sqlite.New(a.cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite rule storage: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := s.Close(); err != nil {
				a.logger.Warn("closing sqlite", "error", err)
			}
		})
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.New(ctx, postgres.Config{
			Host:     a.cfg.PostgresHost,
			Port:     a.cfg.PostgresPort,
			Database: a.cfg.PostgresDB,
			User:     a.cfg.PostgresUser,
			Password: a.cfg.PostgresPassword,
			SSLMode:  a.cfg.PostgresSSLMode,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres rule storage: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return file.New(a.cfg.RulesFile, logger), nil
	}
}

// newLoader registers the statement readers by file extension.
func (a *app) newLoader() (*ingest.Loader, error) {
	logger := a.logger.With("component", "ingest")
	loader := ingest.NewLoader(logger)

	csv := csvreader.New(csvreader.Config{Legacy: a.cfg.LegacyCharset}, logger)
	for _, ext := range []string{".csv", ".txt"} {
		if err := loader.Register(ext, csv); err != nil {
			return nil, err
		}
	}
	if err := loader.Register(".xlsx", xlsxreader.New(xlsxreader.Config{}, logger)); err != nil {
		return nil, err
	}
	return loader, nil
}

// newSession wires storage, rules, notifications and ingestion together. Notifications are
// printed as they happen.
func (a *app) newSession(ctx context.Context) (*session.Session, error) {
	storage, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	loader, err := a.newLoader()
	if err != nil {
		return nil, fmt.Errorf("registering readers: %w", err)
	}
	a.loader = loader

	store := rules.New(ctx, storage, a.logger.With("component", "rules"))
	notifier := notify.New(notify.Config{Sink: a.printNotification}, a.logger.With("component", "notify"))

	return session.New(store, notifier, loader, a.logger.With("component", "session")), nil
}

func (a *app) printNotification(n notify.Notification) {
	fmt.Fprintln(a.out, noticeStyle(n.Kind).Render("» "+n.Message))
}

// ingestArgs expands directories in args and loads them into s. Files named explicitly are always
// loaded; files found in a directory are narrowed to the registered extensions.
func (a *app) ingestArgs(ctx context.Context, s *session.Session, args []string, strict bool) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no statement files given", errUsage)
	}

	var paths []string
	for _, arg := range args {
		expanded, err := ingest.ExpandPaths([]string{arg})
		if err != nil {
			return err
		}
		if len(expanded) == 1 && expanded[0] == arg {
			paths = append(paths, arg)
			continue
		}
		paths = append(paths, a.loader.SelectFiles(expanded)...)
	}
	if err := s.IngestFiles(ctx, paths, ingest.Options{Strict: strict}); err != nil {
		return err
	}
	return nil
}
