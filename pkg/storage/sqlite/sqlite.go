// Package sqlite persists rules in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/ArionMiles/budgetr/pkg/api"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultPath is the database location used when none is configured.
const DefaultPath = "data/budgetr.db"

// Storage keeps the ordered rule set in a rules table keyed by position.
type Storage struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// New opens (creating if needed) the database at path and applies migrations.
func New(path string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY between our own calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Storage{db: db, path: path, logger: logger}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("sqlite rule storage ready", "path", path)
	return s, nil
}

func (s *Storage) runMigrations() error {
	// Migrations get their own connection so closing the migrator does not close s.db.
	migrateDB, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("opening migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := migratesqlite.WithInstance(migrateDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Load returns the rules ordered by position.
func (s *Storage) Load(ctx context.Context) ([]api.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT keyword, category FROM rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	rules := []api.Rule{}
	for rows.Next() {
		var r api.Rule
		if err := rows.Scan(&r.Keyword, &r.Category); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// Save replaces the stored rules in a single transaction.
func (s *Storage) Save(ctx context.Context, rules []api.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return fmt.Errorf("clearing rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO rules (position, keyword, category) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rules {
		if _, err := stmt.ExecContext(ctx, i, r.Keyword, r.Category); err != nil {
			return fmt.Errorf("inserting rule %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rules: %w", err)
	}

	s.logger.Debug("saved rules", "count", len(rules))
	return nil
}

// Close closes the database.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
