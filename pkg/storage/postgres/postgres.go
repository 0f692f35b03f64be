// Package postgres persists the rule set in a PostgreSQL database.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/budgetr/pkg/api"
)

//go:embed 001_create_rules.sql
var migrationSQL string

// Config holds the PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
	// SaveAttempts is how many times a save is tried on connection errors.
	SaveAttempts uint
	// RetryDelay is the initial delay between save attempts.
	RetryDelay time.Duration
}

// Storage implements api.RuleStorage on top of a pgx connection pool.
type Storage struct {
	pool         *pgxpool.Pool
	logger       *slog.Logger
	saveAttempts uint
	retryDelay   time.Duration
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 4
	}
	if c.SaveAttempts == 0 {
		c.SaveAttempts = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
}

// ConnString builds the keyword/value connection string for cfg.
func (c Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// New connects to PostgreSQL and applies the rules migration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.setDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	s := &Storage{
		pool:         pool,
		logger:       logger,
		saveAttempts: cfg.SaveAttempts,
		retryDelay:   cfg.RetryDelay,
	}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Load returns the stored rules ordered by position.
func (s *Storage) Load(ctx context.Context) ([]api.Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT keyword, category FROM rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}

	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (api.Rule, error) {
		var r api.Rule
		err := row.Scan(&r.Keyword, &r.Category)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	if rules == nil {
		rules = []api.Rule{}
	}
	return rules, nil
}

// Save replaces the stored rules. Connection failures are retried; constraint violations are not.
func (s *Storage) Save(ctx context.Context, rules []api.Rule) error {
	err := retry.Do(
		func() error { return s.replace(ctx, rules) },
		retry.Context(ctx),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("saving rules failed, retrying", "attempt", n+1, "error", err)
		}),
		retry.Attempts(s.saveAttempts),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("saving rules: %w", err)
	}

	s.logger.Debug("saved rules", "count", len(rules))
	return nil
}

func (s *Storage) replace(ctx context.Context, rules []api.Rule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM rules`)
	for i, r := range rules {
		batch.Queue(`INSERT INTO rules (position, keyword, category) VALUES ($1, $2, $3)`, i, r.Keyword, r.Category)
	}

	results := tx.SendBatch(ctx, batch)
	if _, err := results.Exec(); err != nil {
		results.Close()
		return fmt.Errorf("clearing rules: %w", err)
	}
	for i := range rules {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting rule %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isTransient reports whether err is worth retrying. Server side errors carrying an SQLSTATE
// (bad data, constraint violations) are final unless they belong to the connection exception class.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgconn.SafeToRetry(err) || len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	return true
}

// Close closes the connection pool.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
}
