package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ArionMiles/budgetr/pkg/api"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("TEST_POSTGRES_HOST not set, skipping integration test")
	}
	return Config{
		Host:     os.Getenv("TEST_POSTGRES_HOST"),
		Database: os.Getenv("TEST_POSTGRES_DB"),
		User:     os.Getenv("TEST_POSTGRES_USER"),
		Password: os.Getenv("TEST_POSTGRES_PASSWORD"),
	}
}

// TestNew_ConnectionFailure tests that New returns an error when the host is unreachable.
func TestNew_ConnectionFailure(t *testing.T) {
	cfg := Config{
		Host:     "nonexistent-host",
		Port:     5432,
		Database: "budgetr",
		User:     "budgetr",
		Password: "password",
		SSLMode:  "disable",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := New(ctx, cfg, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err == nil {
		t.Error("expected error when connecting to nonexistent host, got nil")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Host: "db", User: "u", Password: "p", Database: "d"}
	cfg.setDefaults()

	if cfg.Port != 5432 {
		t.Errorf("port: got %d, want 5432", cfg.Port)
	}
	if cfg.SSLMode != "disable" {
		t.Errorf("sslmode: got %q, want disable", cfg.SSLMode)
	}
	if cfg.SaveAttempts != 3 {
		t.Errorf("save attempts: got %d, want 3", cfg.SaveAttempts)
	}

	want := "host=db port=5432 user=u password=p dbname=d sslmode=disable"
	if got := cfg.ConnString(); got != want {
		t.Errorf("conn string: got %q, want %q", got, want)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", errors.New("dial tcp: connection refused"), true},
		{"canceled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("saving: %w", context.DeadlineExceeded), false},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isTransient(tc.err); got != tc.want {
				t.Errorf("transient: got %v, want %v", got, tc.want)
			}
		})
	}
}

// TestSaveLoad tests a full replace and read back against a live database.
func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, testConfig(t), nil)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer s.Close()

	rules := []api.Rule{
		{Keyword: "zara", Category: "Clothing"},
		{Keyword: "starbucks", Category: "Food & Drink"},
	}
	if err := s.Save(ctx, rules); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(rules) {
		t.Fatalf("rules: got %d, want %d", len(got), len(rules))
	}
	for i := range rules {
		if got[i] != rules[i] {
			t.Errorf("rule %d: got %+v, want %+v", i, got[i], rules[i])
		}
	}

	if err := s.Save(ctx, nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("rules after clearing: got %d, want 0", len(got))
	}
}

// TestSave_RejectsBlankKeyword tests that a constraint violation leaves the previous set in place.
func TestSave_RejectsBlankKeyword(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, testConfig(t), nil)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer s.Close()

	prev := []api.Rule{{Keyword: "shell", Category: "Fuel"}}
	if err := s.Save(ctx, prev); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.Save(ctx, []api.Rule{{Keyword: " ", Category: "X"}}); err == nil {
		t.Error("expected error for blank keyword, got nil")
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0] != prev[0] {
		t.Errorf("rules: got %+v, want %+v", got, prev)
	}
}
