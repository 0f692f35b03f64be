// Package config loads budgetr settings from a .env file, an optional JSON file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Rule storage backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
const ClientSecretFile = "data/client_secret.json"

// Config holds the application configuration.
type Config struct {
	// RulesBackend selects where rules are persisted: file, sqlite or postgres.
	// Environment variable: BUDGETR_RULES_BACKEND
	RulesBackend string `koanf:"BUDGETR_RULES_BACKEND"`

	// RulesFile is the JSON rule file used by the file backend.
	// Environment variable: BUDGETR_RULES_FILE
	RulesFile string `koanf:"BUDGETR_RULES_FILE"`

	// SQLitePath is the database file used by the sqlite backend.
	// Environment variable: BUDGETR_SQLITE_PATH
	SQLitePath string `koanf:"BUDGETR_SQLITE_PATH"`

	PostgresHost     string `koanf:"POSTGRES_HOST"`
	PostgresPort     int    `koanf:"POSTGRES_PORT"`
	PostgresDB       string `koanf:"POSTGRES_DB"`
	PostgresUser     string `koanf:"POSTGRES_USER"`
	PostgresPassword string `koanf:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `koanf:"POSTGRES_SSLMODE"`

	// GSheetsTitle is the title for a new Google Sheet (used when creating).
	// Environment variable: GSHEETS_TITLE
	GSheetsTitle string `koanf:"GSHEETS_TITLE"`

	// GSheetsID is the ID of an existing Google Sheet to use.
	// Environment variable: GSHEETS_ID
	GSheetsID string `koanf:"GSHEETS_ID"`

	// GSheetsName is the name of the sheet/tab within the spreadsheet.
	// Environment variable: GSHEETS_NAME
	GSheetsName string `koanf:"GSHEETS_NAME"`

	// ClientSecretFile is the Google OAuth client secret used for Sheets export.
	// Environment variable: BUDGETR_CLIENT_SECRET
	ClientSecretFile string `koanf:"BUDGETR_CLIENT_SECRET"`

	// TokenFile caches the OAuth token.
	// Environment variable: BUDGETR_TOKEN_FILE
	TokenFile string `koanf:"BUDGETR_TOKEN_FILE"`

	// LegacyCharset decodes CSV input as Windows-1252 unless it carries a BOM.
	// Environment variable: BUDGETR_LEGACY_CHARSET
	LegacyCharset bool `koanf:"BUDGETR_LEGACY_CHARSET"`
}

// Sources lists where Load reads settings from. Empty fields are skipped.
type Sources struct {
	// EnvFile is a dotenv file loaded into the process environment. Missing files are ignored.
	EnvFile string
	// ConfigFile is a flat JSON object keyed like the environment variables.
	ConfigFile string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		RulesBackend:     BackendFile,
		RulesFile:        "data/rules.json",
		SQLitePath:       "data/budgetr.db",
		PostgresPort:     5432,
		PostgresSSLMode:  "disable",
		GSheetsName:      "Transactions",
		ClientSecretFile: ClientSecretFile,
		TokenFile:        "data/token.json",
	}
}

// Load builds the configuration. Environment variables win over the JSON file, which wins over
// the defaults. Values from EnvFile never override variables already set in the environment.
func Load(src Sources) (Config, error) {
	if src.EnvFile != "" {
		if err := godotenv.Load(src.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", src.EnvFile, err)
		}
	}

	k := koanf.New(".")

	if src.ConfigFile != "" {
		if err := k.Load(file.Provider(src.ConfigFile), kJson.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.RulesBackend = strings.ToLower(strings.TrimSpace(cfg.RulesBackend))

	return cfg, nil
}

// Validate checks the rule backend settings.
func (c Config) Validate() error {
	switch c.RulesBackend {
	case BackendFile:
		if c.RulesFile == "" {
			return errors.New("BUDGETR_RULES_FILE is required for the file backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("BUDGETR_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		var missing []string
		if c.PostgresHost == "" {
			missing = append(missing, "POSTGRES_HOST")
		}
		if c.PostgresDB == "" {
			missing = append(missing, "POSTGRES_DB")
		}
		if c.PostgresUser == "" {
			missing = append(missing, "POSTGRES_USER")
		}
		if len(missing) > 0 {
			return fmt.Errorf("postgres backend requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown rules backend %q (want file, sqlite or postgres)", c.RulesBackend)
	}
	return nil
}

// ValidateSheets checks the settings needed to export to Google Sheets.
func (c Config) ValidateSheets() error {
	if c.GSheetsName == "" {
		return fmt.Errorf("GSHEETS_NAME environment variable is required")
	}
	if c.GSheetsID == "" && c.GSheetsTitle == "" {
		return fmt.Errorf("either GSHEETS_ID or GSHEETS_TITLE environment variable is required")
	}
	if _, err := os.Stat(c.ClientSecretFile); err != nil {
		return fmt.Errorf("client secret %s: %w", c.ClientSecretFile, err)
	}
	return nil
}
