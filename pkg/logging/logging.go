// Package logging provides structured logging configuration using log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging configuration options.
type Config struct {
	// Level is the minimum log level to output.
	Level slog.Level
	// JSON enables JSON output format (for production).
	JSON bool
	// Output is the writer to write logs to. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns a logging configuration driven by the environment.
// LOG_LEVEL sets the level (DEBUG, INFO, WARN, ERROR; defaults to INFO) and
// LOG_FORMAT=json switches to JSON output.
func DefaultConfig() Config {
	level := slog.LevelInfo
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		level = parseLogLevel(logLevel)
	}

	return Config{
		Level:  level,
		JSON:   strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
		Output: os.Stderr,
	}
}

// Quiet returns cfg with the level raised to WARN unless it is already higher.
// Interactive commands use it so table output isn't interleaved with INFO lines.
func Quiet(cfg Config) Config {
	if cfg.Level < slog.LevelWarn {
		cfg.Level = slog.LevelWarn
	}
	return cfg
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the default slog logger with the given configuration.
func Setup(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
