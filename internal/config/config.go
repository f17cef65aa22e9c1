// Package config loads runtime configuration from the environment and the
// persisted email settings from the state directory.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for register state data.
	DefaultStateDir = "."
	// DefaultStoreName is used in log file names, summaries and email subjects.
	DefaultStoreName = "PandaCell"
	// DefaultSMTPTimeout bounds a single dispatch attempt.
	DefaultSMTPTimeout = 30 * time.Second
)

// Config holds process-level settings resolved from environment variables.
// Values are overridable by command line flags in cmd/pandacell.
type Config struct {
	StateDir    string
	StoreName   string
	SMTPTimeout time.Duration
	LogLevel    slog.Level
}

// FromEnv resolves the configuration from environment variables, applying
// defaults. The .env file, if any, must be loaded by the caller beforehand.
func FromEnv() Config {
	cfg := Config{
		StateDir:    os.Getenv("PANDACELL_STATE_DIR"),
		StoreName:   os.Getenv("PANDACELL_STORE_NAME"),
		SMTPTimeout: DefaultSMTPTimeout,
		LogLevel:    slog.LevelInfo,
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
	}
	if cfg.StoreName == "" {
		cfg.StoreName = DefaultStoreName
	}
	if v := os.Getenv("PANDACELL_SMTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SMTPTimeout = d
		} else {
			slog.Warn("FromEnv: invalid PANDACELL_SMTP_TIMEOUT, using default", "value", v, "default", DefaultSMTPTimeout)
		}
	}
	cfg.LogLevel = ParseLogLevel(os.Getenv("LOG_LEVEL"))
	return cfg
}

// LogsDir is where the per-day sale logs and report summaries live.
func (c Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// OutboxDir holds the pending delivery task files.
func (c Config) OutboxDir() string {
	return filepath.Join(c.StateDir, "outbox")
}

// SessionFile is the path of the persisted session state.
func (c Config) SessionFile() string {
	return filepath.Join(c.StateDir, "current_session.json")
}

// CatalogFile is the path of the product catalog.
func (c Config) CatalogFile() string {
	return filepath.Join(c.StateDir, "products.json")
}

// EmailConfigFile is the path of the persisted email settings.
func (c Config) EmailConfigFile() string {
	return filepath.Join(c.StateDir, "email_config.json")
}

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "", "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("ParseLogLevel: unknown level, using info", "value", v)
		return slog.LevelInfo
	}
}
