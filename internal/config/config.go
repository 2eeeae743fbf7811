// Package config loads the reaper's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Ops auth modes.
const (
	AuthAPIKey = "api-key"
	AuthNone   = "none"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Slack. The app token is only needed for Socket Mode (serve).
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`
	SlackAppToken string `envconfig:"SLACK_APP_TOKEN"`

	// Cache
	CacheBackend string `envconfig:"CACHE_BACKEND" default:"file"`
	CacheFile    string `envconfig:"CACHE_FILE" default:"cache.json"`
	DBPath       string `envconfig:"DB_PATH"` // also enables the archive audit log

	// Evaluation
	HistoryLimit  int           `envconfig:"HISTORY_LIMIT" default:"10"`
	ListPageLimit int           `envconfig:"LIST_PAGE_LIMIT" default:"1000"`
	APIBackoff    time.Duration `envconfig:"API_BACKOFF" default:"10s"`

	// Event loop and command limits
	EventQueueSize    int           `envconfig:"EVENT_QUEUE_SIZE" default:"256"`
	CommandRateLimit  int           `envconfig:"COMMAND_RATE_LIMIT" default:"5"`
	CommandRateWindow time.Duration `envconfig:"COMMAND_RATE_WINDOW" default:"1m"`

	// Scheduled report (empty schedule disables it)
	SweepSchedule      string `envconfig:"SWEEP_SCHEDULE"`
	SweepDays          int    `envconfig:"SWEEP_DAYS" default:"90"`
	SweepReportChannel string `envconfig:"SWEEP_REPORT_CHANNEL"`

	// Archive audit log retention (0 keeps everything)
	ArchiveLogRetention time.Duration `envconfig:"ARCHIVE_LOG_RETENTION" default:"2160h"`
	RetentionSchedule   string        `envconfig:"RETENTION_SCHEDULE" default:"@daily"`

	PolicyFile string `envconfig:"POLICY_FILE"`

	// Ops HTTP server (empty address disables it)
	OpsListenAddr string `envconfig:"OPS_LISTEN_ADDR" default:":8080"`
	OpsAuthMode   string `envconfig:"OPS_AUTH_MODE" default:"api-key"`
	OpsAPIKey     string `envconfig:"OPS_API_KEY"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment reports whether console logging should be used.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// AuditEnabled reports whether archive attempts are recorded in SQLite.
func (c *Config) AuditEnabled() bool {
	return c.DBPath != ""
}

// SweepEnabled reports whether the scheduled report is configured.
func (c *Config) SweepEnabled() bool {
	return c.SweepSchedule != ""
}

// Validate checks settings shared by every command that talks to Slack.
func (c *Config) Validate() error {
	errs := []error{c.ValidateCache()}

	if c.HistoryLimit < 1 || c.HistoryLimit > 1000 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must be between 1 and 1000, got %d", c.HistoryLimit))
	}
	if c.ListPageLimit < 1 || c.ListPageLimit > 1000 {
		errs = append(errs, fmt.Errorf("LIST_PAGE_LIMIT must be between 1 and 1000, got %d", c.ListPageLimit))
	}
	if c.APIBackoff < 0 {
		errs = append(errs, errors.New("API_BACKOFF must not be negative"))
	}
	if c.SlackBotToken == "" {
		errs = append(errs, errors.New("SLACK_BOT_TOKEN is required"))
	}

	return errors.Join(errs...)
}

// ValidateCache checks the cache backend settings, the only ones the offline
// cache commands need.
func (c *Config) ValidateCache() error {
	var errs []error

	switch c.CacheBackend {
	case BackendFile:
		if c.CacheFile == "" {
			errs = append(errs, errors.New("CACHE_FILE is required for the file backend"))
		}
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", BackendFile, BackendSQLite, c.CacheBackend))
	}

	return errors.Join(errs...)
}

// ValidateServe checks the extra settings the long-running bot needs.
func (c *Config) ValidateServe() error {
	errs := []error{c.Validate()}

	if c.SlackAppToken == "" {
		errs = append(errs, errors.New("SLACK_APP_TOKEN is required for Socket Mode"))
	}
	if c.EventQueueSize < 1 {
		errs = append(errs, fmt.Errorf("EVENT_QUEUE_SIZE must be positive, got %d", c.EventQueueSize))
	}
	if c.SweepEnabled() {
		if c.SweepReportChannel == "" {
			errs = append(errs, errors.New("SWEEP_REPORT_CHANNEL is required when SWEEP_SCHEDULE is set"))
		}
		if c.SweepDays < 0 {
			errs = append(errs, fmt.Errorf("SWEEP_DAYS must not be negative, got %d", c.SweepDays))
		}
	}
	if c.OpsListenAddr != "" {
		switch c.OpsAuthMode {
		case AuthAPIKey:
			if c.OpsAPIKey == "" {
				errs = append(errs, errors.New("OPS_API_KEY is required when OPS_AUTH_MODE=api-key"))
			}
		case AuthNone:
		default:
			errs = append(errs, fmt.Errorf("OPS_AUTH_MODE must be %q or %q, got %q", AuthAPIKey, AuthNone, c.OpsAuthMode))
		}
	}

	return errors.Join(errs...)
}
