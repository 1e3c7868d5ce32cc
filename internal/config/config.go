// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// the server, knowledge-base tables, snapshots, and optional integrations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ReadFailurePolicy controls what happens when a table read fails mid-scan.
type ReadFailurePolicy string

const (
	// PolicyMask replies with a generic error and stops consulting
	// lower-priority tables. This mirrors the legacy bot behavior.
	PolicyMask ReadFailurePolicy = "mask"

	// PolicyContinue skips the failed table and falls through to the next.
	PolicyContinue ReadFailurePolicy = "continue"
)

// Config holds all application configuration
type Config struct {
	// LINE Bot Configuration
	LineChannelToken  string
	LineChannelSecret string

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Knowledge Base Configuration
	SheetID           string   // Google Sheets spreadsheet ID
	SheetTables       []string // Worksheet names in match-priority order
	FollowTable       string   // Worksheet consulted for follow events (default: first table)
	SheetFormat       string   // "csv" (gviz export) or "html" (published to web)
	SheetTimeout      time.Duration
	SheetMaxRetries   int
	LocalTableDir     string            // Optional directory of CSV override tables
	ReadFailurePolicy ReadFailurePolicy // Table read failure handling (see policy consts)

	// Snapshot Configuration
	DataDir                 string        // Data directory for the SQLite snapshot store
	SnapshotTTL             time.Duration // Maximum age of snapshot rows served as fallback
	SnapshotRefreshInterval time.Duration // How often snapshots are refreshed in the background
	SnapshotFallback        bool          // Serve last-good snapshot rows when a live read fails

	// Metrics Authentication
	MetricsUsername string
	MetricsPassword string // Empty disables auth on /metrics

	// R2 unanswered-question log (optional)
	R2Endpoint    string
	R2AccessKeyID string
	R2SecretKey   string
	R2Bucket      string
	R2Prefix      string

	// Sentry / Better Stack (optional)
	SentryToken         string
	SentryHost          string
	SentryEnvironment   string
	SentrySampleRate    float64
	BetterStackToken    string
	BetterStackEndpoint string

	// Bot Configuration (embedded)
	Bot BotConfig
}

// BotConfig holds webhook-facing configuration and LINE API constraints.
type BotConfig struct {
	WebhookTimeout time.Duration // Timeout for resolving one webhook event

	GlobalRateRPS float64 // Global outbound rate limit in requests per second

	// LINE API Constraints
	MaxMessagesPerReply int // Maximum messages per reply (LINE API limit: 5)
	MaxEventsPerWebhook int // Maximum events per webhook batch
	MinReplyTokenLength int // Minimum reply token length
	MaxMessageLength    int // Maximum inbound message length accepted
}

// Mode selects which validation rules apply when loading configuration.
type Mode int

const (
	// ServerMode requires LINE credentials and the full server setup.
	ServerMode Mode = iota

	// WarmupMode is for offline tools that only touch the table sources
	// and snapshot store. LINE credentials are not required.
	WarmupMode
)

// Load reads configuration from environment variables for the server.
// It attempts to load a .env file first, then reads from env vars.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration with validation rules for the given mode.
func LoadForMode(mode Mode) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LineChannelToken:  getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineChannelSecret: getEnv("LINE_CHANNEL_SECRET", ""),

		Port:            getEnv("PORT", "10000"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", GracefulShutdown),

		SheetID:           getEnv("SHEET_ID", ""),
		SheetTables:       splitList(getEnv("SHEET_TABLES", "SimpleQnA")),
		FollowTable:       getEnv("FOLLOW_TABLE", ""),
		SheetFormat:       getEnv("SHEET_FORMAT", "csv"),
		SheetTimeout:      getDurationEnv("SHEET_TIMEOUT", SheetRequest),
		SheetMaxRetries:   getIntEnv("SHEET_MAX_RETRIES", 3),
		LocalTableDir:     getEnv("LOCAL_TABLE_DIR", ""),
		ReadFailurePolicy: ReadFailurePolicy(getEnv("READ_FAILURE_POLICY", string(PolicyMask))),

		DataDir:                 getEnv("DATA_DIR", getDefaultDataDir()),
		SnapshotTTL:             getDurationEnv("SNAPSHOT_TTL", 168*time.Hour),
		SnapshotRefreshInterval: getDurationEnv("SNAPSHOT_REFRESH_INTERVAL", SnapshotRefreshInterval),
		SnapshotFallback:        getBoolEnv("SNAPSHOT_FALLBACK", true),

		MetricsUsername: getEnv("METRICS_USERNAME", "prometheus"),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		R2Endpoint:    getEnv("R2_ENDPOINT", ""),
		R2AccessKeyID: getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretKey:   getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:      getEnv("R2_BUCKET_NAME", ""),
		R2Prefix:      getEnv("R2_UNANSWERED_PREFIX", "unanswered"),

		SentryToken:         getEnv("SENTRY_TOKEN", ""),
		SentryHost:          getEnv("SENTRY_HOST", "errors.betterstack.com"),
		SentryEnvironment:   getEnv("SENTRY_ENVIRONMENT", "production"),
		SentrySampleRate:    getFloatEnv("SENTRY_SAMPLE_RATE", 1.0),
		BetterStackToken:    getEnv("BETTERSTACK_TOKEN", ""),
		BetterStackEndpoint: getEnv("BETTERSTACK_ENDPOINT", ""),

		Bot: BotConfig{
			WebhookTimeout:      getDurationEnv("WEBHOOK_TIMEOUT", WebhookProcessing),
			GlobalRateRPS:       getFloatEnv("GLOBAL_RATE_RPS", 100.0),
			MaxMessagesPerReply: LINEMaxMessagesPerReply,
			MaxEventsPerWebhook: 100,
			MinReplyTokenLength: 10,
			MaxMessageLength:    LINEMaxTextMessageLength,
		},
	}

	if cfg.FollowTable == "" && len(cfg.SheetTables) > 0 {
		cfg.FollowTable = cfg.SheetTables[0]
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set for the server.
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode checks required configuration values for the given mode.
// WarmupMode skips LINE credential checks.
func (c *Config) ValidateForMode(mode Mode) error {
	var errs []error

	if mode == ServerMode {
		if c.LineChannelToken == "" {
			errs = append(errs, errors.New("LINE_CHANNEL_ACCESS_TOKEN is required"))
		}
		if c.LineChannelSecret == "" {
			errs = append(errs, errors.New("LINE_CHANNEL_SECRET is required"))
		}
		if c.Port == "" {
			errs = append(errs, errors.New("PORT is required"))
		}
	}
	if c.SheetID == "" && c.LocalTableDir == "" {
		errs = append(errs, errors.New("SHEET_ID or LOCAL_TABLE_DIR is required"))
	}
	if len(c.SheetTables) == 0 && c.LocalTableDir == "" {
		errs = append(errs, errors.New("SHEET_TABLES must list at least one worksheet"))
	}
	if c.SheetFormat != "csv" && c.SheetFormat != "html" {
		errs = append(errs, fmt.Errorf("SHEET_FORMAT must be csv or html, got %q", c.SheetFormat))
	}
	if c.ReadFailurePolicy != PolicyMask && c.ReadFailurePolicy != PolicyContinue {
		errs = append(errs, fmt.Errorf("READ_FAILURE_POLICY must be %q or %q, got %q", PolicyMask, PolicyContinue, c.ReadFailurePolicy))
	}
	if c.SheetTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHEET_TIMEOUT must be positive, got %v", c.SheetTimeout))
	}
	if c.SheetMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("SHEET_MAX_RETRIES cannot be negative, got %d", c.SheetMaxRetries))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	if c.SnapshotTTL <= 0 {
		errs = append(errs, fmt.Errorf("SNAPSHOT_TTL must be positive, got %v", c.SnapshotTTL))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// R2Enabled reports whether the unanswered-question log is configured.
func (c *Config) R2Enabled() bool {
	return c.R2Endpoint != "" && c.R2AccessKeyID != "" && c.R2SecretKey != "" && c.R2Bucket != ""
}

// SQLitePath returns the full path to the SQLite snapshot database file.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "snapshot.db")
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries. Order is preserved.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}
