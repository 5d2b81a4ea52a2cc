// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported document store backends
const (
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config holds application configuration
type Config struct {
	DataDir             string // Base directory for local state (always absolute)
	LogLevel            string
	Port                int
	DevMode             bool
	Timezone            string
	Location            *time.Location
	CutoffHour          int
	CutoffMinute        int
	PortfolioConfigPath string
	Store               *StoreConfig
	Documents           *DocumentPaths
	Schedules           *ScheduleConfig
	Quotes              *QuoteConfig
}

// StoreConfig selects and configures the remote versioned document store
type StoreConfig struct {
	Backend            string
	RetryBudget        int // CAS attempts per mutation
	SQLitePath         string
	Bucket             string // S3 / GCS bucket
	Prefix             string // Key prefix inside the bucket
	S3Region           string
	S3Endpoint         string // Non-empty for R2 / MinIO style endpoints
	S3AccessKey        string
	S3SecretKey        string
	GCSCredentialsFile string // Empty uses application default credentials
}

// DocumentPaths are the document names inside the store
type DocumentPaths struct {
	Ledger   string
	Snapshot string
	State    string
}

// ScheduleConfig holds cron specs for the background jobs
type ScheduleConfig struct {
	Enabled    bool
	Refresh    string
	Confirm    string
	Checkpoint string
}

// QuoteConfig points the quote client at its endpoints
type QuoteConfig struct {
	EstimateBaseURL string
	HistoryBaseURL  string
	Timeout         time.Duration
	MaxAttempts     int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FUNDLEDGER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnvAsInt("PORT", 8080),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		Timezone:            getEnv("TZ_MARKET", "Asia/Shanghai"),
		PortfolioConfigPath: getEnv("PORTFOLIO_CONFIG", filepath.Join(absDataDir, "portfolio.yaml")),
		Store: &StoreConfig{
			Backend:            strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
			RetryBudget:        getEnvAsInt("STORE_RETRY_BUDGET", 5),
			SQLitePath:         getEnv("STORE_SQLITE_PATH", filepath.Join(absDataDir, "documents.db")),
			Bucket:             getEnv("STORE_BUCKET", ""),
			Prefix:             getEnv("STORE_PREFIX", ""),
			S3Region:           getEnv("S3_REGION", "auto"),
			S3Endpoint:         getEnv("S3_ENDPOINT", ""),
			S3AccessKey:        getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretKey:        getEnv("S3_SECRET_ACCESS_KEY", ""),
			GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		Documents: &DocumentPaths{
			Ledger:   getEnv("LEDGER_PATH", "data/transactions.csv"),
			Snapshot: getEnv("SNAPSHOT_PATH", "data/holdings_snapshot.json"),
			State:    getEnv("STATE_PATH", "data/state.json"),
		},
		Schedules: &ScheduleConfig{
			Enabled:    getEnvAsBool("SCHEDULER_ENABLED", true),
			Refresh:    getEnv("REFRESH_SCHEDULE", "*/30 9-15 * * MON-FRI"),
			Confirm:    getEnv("CONFIRM_SCHEDULE", "0 20 * * *"),
			Checkpoint: getEnv("CHECKPOINT_SCHEDULE", "0 3 * * *"),
		},
		Quotes: &QuoteConfig{
			EstimateBaseURL: getEnv("QUOTE_ESTIMATE_URL", "https://fundgz.1234567.com.cn"),
			HistoryBaseURL:  getEnv("QUOTE_HISTORY_URL", "https://api.fund.eastmoney.com"),
			Timeout:         time.Duration(getEnvAsInt("QUOTE_TIMEOUT_SECONDS", 10)) * time.Second,
			MaxAttempts:     getEnvAsInt("QUOTE_MAX_ATTEMPTS", 3),
		},
	}

	cutoff := getEnv("SETTLEMENT_CUTOFF", "15:00")
	cfg.CutoffHour, cfg.CutoffMinute, err = parseClock(cutoff)
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLEMENT_CUTOFF: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and resolves the timezone
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc

	if c.Store == nil {
		return fmt.Errorf("store configuration missing")
	}
	if c.Store.RetryBudget < 1 {
		return fmt.Errorf("STORE_RETRY_BUDGET must be at least 1, got %d", c.Store.RetryBudget)
	}
	switch c.Store.Backend {
	case BackendSQLite, BackendMemory:
	case BackendS3, BackendGCS:
		if c.Store.Bucket == "" {
			return fmt.Errorf("STORE_BUCKET is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.Store.Backend)
	}
	return nil
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
