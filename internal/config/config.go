// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir            string // Base directory for the ledger database and backup staging (always absolute)
	LogLevel           string
	Port               int
	DevMode            bool
	SettlementCurrency string
	Backup             *BackupConfig
}

// BackupConfig holds settings for the S3-compatible snapshot backups.
// Endpoint is optional and only needed for non-AWS providers (R2, MinIO).
type BackupConfig struct {
	Enabled         bool
	Schedule        string // cron expression with seconds field
	Bucket          string
	Prefix          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionCount  int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("IPO_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("GO_PORT", 8001),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		SettlementCurrency: strings.ToUpper(getEnv("SETTLEMENT_CURRENCY", "HKD")),
		Backup:             loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LedgerPath returns the location of the SQLite file holding the record store.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	// Only HKD settlement is supported
	if c.SettlementCurrency != "HKD" {
		return fmt.Errorf("unsupported settlement currency: %s", c.SettlementCurrency)
	}

	if c.Backup != nil && c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("BACKUP_BUCKET is required when backups are enabled")
		}
		if c.Backup.RetentionCount < 1 {
			return fmt.Errorf("BACKUP_RETENTION_COUNT must be at least 1")
		}
	}

	return nil
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

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"), // 03:00 daily
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Prefix:          getEnv("BACKUP_PREFIX", "ipotracker/"),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		RetentionCount:  getEnvAsInt("BACKUP_RETENTION_COUNT", 14),
	}
}
