package config

import (
	"fmt"
	"os"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Ingest        IngestConfig
	Resolution    ResolutionConfig
	Observability ObservabilityConfig
	Gemini        GeminiConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type IngestConfig struct {
	SkipDuplicates bool
	SearchIndexDir string // empty = in-memory vendor index
	ArchiveDir     string // empty = source documents are not archived
}

type ResolutionConfig struct {
	SuspenseAccount    string
	ClassifierEnabled  bool
	ClassifierWorkers  int
	RateLimitPerSecond int
	RateLimitBurst     int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
	LogLevel       string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "ledger-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Ingest: IngestConfig{
			SkipDuplicates: getEnvAsBool("INGEST_SKIP_DUPLICATES", true),
			SearchIndexDir: getEnv("SEARCH_INDEX_DIR", ""),
			ArchiveDir:     getEnv("STATEMENT_ARCHIVE_DIR", ""),
		},
		Resolution: ResolutionConfig{
			SuspenseAccount:    getEnv("SUSPENSE_ACCOUNT", "9999"),
			ClassifierEnabled:  getEnvAsBool("CLASSIFIER_ENABLED", false),
			ClassifierWorkers:  getEnvAsInt("CLASSIFIER_WORKERS", 2),
			RateLimitPerSecond: getEnvAsInt("CLASSIFIER_RATE_LIMIT_PER_SECOND", 2),
			RateLimitBurst:     getEnvAsInt("CLASSIFIER_RATE_LIMIT_BURST", 4),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", ""),
		},
	}

	if cfg.Resolution.ClassifierEnabled && cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when CLASSIFIER_ENABLED is set")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
