package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"crm/internal/logger"
)

// Backend names accepted by CRM_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	// Storage
	Backend     string
	SQLitePath  string
	PostgresDSN string

	// Regional defaults
	Currency    string
	PhoneRegion string

	// Reports
	LeaderboardSize int
	DashboardTopN   int

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Google Cloud Configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// OpenAI Configuration
	OpenAIAPIKey string
	OpenAIModel  string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := Default()
	config.Backend = strings.ToLower(getEnv("CRM_BACKEND", config.Backend))
	config.SQLitePath = getEnv("CRM_SQLITE_PATH", config.SQLitePath)
	config.PostgresDSN = getEnv("CRM_POSTGRES_DSN", "")
	config.Currency = getEnv("CRM_CURRENCY", config.Currency)
	config.PhoneRegion = getEnv("CRM_PHONE_REGION", config.PhoneRegion)
	config.GoogleSheetURL = getEnv("GOOGLE_SHEET_URL", "")
	config.GoogleSheetWorksheet = getEnv("GOOGLE_SHEET_WORKSHEET", config.GoogleSheetWorksheet)
	config.GoogleCloudProject = getEnv("GOOGLE_CLOUD_PROJECT", "")
	config.GoogleCloudLocation = getEnv("GOOGLE_CLOUD_LOCATION", config.GoogleCloudLocation)
	config.DocumentAIProcessorID = getEnv("DOCUMENT_AI_PROCESSOR_ID", "")
	config.OpenAIAPIKey = getEnv("OPENAI_API_KEY", "")
	config.OpenAIModel = getEnv("OPENAI_MODEL", config.OpenAIModel)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
	config.LogTimeFormat = getEnv("LOG_TIME_FORMAT", config.LogTimeFormat)
	config.LogOutput = getEnv("LOG_OUTPUT", config.LogOutput)

	var err error
	if config.LeaderboardSize, err = getEnvInt("CRM_LEADERBOARD_SIZE", config.LeaderboardSize); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if config.DashboardTopN, err = getEnvInt("CRM_DASHBOARD_TOP", config.DashboardTopN); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		Backend:              BackendSQLite,
		SQLitePath:           "crm_invoice_db.sqlite",
		Currency:             "MYR",
		PhoneRegion:          "MY",
		LeaderboardSize:      10,
		DashboardTopN:        5,
		GoogleSheetWorksheet: "Invoices",
		GoogleCloudLocation:  "us",
		OpenAIModel:          "gpt-4o-mini",
		LogLevel:             "info",
		LogFormat:            "console",
		LogTimeFormat:        "2006-01-02T15:04:05Z07:00",
		LogOutput:            "stderr",
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("CRM_POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("CRM_BACKEND %q is not one of sqlite, postgres, memory", c.Backend)
	}
	if c.LeaderboardSize <= 0 {
		return fmt.Errorf("CRM_LEADERBOARD_SIZE must be positive")
	}
	if c.DashboardTopN <= 0 {
		return fmt.Errorf("CRM_DASHBOARD_TOP must be positive")
	}
	return nil
}

// RequireSheets reports a configuration error when the sheet sync is unset.
func (c *Config) RequireSheets() error {
	if c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is required")
	}
	return nil
}

// RequireDocumentAI reports a configuration error when invoice extraction is unset.
func (c *Config) RequireDocumentAI() error {
	if c.GoogleCloudProject == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required")
	}
	if c.DocumentAIProcessorID == "" {
		return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required")
	}
	return nil
}

// RequireOpenAI reports a configuration error when receipt matching is unset.
func (c *Config) RequireOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
