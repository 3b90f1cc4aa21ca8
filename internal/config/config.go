package config

import (
	"os"
	"strconv"

	"infodyn/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Ledger   LedgerConfig
	Server   ServerConfig
	Paths    PathConfig
	Analysis AnalysisConfig
}

// LedgerConfig selects and configures the run store
type LedgerConfig struct {
	// Backend is "memory" or "postgres"
	Backend string
	// URL is the postgres connection string; required for the postgres
	// backend only
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// PathConfig holds file system paths
type PathConfig struct {
	DataFile  string
	ReportDir string
}

// AnalysisConfig holds estimator defaults applied when a request leaves a
// field unset
type AnalysisConfig struct {
	Estimator     string
	History       int
	Delay         int
	SourceHistory int
	SourceDelay   int
	CausalDelay   int
	LogBase       float64
	Normalise     bool
	Permutations  int
	Workers       int
	Seed          int64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Ledger:   loadLedgerConfig(),
		Server:   loadServerConfig(),
		Paths:    loadPathConfig(),
		Analysis: loadAnalysisConfig(),
	}
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Backend: getEnvOrDefault("LEDGER_BACKEND", "memory"),
		URL:     getEnvOrDefault("DATABASE_URL", ""),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadPathConfig() PathConfig {
	return PathConfig{
		DataFile:  getEnvOrDefault("DATA_FILE", ""),
		ReportDir: getEnvOrDefault("REPORT_DIR", "./reports"),
	}
}

func loadAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Estimator:     getEnvOrDefault("ESTIMATOR", "gaussian"),
		History:       getEnvIntOrDefault("HISTORY", 1),
		Delay:         getEnvIntOrDefault("DELAY", 1),
		SourceHistory: getEnvIntOrDefault("SOURCE_HISTORY", 1),
		SourceDelay:   getEnvIntOrDefault("SOURCE_DELAY", 1),
		CausalDelay:   getEnvIntOrDefault("CAUSAL_DELAY", 1),
		LogBase:       getEnvFloatOrDefault("LOG_BASE", 0),
		Normalise:     getEnvBoolOrDefault("NORMALISE", true),
		Permutations:  getEnvIntOrDefault("PERMUTATIONS", 500),
		Workers:       getEnvIntOrDefault("WORKERS", 0),
		Seed:          int64(getEnvIntOrDefault("SEED", 0)),
	}
}

func validateConfig(config *Config) error {
	switch config.Ledger.Backend {
	case "memory":
	case "postgres":
		if config.Ledger.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the postgres ledger backend")
		}
	default:
		return errors.ConfigInvalid("LEDGER_BACKEND must be memory or postgres")
	}
	if config.Analysis.History < 1 {
		return errors.ConfigInvalid("HISTORY must be >= 1")
	}
	if config.Analysis.Permutations < 1 {
		return errors.ConfigInvalid("PERMUTATIONS must be >= 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
