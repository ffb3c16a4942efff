package config

import (
	"fmt"
	"os"
	"strconv"

	"gordd/domain/core"
	"gordd/domain/dataset"
)

// Config is the complete application configuration, read from the environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Analysis AnalysisConfig
	LogLevel string
}

// ServerConfig holds web server settings.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds persistence settings. An empty URL disables
// persistence; the service then runs analyses without storing them.
type DatabaseConfig struct {
	URL string
}

// AnalysisConfig holds the default analysis parameters. Requests may override
// any of them per run.
type AnalysisConfig struct {
	Sessions     int
	Cutoff       float64
	Effect       float64
	Seed         int64
	Bandwidth    float64
	ShippingCost float64
}

// Load reads configuration from environment variables, applying defaults, and
// validates the analysis block.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Analysis: AnalysisConfig{
			Sessions:     getEnvIntOrDefault("RDD_SESSIONS", 10000),
			Cutoff:       getEnvFloatOrDefault("RDD_CUTOFF", 50),
			Effect:       getEnvFloatOrDefault("RDD_EFFECT", 0.08),
			Seed:         getEnvInt64OrDefault("RDD_SEED", 42),
			Bandwidth:    getEnvFloatOrDefault("RDD_BANDWIDTH", 20),
			ShippingCost: getEnvFloatOrDefault("RDD_SHIPPING_COST", 5.95),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PersistenceEnabled reports whether a database is configured.
func (c *Config) PersistenceEnabled() bool {
	return c.Database.URL != ""
}

func (c *Config) validate() error {
	a := c.Analysis
	if a.Sessions <= 0 {
		return core.NewParameterError("RDD_SESSIONS", "must be positive")
	}
	if a.Cutoff < dataset.CartMin || a.Cutoff > dataset.CartMax {
		return core.NewParameterError("RDD_CUTOFF",
			fmt.Sprintf("%.2f outside cart range [%.0f, %.0f]", a.Cutoff, dataset.CartMin, dataset.CartMax))
	}
	if a.Effect < -1 || a.Effect > 1 {
		return core.NewParameterError("RDD_EFFECT", fmt.Sprintf("%.3f outside [-1, 1]", a.Effect))
	}
	if a.Bandwidth <= 0 {
		return core.NewParameterError("RDD_BANDWIDTH", "must be positive")
	}
	if a.ShippingCost < 0 {
		return core.NewParameterError("RDD_SHIPPING_COST", "must be non-negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
