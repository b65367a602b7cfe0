// Package config loads service configuration from an optional YAML file with
// BOTGATE_* environment variable overrides, then validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"botgate/internal/models"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("BOTGATE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("BOTGATE_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("BOTGATE_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("BOTGATE_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("BOTGATE_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	// Gate configuration
	if enabled := os.Getenv("BOTGATE_GATE_ENABLED"); enabled != "" {
		config.Gate.Enabled = strings.ToLower(enabled) == "true"
	}

	if threshold := os.Getenv("BOTGATE_BLOCK_THRESHOLD"); threshold != "" {
		if v, err := strconv.Atoi(threshold); err == nil {
			config.Gate.BlockThreshold = v
		}
	}

	if threshold := os.Getenv("BOTGATE_MONITOR_THRESHOLD"); threshold != "" {
		if v, err := strconv.Atoi(threshold); err == nil {
			config.Gate.MonitorThreshold = v
		}
	}

	// Rate limit configuration
	if enabled := os.Getenv("BOTGATE_RATELIMIT_ENABLED"); enabled != "" {
		config.RateLimit.Enabled = strings.ToLower(enabled) == "true"
	}

	if strategy := os.Getenv("BOTGATE_RATELIMIT_STRATEGY"); strategy != "" {
		config.RateLimit.Strategy = strategy
	}

	if timeout := os.Getenv("BOTGATE_RATELIMIT_STORE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.RateLimit.StoreTimeout = d
		}
	}

	if failOpen := os.Getenv("BOTGATE_RATELIMIT_FAIL_OPEN"); failOpen != "" {
		config.RateLimit.FailOpen = strings.ToLower(failOpen) == "true"
	}

	// Redis configuration
	if addr := os.Getenv("BOTGATE_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}

	if password := os.Getenv("BOTGATE_REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	if db := os.Getenv("BOTGATE_REDIS_DB"); db != "" {
		if v, err := strconv.Atoi(db); err == nil {
			config.Redis.DB = v
		}
	}

	// Events configuration
	if enabled := os.Getenv("BOTGATE_AUDIT_ENABLED"); enabled != "" {
		config.Events.Audit.Enabled = strings.ToLower(enabled) == "true"
	}

	if path := os.Getenv("BOTGATE_AUDIT_PATH"); path != "" {
		config.Events.Audit.Path = path
	}

	// Logging configuration
	if level := os.Getenv("BOTGATE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("BOTGATE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("BOTGATE_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("BOTGATE_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if enabled := os.Getenv("BOTGATE_METRICS_ENABLED"); enabled != "" {
		config.Metrics.Enabled = strings.ToLower(enabled) == "true"
	}

	if port := os.Getenv("BOTGATE_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	// Observability configuration
	if name := os.Getenv("BOTGATE_SERVICE_NAME"); name != "" {
		config.Observability.ServiceName = name
	}

	if enabled := os.Getenv("BOTGATE_TRACING_ENABLED"); enabled != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(enabled) == "true"
	}

	if exporter := os.Getenv("BOTGATE_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv("BOTGATE_TRACING_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.Endpoint = endpoint
	}
}
