// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all gate components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, gate, rate limit, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - Availability-first defaults: the limiter fails open when its backing
//   store is unreachable; deployments preferring strict enforcement set
//   rate_limit.fail_open to false
package models

import (
	"errors"
	"fmt"
	"time"
)

// Counter store strategy constants
const (
	StoreStrategyMemory = "memory"
	StoreStrategyRedis  = "redis"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Gate          GateConfig          `yaml:"gate" json:"gate"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Redis         RedisConfig         `yaml:"redis" json:"redis"`
	Events        EventsConfig        `yaml:"events" json:"events"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// GateConfig controls classification thresholds and which paths skip the
// gate entirely.
type GateConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	BlockThreshold   int      `yaml:"block_threshold" json:"block_threshold"`
	MonitorThreshold int      `yaml:"monitor_threshold" json:"monitor_threshold"`
	BypassPaths      []string `yaml:"bypass_paths" json:"bypass_paths"`
}

// RateLimitConfig selects the counter-store strategy and the per-class
// quotas.
type RateLimitConfig struct {
	Enabled       bool                  `yaml:"enabled" json:"enabled"`
	Strategy      string                `yaml:"strategy" json:"strategy"`
	StoreTimeout  time.Duration         `yaml:"store_timeout" json:"store_timeout"`
	FailOpen      bool                  `yaml:"fail_open" json:"fail_open"`
	SweepInterval time.Duration         `yaml:"sweep_interval" json:"sweep_interval"`
	Classes       map[string]ClassQuota `yaml:"classes" json:"classes"`
}

// ClassQuota is one endpoint class's limit/window pair.
type ClassQuota struct {
	Limit  int           `yaml:"limit" json:"limit"`
	Window time.Duration `yaml:"window" json:"window"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// EventsConfig controls security-event emission.
type EventsConfig struct {
	Audit AuditConfig `yaml:"audit" json:"audit"`
}

// AuditConfig enables the optional append-only SQLite audit sink.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	Exporter   string  `yaml:"exporter" json:"exporter"`
	Endpoint   string  `yaml:"endpoint" json:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults:
// gate enabled with the documented thresholds, in-memory counter store (no
// external dependency required to start), fail-open limiter, JSON logging
// and metrics on a separate port.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Gate: GateConfig{
			Enabled:          true,
			BlockThreshold:   50,
			MonitorThreshold: 30,
			BypassPaths: []string{
				"/health",
				"/metrics",
				"/static/",
				"/favicon.ico",
				"/_internal/",
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Strategy:      StoreStrategyMemory,
			StoreTimeout:  150 * time.Millisecond,
			FailOpen:      true,
			SweepInterval: time.Minute,
			Classes: map[string]ClassQuota{
				"ai_chat":     {Limit: 10, Window: time.Minute},
				"voice":       {Limit: 20, Window: time.Minute},
				"file_upload": {Limit: 30, Window: time.Minute},
				"general":     {Limit: 100, Window: time.Minute},
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Events: EventsConfig{
			Audit: AuditConfig{
				Enabled: false,
				Path:    "./data/audit.db",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "botgate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("invalid gate config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if c.RateLimit.Enabled && c.RateLimit.Strategy == StoreStrategyRedis && c.Redis.Addr == "" {
		return errors.New("redis address is required for the redis strategy")
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("invalid events config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	return nil
}

func (gc *GateConfig) Validate() error {
	if !gc.Enabled {
		return nil
	}

	if gc.BlockThreshold < 1 || gc.BlockThreshold > 100 {
		return errors.New("block threshold must be between 1 and 100")
	}

	if gc.MonitorThreshold < 0 || gc.MonitorThreshold > 100 {
		return errors.New("monitor threshold must be between 0 and 100")
	}

	if gc.MonitorThreshold >= gc.BlockThreshold {
		return errors.New("monitor threshold must be below the block threshold")
	}

	return nil
}

func (rc *RateLimitConfig) Validate() error {
	if !rc.Enabled {
		return nil
	}

	if rc.Strategy != StoreStrategyMemory && rc.Strategy != StoreStrategyRedis {
		return fmt.Errorf("invalid counter store strategy: %s", rc.Strategy)
	}

	if rc.StoreTimeout < 0 {
		return errors.New("store timeout cannot be negative")
	}

	if rc.SweepInterval < 0 {
		return errors.New("sweep interval cannot be negative")
	}

	for name, quota := range rc.Classes {
		if quota.Limit <= 0 {
			return fmt.Errorf("class %s: limit must be positive", name)
		}
		if quota.Window <= 0 {
			return fmt.Errorf("class %s: window must be positive", name)
		}
	}

	return nil
}

func (ec *EventsConfig) Validate() error {
	if ec.Audit.Enabled && ec.Audit.Path == "" {
		return errors.New("audit path is required when the audit sink is enabled")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, vl := range validLevels {
		if lc.Level == vl {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, vf := range validFormats {
		if lc.Format == vf {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, vo := range validOutputs {
		if lc.Output == vo {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}

	if !oc.Tracing.Enabled {
		return nil
	}

	validExporters := []string{"stdout", "otlp"}
	found := false
	for _, ve := range validExporters {
		if oc.Tracing.Exporter == ve {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid tracing exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.Exporter == "otlp" && oc.Tracing.Endpoint == "" {
		return errors.New("endpoint is required for the otlp exporter")
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}
