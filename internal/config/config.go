// Package config loads the layered configuration: built-in defaults, then a
// JSON or YAML file, then environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig selects the backend and how to reach it.
type DatabaseConfig struct {
	// Dialect is one of mysql, mssql, postgres, mem.
	Dialect string `json:"dialect" yaml:"dialect"`
	// DSN is the connection string. For database/sql backends it may
	// contain %s, replaced with the target database name.
	DSN string `json:"dsn" yaml:"dsn"`
	// DriverName names the registered database/sql driver for the mysql
	// and mssql dialects.
	DriverName string `json:"driver_name" yaml:"driver_name"`
	// MaxErrorRetries overrides the engine's retry budget when positive.
	MaxErrorRetries int `json:"max_error_retries" yaml:"max_error_retries"`
	// CheckSchema toggles structural layout verification per query.
	CheckSchema bool `json:"check_schema" yaml:"check_schema"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	IdleTTL time.Duration `json:"idle_ttl" yaml:"idle_ttl"`
}

// RedisConfig holds the shared schema cache tier settings. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// TracingConfig holds trace export settings.
type TracingConfig struct {
	// Exporter is "otlp-http" or "none".
	Exporter    string  `json:"exporter" yaml:"exporter"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

// ServerConfig holds settings of the CLI's serving mode.
type ServerConfig struct {
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
}

// Config is the central configuration embedding all component configs.
type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database"`
	Pool     PoolConfig     `json:"pool" yaml:"pool"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:     "mem",
			CheckSchema: true,
		},
		Pool: PoolConfig{
			IdleTTL: 5 * time.Minute,
		},
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			SampleRatio: 1,
		},
		Server: ServerConfig{
			MetricsAddr: "",
			LogLevel:    "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file, keyed off the
// file extension, on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config: unsupported file type %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CAVE_DB_DIALECT"); v != "" {
		cfg.Database.Dialect = v
	}
	if v := os.Getenv("CAVE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CAVE_DB_DRIVER"); v != "" {
		cfg.Database.DriverName = v
	}
	if v := os.Getenv("CAVE_DB_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxErrorRetries = n
		}
	}
	if v := os.Getenv("CAVE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CAVE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CAVE_TRACING_EXPORTER"); v != "" {
		cfg.Tracing.Exporter = v
	}
	if v := os.Getenv("CAVE_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("CAVE_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("CAVE_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
}
