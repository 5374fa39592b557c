// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Modules  ModulesConfig  `yaml:"modules"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig configures snapshot and audit storage.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// ModulesConfig selects where module definitions come from.
type ModulesConfig struct {
	// Dir holds extra *.yaml module definitions. Optional.
	Dir string `yaml:"dir"`

	// Embedded loads the built-in attendance, class, student and teacher modules.
	Embedded *bool `yaml:"embedded"`
}

// LoadEmbedded reports whether the built-in modules should be loaded.
func (m ModulesConfig) LoadEmbedded() bool {
	return m.Embedded == nil || *m.Embedded
}

// AuditConfig configures the schema change log.
type AuditConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether changes are audited. Defaults to true.
func (a AuditConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds configuration from YAML bytes. ${VAR} references are
// expanded before parsing and FIELDSCHEMA_* variables override file values.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	FIELDSCHEMA_DATABASE_DRIVER  - sqlite or memory (default: sqlite)
//	FIELDSCHEMA_DATABASE_DSN     - Database path (default: fieldschema.db)
//	FIELDSCHEMA_LOG_LEVEL        - debug, info, warn, error (default: info)
//	FIELDSCHEMA_LOG_FORMAT       - json or console (default: console)
//	FIELDSCHEMA_MODULES_DIR      - Directory of extra module definitions
//	FIELDSCHEMA_MODULES_EMBEDDED - Load built-in modules (default: true)
//	FIELDSCHEMA_AUDIT_ENABLED    - Record schema changes (default: true)
//	FIELDSCHEMA_METRICS_ENABLED  - Collect metrics (default: false)
//	FIELDSCHEMA_METRICS_NAMESPACE - Metric name prefix (default: fieldschema)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads path when it exists and otherwise falls back to
// environment variables and defaults.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies FIELDSCHEMA_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIELDSCHEMA_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("FIELDSCHEMA_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("FIELDSCHEMA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FIELDSCHEMA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("FIELDSCHEMA_MODULES_DIR"); v != "" {
		cfg.Modules.Dir = v
	}
	if v := os.Getenv("FIELDSCHEMA_MODULES_EMBEDDED"); v != "" {
		b := parseBool(v)
		cfg.Modules.Embedded = &b
	}

	if v := os.Getenv("FIELDSCHEMA_AUDIT_ENABLED"); v != "" {
		b := parseBool(v)
		cfg.Audit.Enabled = &b
	}

	if v := os.Getenv("FIELDSCHEMA_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("FIELDSCHEMA_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "fieldschema.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "fieldschema"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !cfg.Modules.LoadEmbedded() && cfg.Modules.Dir == "" {
		return fmt.Errorf("modules.dir is required when modules.embedded is false")
	}
	if cfg.Modules.Dir != "" {
		info, err := os.Stat(cfg.Modules.Dir)
		if err != nil {
			return fmt.Errorf("modules.dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("modules.dir %q is not a directory", cfg.Modules.Dir)
		}
	}

	return nil
}
