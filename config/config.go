// Package config loads the demo CLI's configuration from a YAML file with
// environment-variable overrides for deployment-specific settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashkettle/caper/phase"
)

// Config is the full configuration file.
type Config struct {
	Saga      SagaConfig   `yaml:"saga"`
	Operation phase.Config `yaml:"operation"`
	Store     StoreConfig  `yaml:"store"`
	Metrics   MetricsConfig `yaml:"metrics"`
}

// SagaConfig describes one procurement request.
type SagaConfig struct {
	Account string `yaml:"account"`
	SKU     string `yaml:"sku"`
	Qty     int    `yaml:"qty"`
	Slot    string `yaml:"slot"`
}

// StoreConfig selects and parameterizes the saga state store.
type StoreConfig struct {
	// Kind is one of "memory", "file", "redis", "postgres".
	Kind string `yaml:"kind"`
	Path string `yaml:"path,omitempty"`
	Addr string `yaml:"addr,omitempty"`
	DSN  string `yaml:"dsn,omitempty"`
}

// MetricsConfig configures the optional metrics endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Load reads and validates a config file, then applies env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyEnv()

	if cfg.Store.Kind == "" {
		cfg.Store.Kind = "memory"
	}
	switch cfg.Store.Kind {
	case "memory", "file", "redis", "postgres":
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
	return &cfg, nil
}

// applyEnv lets deployments override connection settings without editing
// the file.
func (c *Config) applyEnv() {
	c.Store.Addr = GetEnv("CAPER_REDIS_ADDR", c.Store.Addr)
	c.Store.DSN = GetEnv("CAPER_POSTGRES_DSN", c.Store.DSN)
	c.Metrics.Addr = GetEnv("CAPER_METRICS_ADDR", c.Metrics.Addr)
}
