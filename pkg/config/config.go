// Package config loads and validates the governance controller
// configuration from a YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fairgov/governor/pkg/domain"
)

// TargetConfig describes how to reach the managed target system.
type TargetConfig struct {
	// BaseURL is the root of the target cluster API.
	BaseURL string `yaml:"base_url"`
	// Token is an optional bearer token.
	Token string `yaml:"token"`
	// MaxRetries overrides the transient-failure retry budget on adapter
	// calls when greater than zero.
	MaxRetries int `yaml:"max_retries"`
}

// TelemetryConfig describes the OTLP trace exporter.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Environment string `yaml:"environment"`
	Insecure    bool   `yaml:"insecure"`
}

// Config is the controller configuration.
type Config struct {
	// Mode selects active or simulated enforcement. Active mode downgrades
	// to simulated at startup when the target cannot be initialised, unless
	// RequireTarget is set.
	Mode domain.EnforcementMode `yaml:"mode"`
	// RequireTarget turns a failed target probe into a startup error
	// instead of a simulated-mode downgrade.
	RequireTarget bool `yaml:"require_target"`

	// PolicyDir is the directory holding policy YAML documents.
	PolicyDir string `yaml:"policy_dir"`
	// DefaultNamespace scopes policies and constraints without an explicit
	// namespace.
	DefaultNamespace string `yaml:"default_namespace"`

	// MetricsAddr is the listen address of the metrics/health endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	Target    TargetConfig    `yaml:"target"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Load reads the configuration file, applies environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config path is provided on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeSimulated
	}
	if cfg.PolicyDir == "" {
		cfg.PolicyDir = "policies"
	}
	if cfg.DefaultNamespace == "" {
		cfg.DefaultNamespace = "default"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GOVERNOR_MODE"); v != "" {
		cfg.Mode = domain.EnforcementMode(v)
	}
	if v := os.Getenv("GOVERNOR_POLICY_DIR"); v != "" {
		cfg.PolicyDir = v
	}
	if v := os.Getenv("GOVERNOR_DEFAULT_NAMESPACE"); v != "" {
		cfg.DefaultNamespace = v
	}
	if v := os.Getenv("GOVERNOR_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("GOVERNOR_TARGET_URL"); v != "" {
		cfg.Target.BaseURL = v
	}
	if v := os.Getenv("GOVERNOR_TARGET_TOKEN"); v != "" {
		cfg.Target.Token = v
	}
	if v := os.Getenv("GOVERNOR_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Mode {
	case domain.ModeActive, domain.ModeSimulated:
	default:
		return fmt.Errorf("invalid mode %q (expected %q or %q)", c.Mode, domain.ModeActive, domain.ModeSimulated)
	}

	if c.PolicyDir == "" {
		return fmt.Errorf("policy_dir is required")
	}

	if c.Mode == domain.ModeActive && c.Target.BaseURL == "" {
		return fmt.Errorf("target.base_url is required in active mode")
	}

	if c.RequireTarget && c.Mode != domain.ModeActive {
		return fmt.Errorf("require_target only applies to active mode")
	}

	return nil
}
