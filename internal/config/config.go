// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the dhcpscry configuration file. The configuration is
// read once at startup; there is no hot reload.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the daemon.
type Config struct {
	// ListenAddr is the UDP address the DHCP observer binds to.
	ListenAddr string `yaml:"listen_addr"`

	// WebAddr is the HTTP address for the API, websocket feed and metrics.
	WebAddr string `yaml:"web_addr"`

	// DatabasePath is the sqlite file for observation persistence.
	DatabasePath string `yaml:"database_path"`

	// HistorySize bounds the in-memory ring of recent observations.
	HistorySize int `yaml:"history_size"`

	// RetentionDays is how long stored observations are kept. Zero keeps
	// them forever.
	RetentionDays int `yaml:"retention_days"`

	LogLevel  string          `yaml:"log_level"`
	Detection DetectionConfig `yaml:"detection"`
}

// DetectionConfig controls the hybrid detection engine.
type DetectionConfig struct {
	EnableHybrid                bool    `yaml:"enable_hybrid"`
	EnableSMBProbing            bool    `yaml:"enable_smb_probing"`
	SMBTimeoutSeconds           int     `yaml:"smb_timeout_seconds"`
	SMBProbeConfidenceThreshold float64 `yaml:"smb_probe_confidence_threshold"`
	SMBCacheTTLSeconds          int     `yaml:"smb_cache_ttl_seconds"`
	MaxConcurrentProbes         int     `yaml:"max_concurrent_probes"`
}

// SMBTimeout returns the probe timeout as a duration.
func (d DetectionConfig) SMBTimeout() time.Duration {
	return time.Duration(d.SMBTimeoutSeconds) * time.Second
}

// SMBCacheTTL returns the probe cache TTL as a duration.
func (d DetectionConfig) SMBCacheTTL() time.Duration {
	return time.Duration(d.SMBCacheTTLSeconds) * time.Second
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		ListenAddr:    "0.0.0.0:67",
		WebAddr:       ":8080",
		DatabasePath:  "dhcpscry.db",
		HistorySize:   1000,
		RetentionDays: 7,
		LogLevel:      "info",
		Detection: DetectionConfig{
			EnableHybrid:                true,
			EnableSMBProbing:            true,
			SMBTimeoutSeconds:           3,
			SMBProbeConfidenceThreshold: 0.8,
			SMBCacheTTLSeconds:          3600,
			MaxConcurrentProbes:         16,
		},
	}
}

// Load reads and validates a YAML configuration file. Unset fields keep their
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges on the loaded configuration.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.WebAddr == "" {
		return fmt.Errorf("web_addr must not be empty")
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", c.HistorySize)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative, got %d", c.RetentionDays)
	}
	d := c.Detection
	if d.SMBTimeoutSeconds <= 0 {
		return fmt.Errorf("detection.smb_timeout_seconds must be positive, got %d", d.SMBTimeoutSeconds)
	}
	if d.SMBProbeConfidenceThreshold < 0 || d.SMBProbeConfidenceThreshold > 1 {
		return fmt.Errorf("detection.smb_probe_confidence_threshold must be in [0,1], got %v", d.SMBProbeConfidenceThreshold)
	}
	if d.SMBCacheTTLSeconds < 0 {
		return fmt.Errorf("detection.smb_cache_ttl_seconds must not be negative, got %d", d.SMBCacheTTLSeconds)
	}
	if d.MaxConcurrentProbes <= 0 {
		return fmt.Errorf("detection.max_concurrent_probes must be positive, got %d", d.MaxConcurrentProbes)
	}
	return nil
}
