// Package config loads and validates the embargo service configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/c360/embargo/errors"
)

// NATSConfig defines the connection to the messaging substrate
type NATSConfig struct {
	URL       string `json:"url"`
	CredsFile string `json:"credsFile,omitempty"`
	Name      string `json:"name,omitempty"`
}

// SubjectsConfig names the subjects of the record pipeline
type SubjectsConfig struct {
	Input      string `json:"input"`
	Normalized string `json:"normalized"`
	Changes    string `json:"changes"`
	Output     string `json:"output"`
}

// StoresConfig names the persistent stores
type StoresConfig struct {
	LookupStoreName string `json:"lookupStoreName"`
	KeyStoreName    string `json:"keyStoreName"`
	TimeStoreName   string `json:"timeStoreName"`

	// DataDir roots the on-disk deadline indexes. Empty keeps them in
	// memory (deadlines lost on restart).
	DataDir string `json:"dataDir,omitempty"`
}

// WebsocketConfig configures the optional live output feed
type WebsocketConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// Config represents the complete application configuration
type Config struct {
	NATS           NATSConfig      `json:"nats"`
	Subjects       SubjectsConfig  `json:"subjects"`
	Stores         StoresConfig    `json:"stores"`
	ScanIntervalMs int             `json:"scanIntervalMs,omitempty"`
	Websocket      WebsocketConfig `json:"websocket,omitempty"`
	MetricsAddr    string          `json:"metricsAddr,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:  "nats://127.0.0.1:4222",
			Name: "embargo",
		},
		Subjects: SubjectsConfig{
			Input:      "embargo.records.in",
			Normalized: "embargo.records.normalized",
			Changes:    "embargo.records.changes",
			Output:     "embargo.records.out",
		},
		Stores: StoresConfig{
			LookupStoreName: "embargo-lookup",
			KeyStoreName:    "embargo-key-index",
			TimeStoreName:   "embargo-time-index",
		},
		ScanIntervalMs: 500,
		Websocket: WebsocketConfig{
			Enabled: false,
			Addr:    ":8099",
		},
		MetricsAddr: ":9090",
	}
}

// Load reads configuration from a JSON file, applies environment
// overrides, and validates the result. An empty path yields the default
// configuration (with env overrides applied).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", fmt.Sprintf("read %s", path))
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", fmt.Sprintf("parse %s", path))
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("EMBARGO_NATS_URL"); url != "" {
		c.NATS.URL = url
	}
	if creds := os.Getenv("EMBARGO_NATS_CREDS"); creds != "" {
		c.NATS.CredsFile = creds
	}
	if dir := os.Getenv("EMBARGO_DATA_DIR"); dir != "" {
		c.Stores.DataDir = dir
	}
}

// Validate checks the configuration for internal consistency
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "nats.url required")
	}

	subjects := map[string]string{
		"subjects.input":      c.Subjects.Input,
		"subjects.normalized": c.Subjects.Normalized,
		"subjects.changes":    c.Subjects.Changes,
		"subjects.output":     c.Subjects.Output,
	}
	seen := make(map[string]string, len(subjects))
	for name, subject := range subjects {
		if subject == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				fmt.Sprintf("%s required", name))
		}
		if other, dup := seen[subject]; dup {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("%s and %s share subject %q", name, other, subject))
		}
		seen[subject] = name
	}

	for name, store := range map[string]string{
		"stores.lookupStoreName": c.Stores.LookupStoreName,
		"stores.keyStoreName":    c.Stores.KeyStoreName,
		"stores.timeStoreName":   c.Stores.TimeStoreName,
	} {
		if store == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				fmt.Sprintf("%s required", name))
		}
	}

	if c.ScanIntervalMs < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"scanIntervalMs cannot be negative")
	}

	if c.Websocket.Enabled && c.Websocket.Addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"websocket.addr required when websocket.enabled")
	}

	return nil
}

// ScanInterval returns the configured scan cadence as a duration
func (c *Config) ScanInterval() time.Duration {
	if c.ScanIntervalMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.ScanIntervalMs) * time.Millisecond
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}
