// Package config provides configuration loading and management for the
// liveboard screen engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete screen-engine configuration
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	NATS    NATSConfig    `yaml:"nats"`
	Session SessionConfig `yaml:"session"`
	Screen  ScreenConfig  `yaml:"screen"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// BackendConfig configures the fulfillment-service client
type BackendConfig struct {
	// URL is the fulfillment service base URL
	URL string `yaml:"url"`
	// Timeout bounds every backend request
	Timeout time.Duration `yaml:"timeout"`
	// FetchRetries is how many extra attempts a transient snapshot fetch gets
	FetchRetries int `yaml:"fetch_retries"`
}

// NATSConfig configures the push-channel connection
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
}

// SessionConfig configures credential resolution
type SessionConfig struct {
	// Dir is the directory the login flow writes token locations into
	Dir string `yaml:"dir"`
}

// ScreenConfig configures this screen's identity and sync behavior
type ScreenConfig struct {
	// Role is "manager" or "store"
	Role string `yaml:"role"`
	// ID is a stable screen identifier (generated when empty)
	ID string `yaml:"id"`
	// StoreLabel is the human store name shown on pickup tokens
	StoreLabel string `yaml:"store_label"`
	// ReconcileInterval is the unconditional refetch backstop period
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	// PostTransitionDelay is how long after an advance/confirm the
	// verification refetch is scheduled
	PostTransitionDelay time.Duration `yaml:"post_transition_delay"`
}

// HTTPConfig configures the rendering-layer HTTP surface
type HTTPConfig struct {
	// Listen is the address the screen serves its board API on
	Listen string `yaml:"listen"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Backend: BackendConfig{
			URL:          "http://localhost:8080",
			Timeout:      10 * time.Second,
			FetchRetries: 1,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Session: SessionConfig{
			Dir: filepath.Join(home, ".liveboard", "session"),
		},
		Screen: ScreenConfig{
			Role:                "store",
			StoreLabel:          "Main Store",
			ReconcileInterval:   30 * time.Second,
			PostTransitionDelay: time.Second,
		},
		HTTP: HTTPConfig{
			Listen: "127.0.0.1:7180",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.Session.Dir == "" {
		return fmt.Errorf("session.dir is required")
	}
	if c.Screen.Role != "manager" && c.Screen.Role != "store" {
		return fmt.Errorf("screen.role must be manager or store, got %q", c.Screen.Role)
	}
	if c.Screen.ReconcileInterval <= 0 {
		return fmt.Errorf("screen.reconcile_interval must be positive")
	}
	if c.HTTP.Listen == "" {
		return fmt.Errorf("http.listen is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Backend
	if other.Backend.URL != "" {
		c.Backend.URL = other.Backend.URL
	}
	if other.Backend.Timeout != 0 {
		c.Backend.Timeout = other.Backend.Timeout
	}
	if other.Backend.FetchRetries != 0 {
		c.Backend.FetchRetries = other.Backend.FetchRetries
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Session
	if other.Session.Dir != "" {
		c.Session.Dir = other.Session.Dir
	}

	// Screen
	if other.Screen.Role != "" {
		c.Screen.Role = other.Screen.Role
	}
	if other.Screen.ID != "" {
		c.Screen.ID = other.Screen.ID
	}
	if other.Screen.StoreLabel != "" {
		c.Screen.StoreLabel = other.Screen.StoreLabel
	}
	if other.Screen.ReconcileInterval != 0 {
		c.Screen.ReconcileInterval = other.Screen.ReconcileInterval
	}
	if other.Screen.PostTransitionDelay != 0 {
		c.Screen.PostTransitionDelay = other.Screen.PostTransitionDelay
	}

	// HTTP
	if other.HTTP.Listen != "" {
		c.HTTP.Listen = other.HTTP.Listen
	}
}
