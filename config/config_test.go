package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primecut/liveboard/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Screen.ReconcileInterval)
	assert.Equal(t, time.Second, cfg.Screen.PostTransitionDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"missing backend url", func(c *config.Config) { c.Backend.URL = "" }, "backend.url"},
		{"zero timeout", func(c *config.Config) { c.Backend.Timeout = 0 }, "backend.timeout"},
		{"missing nats url", func(c *config.Config) { c.NATS.URL = "" }, "nats.url"},
		{"missing session dir", func(c *config.Config) { c.Session.Dir = "" }, "session.dir"},
		{"bad role", func(c *config.Config) { c.Screen.Role = "admin" }, "screen.role"},
		{"zero reconcile interval", func(c *config.Config) { c.Screen.ReconcileInterval = 0 }, "reconcile_interval"},
		{"missing listen address", func(c *config.Config) { c.HTTP.Listen = "" }, "http.listen"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "liveboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  url: https://fulfillment.example.com
screen:
  role: manager
  store_label: Riverside Butchery
  reconcile_interval: 15s
`), 0644))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://fulfillment.example.com", cfg.Backend.URL)
	assert.Equal(t, "manager", cfg.Screen.Role)
	assert.Equal(t, "Riverside Butchery", cfg.Screen.StoreLabel)
	assert.Equal(t, 15*time.Second, cfg.Screen.ReconcileInterval)
	// Unset fields keep their defaults.
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := config.LoadFromFile("/nonexistent/liveboard.yaml")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := config.DefaultConfig()
	base.Merge(&config.Config{
		Screen: config.ScreenConfig{Role: "manager", ID: "screen-7"},
		HTTP:   config.HTTPConfig{Listen: "0.0.0.0:9000"},
	})

	assert.Equal(t, "manager", base.Screen.Role)
	assert.Equal(t, "screen-7", base.Screen.ID)
	assert.Equal(t, "0.0.0.0:9000", base.HTTP.Listen)
	// Untouched values survive the merge.
	assert.Equal(t, "http://localhost:8080", base.Backend.URL)

	base.Merge(nil) // no-op
	assert.Equal(t, "manager", base.Screen.Role)
}
