package geo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  host: 127.0.0.1
  port: 9090
data:
  base_url: http://geo.example.com/data
  preload: [low, high]
cache:
  max_size_mb: 100
  ttl: 10m
map:
  projection: mercator
  width: 800
  height: 600
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "http://geo.example.com/data", config.Data.BaseURL)
	assert.Equal(t, 100, config.Cache.MaxSizeMB)
	assert.Equal(t, 10*time.Minute, config.Cache.TTL)
	assert.Equal(t, "mercator", config.Map.Projection)
	assert.Equal(t, 800, config.Map.Width)
	assert.Equal(t, 600, config.Map.Height)

	assert.Equal(t, []DetailLevel{DetailLow, DetailHigh}, config.PreloadLevels())
	assert.Equal(t, int64(100<<20), config.CacheBudget())
}

func TestLoadConfig_DefaultsPreserved(t *testing.T) {
	// A partial file keeps defaults for everything it does not mention.
	path := writeConfigFile(t, "server:\n  port: 3000\n")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, defaults.Data.BaseURL, config.Data.BaseURL)
	assert.Equal(t, defaults.Cache.MaxSizeMB, config.Cache.MaxSizeMB)
	assert.Equal(t, defaults.Map.Projection, config.Map.Projection)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [question")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"no data source", func(c *Config) { c.Data.BaseURL = ""; c.Data.Dir = "" }, "data.base_url or data.dir"},
		{"dir only is fine", func(c *Config) { c.Data.BaseURL = ""; c.Data.Dir = "/srv/geo" }, ""},
		{"bad preload level", func(c *Config) { c.Data.Preload = []string{"extreme"} }, "data.preload[0]"},
		{"zero cache size", func(c *Config) { c.Cache.MaxSizeMB = 0 }, "cache.max_size_mb"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Minute }, "cache.ttl"},
		{"unknown projection", func(c *Config) { c.Map.Projection = "orthographic" }, "map.projection"},
		{"zero width", func(c *Config) { c.Map.Width = 0 }, "map dimensions"},
		{"zero height", func(c *Config) { c.Map.Height = 0 }, "map dimensions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
