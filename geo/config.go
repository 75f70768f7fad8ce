package geo

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the unified service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Cache  CacheConfig  `yaml:"cache"`
	Map    MapConfig    `yaml:"map"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DataConfig points at the county data source. BaseURL serves fetches;
// Dir, when set, is served as static files under /data/geo/.
type DataConfig struct {
	BaseURL string   `yaml:"base_url"`
	Dir     string   `yaml:"dir"`
	Preload []string `yaml:"preload"`
}

// CacheConfig tunes the detail-level cache.
type CacheConfig struct {
	MaxSizeMB int           `yaml:"max_size_mb"`
	TTL       time.Duration `yaml:"ttl"`
}

// MapConfig selects the projection and viewport dimensions.
type MapConfig struct {
	Projection string `yaml:"projection"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Data: DataConfig{
			BaseURL: "http://localhost:8080/data/geo",
			Preload: []string{string(DetailUltraLow), string(DetailMedium)},
		},
		Cache: CacheConfig{MaxSizeMB: 50, TTL: DefaultCacheTTL},
		Map: MapConfig{
			Projection: string(ProjectionAlbers),
			Width:      1024,
			Height:     768,
		},
	}
}

// LoadConfig loads the configuration from a YAML file and validates it.
// Unset fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Data.BaseURL == "" && c.Data.Dir == "" {
		return fmt.Errorf("one of data.base_url or data.dir is required")
	}
	for i, name := range c.Data.Preload {
		if _, err := ParseDetailLevel(name); err != nil {
			return fmt.Errorf("data.preload[%d]: %w", i, err)
		}
	}
	if c.Cache.MaxSizeMB <= 0 {
		return fmt.Errorf("cache.max_size_mb must be positive, got %d", c.Cache.MaxSizeMB)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	switch ProjectionName(c.Map.Projection) {
	case ProjectionAlbers, ProjectionMercator, ProjectionLambert:
	default:
		return fmt.Errorf("map.projection must be one of albers, mercator, lambert, got %q", c.Map.Projection)
	}
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		return fmt.Errorf("map dimensions must be positive, got %dx%d", c.Map.Width, c.Map.Height)
	}
	return nil
}

// PreloadLevels returns the configured preload list as detail levels.
func (c *Config) PreloadLevels() []DetailLevel {
	levels := make([]DetailLevel, 0, len(c.Data.Preload))
	for _, name := range c.Data.Preload {
		if level, err := ParseDetailLevel(name); err == nil {
			levels = append(levels, level)
		}
	}
	return levels
}

// CacheBudget returns the configured cache size in bytes.
func (c *Config) CacheBudget() int64 {
	return int64(c.Cache.MaxSizeMB) << 20
}
