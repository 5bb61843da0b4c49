package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrInvalidTiling = errors.New("invalid tiling settings")
	ErrInvalidHeight = errors.New("invalid height settings")
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the generator cannot run without.
func (c *Config) Validate() error {
	if c.Tiling.TileSize <= 0 {
		return fmt.Errorf("%w: tile_size must be positive, got %v", ErrInvalidTiling, c.Tiling.TileSize)
	}
	if c.Height.MaxHeight < c.Height.MinHeight {
		return fmt.Errorf("%w: max_height %v below min_height %v", ErrInvalidHeight, c.Height.MaxHeight, c.Height.MinHeight)
	}
	if c.Height.WorldEnd[0] <= c.Height.WorldOrigin[0] || c.Height.WorldEnd[1] <= c.Height.WorldOrigin[1] {
		return fmt.Errorf("%w: world_end must exceed world_origin", ErrInvalidHeight)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./roadtiles.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "RoadTiles")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "RoadTiles")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "roadtiles")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "roadtiles")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
