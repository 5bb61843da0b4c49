package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Tiling.TileSize != 2000 {
		t.Errorf("expected tile size 2000, got %v", cfg.Tiling.TileSize)
	}
	if cfg.Tiling.Resolution != 32 {
		t.Errorf("expected resolution 32, got %d", cfg.Tiling.Resolution)
	}

	// Threshold constants are configuration, not literals in the pipeline.
	if cfg.Mesh.DrivingBorderThreshold != 65 {
		t.Errorf("expected driving border threshold 65, got %v", cfg.Mesh.DrivingBorderThreshold)
	}
	if cfg.LaneMarks.DedupThreshold != 250 {
		t.Errorf("expected dedup threshold 250, got %v", cfg.LaneMarks.DedupThreshold)
	}
	if cfg.Mesh.NonDrivingLift != 0.15 {
		t.Errorf("expected non driving lift 0.15, got %v", cfg.Mesh.NonDrivingLift)
	}
	if cfg.Height.NonDrivingMargin != 5.0 {
		t.Errorf("expected non driving margin 5.0, got %v", cfg.Height.NonDrivingMargin)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "roadtiles.yaml")

	yamlContent := `
map:
  name: "Town10"
  xodr_path: "maps/town10.xodr"
  output_dir: "out"

tiling:
  tile_size: 500
  resolution: 8

height:
  heightmap_path: "height.png"
  min_height: -5
  max_height: 40

mesh:
  workers: 3
  simplification_percentage: 0

lane_marks:
  dedup_threshold: 300

logging:
  level: "debug"
  log_file: "gen.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Map.Name != "Town10" {
		t.Errorf("expected name Town10, got %s", cfg.Map.Name)
	}
	if cfg.Map.XODRPath != "maps/town10.xodr" {
		t.Errorf("expected xodr path, got %s", cfg.Map.XODRPath)
	}
	if cfg.Tiling.TileSize != 500 {
		t.Errorf("expected tile size 500, got %v", cfg.Tiling.TileSize)
	}
	if cfg.Tiling.TerrainX != 4 {
		t.Errorf("expected unspecified terrain_x to keep default 4, got %d", cfg.Tiling.TerrainX)
	}
	if cfg.Height.MaxHeight != 40 {
		t.Errorf("expected max height 40, got %v", cfg.Height.MaxHeight)
	}
	if cfg.Mesh.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Mesh.Workers)
	}
	if cfg.Mesh.SimplificationPercentage != 0 {
		t.Errorf("expected simplification 0, got %v", cfg.Mesh.SimplificationPercentage)
	}
	if cfg.LaneMarks.DedupThreshold != 300 {
		t.Errorf("expected dedup threshold 300, got %v", cfg.LaneMarks.DedupThreshold)
	}
	if cfg.Logging.LogFile != "gen.log" {
		t.Errorf("expected log file 'gen.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
tiling:
  tile_size: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/roadtiles.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero tile size", func(c *Config) { c.Tiling.TileSize = 0 }, ErrInvalidTiling},
		{"inverted heights", func(c *Config) { c.Height.MinHeight, c.Height.MaxHeight = 10, -10 }, ErrInvalidHeight},
		{"empty world", func(c *Config) { c.Height.WorldEnd = c.Height.WorldOrigin }, ErrInvalidHeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "map and output flags",
			setup: func() { *flagMap = "town.xodr"; *flagOut = "/tmp/tiles" },
			verify: func(cfg *Config) {
				if cfg.Map.XODRPath != "town.xodr" {
					t.Errorf("expected xodr path town.xodr, got %s", cfg.Map.XODRPath)
				}
				if cfg.Map.OutputDir != "/tmp/tiles" {
					t.Errorf("expected output /tmp/tiles, got %s", cfg.Map.OutputDir)
				}
			},
			teardown: func() { *flagMap = ""; *flagOut = "" },
		},
		{
			name:  "workers and tile size",
			setup: func() { *flagWorkers = 8; *flagTileSize = 250 },
			verify: func(cfg *Config) {
				if cfg.Mesh.Workers != 8 {
					t.Errorf("expected 8 workers, got %d", cfg.Mesh.Workers)
				}
				if cfg.Tiling.TileSize != 250 {
					t.Errorf("expected tile size 250, got %v", cfg.Tiling.TileSize)
				}
			},
			teardown: func() { *flagWorkers = 0; *flagTileSize = 0 },
		},
		{
			name:  "flat flag",
			setup: func() { *flagFlat = true },
			verify: func(cfg *Config) {
				if !cfg.Height.Flat {
					t.Error("expected flat height with flat flag")
				}
			},
			teardown: func() { *flagFlat = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "roadtiles.yaml")

	yamlContent := `
tiling:
  tile_size: 800
  resolution: 16
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagTileSize = 1000
	defer func() {
		*flagConfig = ""
		*flagTileSize = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Tiling.TileSize != 1000 {
		t.Errorf("expected tile size 1000 from flag, got %v", cfg.Tiling.TileSize)
	}
	if cfg.Tiling.Resolution != 16 {
		t.Errorf("expected resolution 16 from file, got %d", cfg.Tiling.Resolution)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.yaml")

	cfg := Default()
	cfg.Map.Name = "Saved"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload saved config: %v", err)
	}
	if loaded.Map.Name != "Saved" {
		t.Errorf("expected name Saved, got %s", loaded.Map.Name)
	}
}
