// Package config handles generator configuration loading and management.
package config

// Config holds all generator settings.
type Config struct {
	Map       MapConfig       `yaml:"map"`
	Tiling    TilingConfig    `yaml:"tiling"`
	Height    HeightConfig    `yaml:"height"`
	Mesh      MeshConfig      `yaml:"mesh"`
	LaneMarks LaneMarkConfig  `yaml:"lane_marks"`
	Props     PropsConfig     `yaml:"props"`
	Materials MaterialsConfig `yaml:"materials"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MapConfig names the input network and where generated tiles go.
type MapConfig struct {
	Name      string `yaml:"name"`       // Namespace for generated assets
	XODRPath  string `yaml:"xodr_path"`  // OpenDRIVE input
	OutputDir string `yaml:"output_dir"` // Tile files are written here
}

// TilingConfig holds the tile grid and terrain grid settings.
type TilingConfig struct {
	TileSize   float64 `yaml:"tile_size"`  // Tile edge in meters
	TerrainX   int     `yaml:"terrain_x"`  // Terrain cells per tile along X
	TerrainY   int     `yaml:"terrain_y"`  // Terrain cells per tile along Y
	Resolution int     `yaml:"resolution"` // Quads per terrain cell edge
	Distribute bool    `yaml:"distribute"` // Generate in the root context, then move into tiles
	Terrain    bool    `yaml:"terrain"`    // Generate terrain patches
	Trees      bool    `yaml:"trees"`      // Place trees and props
}

// HeightConfig holds the height sampler settings.
type HeightConfig struct {
	HeightmapPath    string     `yaml:"heightmap_path"` // Optional 16-bit raster
	WorldOrigin      [2]float64 `yaml:"world_origin"`   // Meters, raster (0,0)
	WorldEnd         [2]float64 `yaml:"world_end"`      // Meters, raster (1,1)
	MinHeight        float64    `yaml:"min_height"`
	MaxHeight        float64    `yaml:"max_height"`
	NonDrivingMargin float64    `yaml:"non_driving_margin"`
	LandscapeOffset  float64    `yaml:"landscape_offset"` // Below a ray hit, centimeters
	FallbackOffset   float64    `yaml:"fallback_offset"`  // Below the sampled height, centimeters
	Flat             bool       `yaml:"flat"`             // Disable the procedural deformation
}

// MeshConfig holds the mesh assembly settings.
type MeshConfig struct {
	Workers                  int     `yaml:"workers"`
	DrivingBorderThreshold   float64 `yaml:"driving_border_threshold"` // Centimeters from the lane border
	NonDrivingLift           float64 `yaml:"non_driving_lift"`
	LaneMarkLift             float64 `yaml:"lane_mark_lift"`
	SimplificationPercentage float64 `yaml:"simplification_percentage"`
	SimplificationTolerance  float64 `yaml:"simplification_tolerance"`
	SampleStep               float64 `yaml:"sample_step"`
	MaxChunkLength           float64 `yaml:"max_chunk_length"`
}

// LaneMarkConfig holds lane mark settings.
type LaneMarkConfig struct {
	DedupThreshold float64 `yaml:"dedup_threshold"` // Centimeters
	Width          float64 `yaml:"width"`
}

// PropsConfig holds tree and prop placement settings.
type PropsConfig struct {
	Spacing      float64 `yaml:"spacing"`
	EdgeDistance float64 `yaml:"edge_distance"`
	ExtraOffset  float64 `yaml:"extra_offset"`
}

// MaterialsConfig names the default assets duplicated per map.
type MaterialsConfig struct {
	Road       string `yaml:"road"`
	Sidewalk   string `yaml:"sidewalk"`
	Base       string `yaml:"base"`
	Landscape  string `yaml:"landscape"`
	MarkWhite  string `yaml:"mark_white"`
	MarkYellow string `yaml:"mark_yellow"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Map: MapConfig{
			Name:      "Town",
			OutputDir: "tiles",
		},
		Tiling: TilingConfig{
			TileSize:   2000,
			TerrainX:   4,
			TerrainY:   4,
			Resolution: 32,
			Terrain:    true,
			Trees:      true,
		},
		Height: HeightConfig{
			WorldOrigin:      [2]float64{-2000, -2000},
			WorldEnd:         [2]float64{2000, 2000},
			MinHeight:        -20,
			MaxHeight:        20,
			NonDrivingMargin: 5.0,
			LandscapeOffset:  100,
			FallbackOffset:   2,
		},
		Mesh: MeshConfig{
			Workers:                  0,
			DrivingBorderThreshold:   65,
			NonDrivingLift:           0.15,
			LaneMarkLift:             0.02,
			SimplificationPercentage: 20,
			SimplificationTolerance:  0.05,
			SampleStep:               1.0,
			MaxChunkLength:           50,
		},
		LaneMarks: LaneMarkConfig{
			DedupThreshold: 250,
			Width:          0.15,
		},
		Props: PropsConfig{
			Spacing:      50,
			EdgeDistance: 3,
			ExtraOffset:  0,
		},
		Materials: MaterialsConfig{
			Road:       "M_Road",
			Sidewalk:   "M_Sidewalk",
			Base:       "M_Base",
			Landscape:  "M_Landscape",
			MarkWhite:  "M_MarkWhite",
			MarkYellow: "M_MarkYellow",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
