package config

import "flag"

// Flags is the flag set shared by the generator subcommands.
var Flags = flag.NewFlagSet("roadtiles", flag.ContinueOnError)

var (
	flagConfig    = Flags.String("config", "", "Path to config file")
	flagDebug     = Flags.Bool("debug", false, "Enable debug logging")
	flagMap       = Flags.String("map", "", "OpenDRIVE file to generate from")
	flagName      = Flags.String("name", "", "Map name used as the asset namespace")
	flagHeightmap = Flags.String("heightmap", "", "16-bit heightmap raster")
	flagOut       = Flags.String("out", "", "Output directory for tile files")
	flagWorkers   = Flags.Int("workers", 0, "Parallel mesh workers (0 = GOMAXPROCS)")
	flagTileSize  = Flags.Float64("tile-size", 0, "Tile edge in meters")
	flagFlat      = Flags.Bool("flat", false, "Disable the procedural height deformation")
)

// ParseFlags parses command-line flags for a subcommand.
func ParseFlags(args []string) error {
	return Flags.Parse(args)
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMap != "" {
		cfg.Map.XODRPath = *flagMap
	}
	if *flagName != "" {
		cfg.Map.Name = *flagName
	}
	if *flagHeightmap != "" {
		cfg.Height.HeightmapPath = *flagHeightmap
	}
	if *flagOut != "" {
		cfg.Map.OutputDir = *flagOut
	}
	if *flagWorkers > 0 {
		cfg.Mesh.Workers = *flagWorkers
	}
	if *flagTileSize > 0 {
		cfg.Tiling.TileSize = *flagTileSize
	}
	if *flagFlat {
		cfg.Height.Flat = true
	}
}
