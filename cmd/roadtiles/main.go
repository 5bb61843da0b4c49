// roadtiles generates tiled road, lane mark, terrain and prop meshes from an
// OpenDRIVE network.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/roadtiles/internal/assembler"
	"github.com/Faultbox/roadtiles/internal/config"
	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/engine/memory"
	"github.com/Faultbox/roadtiles/internal/height"
	"github.com/Faultbox/roadtiles/internal/logger"
	"github.com/Faultbox/roadtiles/internal/props"
	"github.com/Faultbox/roadtiles/internal/snapshot"
	"github.com/Faultbox/roadtiles/internal/tiles"
	"github.com/Faultbox/roadtiles/internal/tiling"
	"github.com/Faultbox/roadtiles/pkg/roadnet"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "generate", "gen":
		cmdGenerate(args)
	case "snapshot":
		cmdSnapshot(args)
	case "info":
		cmdInfo(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`roadtiles - OpenDRIVE road tile generator

Usage:
  roadtiles <command> [options]

Commands:
  generate [flags] [file.xodr]       Generate tiles into the output directory
  snapshot MapPath=<dir> [-width N] [-grid M]
                                     Render saved tiles to <dir>/snapshot.png
  info [-tile-size M] <file.xodr>    Show network summary and tile grid

Generate flags:
  -config <file>     YAML config (default ./roadtiles.yaml)
  -map <file.xodr>   OpenDRIVE input
  -heightmap <file>  16-bit PNG, TIFF or BMP heightmap
  -out <dir>         Output directory
  -tile-size <m>     Tile edge in meters
  -workers <n>       Parallel mesh workers
  -flat              Disable the procedural height deformation
  -debug             Debug logging

Examples:
  roadtiles generate -map Town01.xodr -out tiles/Town01
  roadtiles snapshot MapPath=tiles/Town01
  roadtiles info Town01.xodr`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdGenerate(args []string) {
	if err := config.ParseFlags(args); err != nil {
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fatal("config: %v", err)
	}
	if rest := config.Flags.Args(); len(rest) > 0 {
		cfg.Map.XODRPath = rest[0]
	}
	if cfg.Map.XODRPath == "" {
		fatal("no OpenDRIVE file given (use -map or map.xodr_path)")
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatal("logger: %v", err)
	}
	if code := runGenerate(cfg); code != 0 {
		os.Exit(code)
	}
}

// runGenerate runs the pipeline and returns the process exit code. The log
// is flushed before returning so the last error reaches the log file.
func runGenerate(cfg *config.Config) int {
	err := generate(cfg)
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		return 1
	}
	return 0
}

func generate(cfg *config.Config) error {
	logger.Sugar.Debugf("Config: %+v", cfg)

	network, err := roadnet.ParseFile(cfg.Map.XODRPath)
	if err != nil {
		return fmt.Errorf("parsing road network %s: %w", cfg.Map.XODRPath, err)
	}

	sampler, err := newSampler(cfg)
	if err != nil {
		return fmt.Errorf("loading heightmap %s: %w", cfg.Height.HeightmapPath, err)
	}

	eng := memory.New(memory.Options{
		Dir:    cfg.Map.OutputDir,
		Assets: materialAssets(cfg.Materials),
		Log:    logger.Named("engine"),
	})

	o, err := tiles.New(orchestratorOptions(cfg, network, sampler, eng))
	if err != nil {
		return fmt.Errorf("setting up generation: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := o.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Tiles:      %d generated, %d skipped\n", report.Tiles, report.Skipped)
	fmt.Printf("Roads:      %d\n", report.Roads)
	fmt.Printf("Lane marks: %d (%d duplicates dropped)\n", report.LaneMarks, report.Duplicates)
	fmt.Printf("Terrain:    %d patches\n", report.Landscape)
	fmt.Printf("Props:      %d\n", report.Props)
	fmt.Printf("Output:     %s\n", cfg.Map.OutputDir)
	return nil
}

func newSampler(cfg *config.Config) (*height.Sampler, error) {
	var field *height.Field
	if cfg.Height.HeightmapPath != "" {
		f, err := height.LoadField(cfg.Height.HeightmapPath)
		if err != nil {
			return nil, err
		}
		field = f
	}
	deform := height.DefaultDeformation
	if cfg.Height.Flat {
		deform = height.FlatDeformation
	}
	h := cfg.Height
	return height.NewSampler(field, deform, height.Settings{
		WorldOrigin:      h.WorldOrigin,
		WorldEnd:         h.WorldEnd,
		MinHeight:        h.MinHeight,
		MaxHeight:        h.MaxHeight,
		NonDrivingMargin: h.NonDrivingMargin,
		LandscapeOffset:  h.LandscapeOffset,
		FallbackOffset:   h.FallbackOffset,
	}, logger.Named("height")), nil
}

func materials(m config.MaterialsConfig) assembler.Materials {
	return assembler.Materials{
		Road:       engine.AssetID(m.Road),
		Sidewalk:   engine.AssetID(m.Sidewalk),
		Base:       engine.AssetID(m.Base),
		Landscape:  engine.AssetID(m.Landscape),
		MarkWhite:  engine.AssetID(m.MarkWhite),
		MarkYellow: engine.AssetID(m.MarkYellow),
	}
}

// materialAssets lists the configured materials as source assets of the
// in-memory engine.
func materialAssets(m config.MaterialsConfig) []engine.AssetID {
	var out []engine.AssetID
	for _, name := range []string{m.Road, m.Sidewalk, m.Base, m.Landscape, m.MarkWhite, m.MarkYellow} {
		if name != "" {
			out = append(out, engine.AssetID(name))
		}
	}
	return out
}

func orchestratorOptions(cfg *config.Config, network roadnet.Network, sampler *height.Sampler, eng engine.Engine) tiles.Options {
	params := roadnet.DefaultMeshParams()
	if cfg.Mesh.SampleStep > 0 {
		params.SampleStep = cfg.Mesh.SampleStep
	}
	if cfg.Mesh.MaxChunkLength > 0 {
		params.MaxChunkLength = cfg.Mesh.MaxChunkLength
	}
	if cfg.LaneMarks.Width > 0 {
		params.MarkWidth = cfg.LaneMarks.Width
	}

	return tiles.Options{
		Network:    network,
		Engine:     eng,
		Heights:    sampler,
		TileSize:   cfg.Tiling.TileSize,
		TerrainX:   cfg.Tiling.TerrainX,
		TerrainY:   cfg.Tiling.TerrainY,
		Resolution: cfg.Tiling.Resolution,
		Terrain:    cfg.Tiling.Terrain,
		Trees:      cfg.Tiling.Trees,
		Distribute: cfg.Tiling.Distribute,
		MeshParams: params,
		Assembly: assembler.Settings{
			Workers:                  cfg.Mesh.Workers,
			DrivingBorderThreshold:   cfg.Mesh.DrivingBorderThreshold,
			NonDrivingLift:           cfg.Mesh.NonDrivingLift,
			LaneMarkLift:             cfg.Mesh.LaneMarkLift,
			SimplificationPercentage: cfg.Mesh.SimplificationPercentage,
			SimplificationTolerance:  cfg.Mesh.SimplificationTolerance,
		},
		DedupThreshold: cfg.LaneMarks.DedupThreshold,
		Props: props.Settings{
			Spacing:      cfg.Props.Spacing,
			EdgeDistance: cfg.Props.EdgeDistance,
			ExtraOffset:  cfg.Props.ExtraOffset,
		},
		Materials: materials(cfg.Materials),
		Namespace: cfg.Map.Name,
		Log:       logger.Log,
	}
}

// mapPathArg extracts the directory from a MapPath=<dir> argument. A bare
// path is accepted too.
func mapPathArg(args []string) (string, error) {
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, "MapPath="); ok {
			if v == "" {
				return "", errors.New("empty MapPath")
			}
			return v, nil
		}
	}
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], nil
	}
	return "", errors.New("missing MapPath=<dir>")
}

func cmdSnapshot(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	width := fs.Int("width", snapshot.DefaultWidth, "Pixel size of the longer image side")
	grid := fs.Float64("grid", 0, "Overlay tile borders for tiles of this size in meters")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	dir, err := mapPathArg(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Usage: roadtiles snapshot MapPath=<dir> [-width N]")
		os.Exit(1)
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	if err := logger.Init(level, ""); err != nil {
		fatal("logger: %v", err)
	}

	path, err := snapshot.Capture(dir, snapshot.Options{Width: *width, TileSize: *grid}, logger.Named("snapshot"))
	if err != nil {
		logger.Error("snapshot failed", zap.String("map_path", dir), zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
	fmt.Println(path)
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	tileSize := fs.Float64("tile-size", config.Default().Tiling.TileSize, "Tile edge in meters")
	signals := fs.Bool("signals", false, "List every signal")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: roadtiles info [-tile-size M] <file.xodr>")
		os.Exit(1)
	}

	m, err := roadnet.ParseFile(fs.Arg(0))
	if err != nil {
		fatal("%v", err)
	}

	laneCount := make(map[roadnet.LaneType]int)
	var length float64
	junctions := 0
	for _, r := range m.Roads() {
		length += r.Length
		if r.Junction {
			junctions++
		}
		for _, sec := range r.Sections {
			for _, l := range sec.Left {
				laneCount[l.Type]++
			}
			for _, l := range sec.Right {
				laneCount[l.Type]++
			}
		}
	}
	refs := m.GetAllSignalReferences()
	b := m.Bounds()
	def := config.Default().Props
	grid := tiling.NewGrid(tiles.GridExtent(b, props.Settings{EdgeDistance: def.EdgeDistance, ExtraOffset: def.ExtraOffset}), *tileSize)

	fmt.Printf("Map:     %s\n", m.Name())
	fmt.Printf("Roads:   %d (%d in junctions, %.1f m total)\n", len(m.Roads()), junctions, length)
	fmt.Printf("Signals: %d\n", len(refs))
	fmt.Printf("Bounds:  (%.1f, %.1f) - (%.1f, %.1f)\n", b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())
	fmt.Printf("Tiles:   %d x %d of %.0f m (%d total)\n", grid.NumTiles.X, grid.NumTiles.Y, grid.TileSize, grid.Count())
	fmt.Println()
	fmt.Println("Lanes by type:")
	for _, t := range roadnet.SortedLaneTypes(laneCount) {
		fmt.Printf("  %-10s %d\n", t, laneCount[t])
	}

	if *signals {
		sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
		fmt.Println()
		fmt.Println("Signals:")
		for _, s := range refs {
			loc := s.Transform.Location
			fmt.Printf("  %-8s road %-5d s=%-8.2f %-10s (%.1f, %.1f, %.1f)\n",
				s.ID, s.RoadID, s.S, s.Type, loc.X(), loc.Y(), loc.Z())
		}
	}
}
