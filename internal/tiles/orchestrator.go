// Package tiles drives generation over the tile grid: for each tile it loads
// the tile context, generates terrain, roads, lane marks and trees, moves
// everything into tile-local coordinates and saves.
package tiles

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/roadtiles/internal/assembler"
	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/height"
	"github.com/Faultbox/roadtiles/internal/labels"
	"github.com/Faultbox/roadtiles/internal/lanemarks"
	"github.com/Faultbox/roadtiles/internal/props"
	"github.com/Faultbox/roadtiles/internal/tiling"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/Faultbox/roadtiles/pkg/roadnet"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Object tags.
const (
	TagGenerated = "RoadTiles"
	TagRoad      = "Road"
	TagLaneMark  = "LaneMark"
	TagLandscape = "Landscape"
	TagTree      = "Tree"
)

// Orchestrator errors.
var (
	ErrNoNetwork       = errors.New("no road network")
	ErrNoEngine        = errors.New("no engine")
	ErrInvalidTileSize = errors.New("tile size must be positive")
	ErrNoTiles         = errors.New("no tile could be generated")
)

// FinishFunc runs after the built-in stages of each tile.
type FinishFunc func(ctx context.Context, tile tiling.Coordinate, eng engine.Engine) error

// Options configures a run.
type Options struct {
	Network roadnet.Network
	Engine  engine.Engine
	Heights *height.Sampler

	TileSize   float64 // meters
	TerrainX   int
	TerrainY   int
	Resolution int
	Terrain    bool
	Trees      bool
	Distribute bool // generate everything in the root context, then move objects into tiles

	MeshParams     roadnet.MeshParams
	Assembly       assembler.Settings
	DedupThreshold float64 // centimeters
	Props          props.Settings
	Materials      assembler.Materials
	Namespace      string

	Finish FinishFunc
	Log    *zap.Logger
}

// Report summarizes a run.
type Report struct {
	Tiles      int
	Skipped    int
	Roads      int
	LaneMarks  int
	Duplicates int
	Landscape  int
	Props      int
	Unbucketed int
	Collected  int
}

// Orchestrator runs the tile state machine.
type Orchestrator struct {
	opts   Options
	grid   tiling.Grid
	cursor *tiling.Cursor
	phase  Phase
	report Report
	log    *zap.Logger

	labels    *labels.Counter
	assembler *assembler.Assembler
	emitter   *assembler.Emitter
	marks     *lanemarks.Placer
	props     *props.Placer
	landscape []engine.ObjectID
}

// New validates opts and lays out the grid over the network bounds.
func New(opts Options) (*Orchestrator, error) {
	if opts.Network == nil {
		return nil, ErrNoNetwork
	}
	if opts.Engine == nil {
		return nil, ErrNoEngine
	}
	if opts.TileSize <= 0 {
		return nil, fmt.Errorf("%w: %f", ErrInvalidTileSize, opts.TileSize)
	}
	if opts.Heights == nil {
		opts.Heights = height.NewSampler(nil, height.DefaultDeformation, height.Settings{}, nil)
	}
	if opts.Namespace == "" {
		opts.Namespace = opts.Network.Name()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	counter := labels.NewCounter()
	asm := assembler.New(opts.Heights, opts.Network, opts.Assembly, log.Named("assembler"))
	mats := assembler.NewMaterialCache(opts.Engine, opts.Materials, opts.Namespace, log.Named("materials"))
	emitter := assembler.NewEmitter(opts.Engine, mats, counter, opts.Namespace, log.Named("assembler"))

	grid := tiling.NewGrid(GridExtent(opts.Network.Bounds(), opts.Props), opts.TileSize)
	return &Orchestrator{
		opts:      opts,
		grid:      grid,
		cursor:    tiling.NewCursor(grid),
		log:       log.Named("tiles"),
		labels:    counter,
		assembler: asm,
		emitter:   emitter,
		marks:     lanemarks.NewPlacer(asm, emitter, opts.DedupThreshold, log.Named("lanemarks")),
		props:     props.NewPlacer(opts.Network, opts.Heights, opts.Props, counter, log.Named("props")),
	}, nil
}

// ExtentMargin is the slack in meters kept between the outermost generated
// geometry and the edge of the tile grid.
const ExtentMargin = 0.5

// GridExtent is the area the tile grid covers: the network bounds grown by
// the prop offset beyond the outermost lane plus ExtentMargin. Roadside props
// are placed outside the lane bounds and would otherwise fall in no tile.
func GridExtent(bounds geom.Box, p props.Settings) geom.Box {
	return bounds.PaddedXY(math.Max(0, p.EdgeDistance+p.ExtraOffset) + ExtentMargin)
}

// Grid returns the tile layout.
func (o *Orchestrator) Grid() tiling.Grid { return o.grid }

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase { return o.phase }

// Labels returns the run's label counter.
func (o *Orchestrator) Labels() *labels.Counter { return o.labels }

// Report returns the counters gathered so far.
func (o *Orchestrator) Report() Report { return o.report }

func (o *Orchestrator) setPhase(p Phase, tile tiling.Coordinate) {
	o.phase = p
	o.log.Debug("phase", zap.Stringer("phase", p), zap.Stringer("tile", tile))
}

// MinPosition returns a tile's minimum corner in engine units.
func (o *Orchestrator) MinPosition(tile tiling.Coordinate) mgl64.Vec3 {
	b := o.grid.Bounds(tile)
	return mgl64.Vec3{b.Min.X(), b.Min.Y(), 0}.Mul(geom.CentimetersPerMeter)
}

// Run walks every tile once in row-major order. A tile that fails is logged
// and skipped. Run returns an error only when ctx ends or no tile succeeded.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	o.log.Info("starting generation",
		zap.String("map", o.opts.Network.Name()),
		zap.Int("tiles_x", o.grid.NumTiles.X),
		zap.Int("tiles_y", o.grid.NumTiles.Y),
		zap.Float64("tile_size", o.grid.TileSize),
		zap.Bool("distribute", o.opts.Distribute))

	var err error
	if o.opts.Distribute {
		err = o.runDistributed(ctx)
	} else {
		err = o.runPerTile(ctx)
	}
	if err != nil {
		return o.report, err
	}
	o.phase = PhaseDone

	o.log.Info("generation finished",
		zap.Int("tiles", o.report.Tiles),
		zap.Int("skipped", o.report.Skipped),
		zap.Int("roads", o.report.Roads),
		zap.Int("lane_marks", o.report.LaneMarks),
		zap.Int("landscape", o.report.Landscape),
		zap.Int("props", o.report.Props))

	if o.report.Tiles == 0 {
		return o.report, ErrNoTiles
	}
	return o.report, nil
}

func (o *Orchestrator) runPerTile(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tile := o.cursor.Current()
		if err := o.processTile(ctx, tile); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			o.report.Skipped++
			o.log.Error("tile skipped", zap.Stringer("tile", tile), zap.Error(err))
		} else {
			o.report.Tiles++
		}
		if !o.cursor.GoNextTile() {
			return nil
		}
	}
}

// processTile runs Loading, Generating and Saving for one tile and always
// returns to the root context.
func (o *Orchestrator) processTile(ctx context.Context, tile tiling.Coordinate) (err error) {
	eng := o.opts.Engine
	name := tile.String()

	o.setPhase(PhaseLoading, tile)
	if err := eng.LoadContext(name); err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	defer func() {
		if rerr := eng.LoadContext(engine.RootContext); rerr != nil && err == nil {
			err = fmt.Errorf("returning to root: %w", rerr)
		}
		o.setPhase(PhaseIdle, tile)
	}()

	minPos := o.MinPosition(tile)
	eng.SetContextOrigin(name, minPos)
	// Patches of earlier tiles are unloaded with their context.
	o.landscape = o.landscape[:0]

	o.setPhase(PhaseGenerating, tile)
	if err := o.generate(ctx, tile); err != nil {
		return err
	}
	o.report.Collected += o.CorrectPositionForAllActorsInCurrentTile(minPos)

	o.setPhase(PhaseSaving, tile)
	if err := eng.SaveDirtyState(); err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	eng.ResetUndoHistory()
	return nil
}

// CorrectPositionForAllActorsInCurrentTile moves every object of the current
// context into coordinates relative to minPosition, releases the standalone
// flag of their meshes and collects garbage. It returns how many meshes
// were collected.
func (o *Orchestrator) CorrectPositionForAllActorsInCurrentTile(minPosition mgl64.Vec3) int {
	eng := o.opts.Engine
	for _, obj := range eng.Objects() {
		t := obj.Transform.Translated(minPosition.Mul(-1))
		if err := eng.SetObjectTransform(obj.ID, t); err != nil {
			o.log.Error("failed to move object into tile frame",
				zap.String("object", obj.Label), zap.Error(err))
			continue
		}
		if obj.Kind.HasMesh() {
			eng.ClearStandalone(obj.Mesh)
		}
	}
	return eng.CollectGarbage()
}
