package tiles

import (
	"context"
	"fmt"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/tiling"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// runDistributed generates every tile inside the root context and then
// moves the generated objects into their tiles in one pass.
func (o *Orchestrator) runDistributed(ctx context.Context) error {
	eng := o.opts.Engine
	if err := eng.LoadContext(engine.RootContext); err != nil {
		return fmt.Errorf("loading root context: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tile := o.cursor.Current()
		o.setPhase(PhaseGenerating, tile)
		if err := o.generate(ctx, tile); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			o.report.Skipped++
			o.log.Error("tile skipped", zap.Stringer("tile", tile), zap.Error(err))
		} else {
			o.report.Tiles++
		}
		if !o.cursor.GoNextTile() {
			break
		}
	}

	o.setPhase(PhaseDistributing, o.cursor.Current())
	if err := o.MoveActorsToSubLevelWithLargeMap(); err != nil {
		return err
	}

	o.setPhase(PhaseSaving, o.cursor.Current())
	if err := eng.SaveDirtyState(); err != nil {
		return fmt.Errorf("saving tiles: %w", err)
	}
	return nil
}

// objectPosition is the point an object is bucketed by: its location, or the
// mean world position of its instances.
func objectPosition(obj *engine.Object) mgl64.Vec3 {
	if obj.Kind != engine.KindInstancedMesh || len(obj.Instances) == 0 {
		return obj.Transform.Location
	}
	locs := make([]mgl64.Vec3, len(obj.Instances))
	for i, inst := range obj.Instances {
		locs[i] = obj.Transform.Compose(inst).Location
	}
	return geom.Centroid(locs)
}

// MoveActorsToSubLevelWithLargeMap buckets every generated object of the
// root context by the tile its position falls in, re-expresses it relative
// to that tile's minimum corner and moves each bucket into its tile
// context. Objects outside the grid are logged and stay in the root.
func (o *Orchestrator) MoveActorsToSubLevelWithLargeMap() error {
	eng := o.opts.Engine
	buckets := make(map[tiling.Coordinate][]engine.ObjectID)

	for _, obj := range eng.Objects() {
		if !obj.HasTag(TagGenerated) {
			continue
		}
		pos := objectPosition(&obj)
		tile, ok := o.grid.TileOf(pos.Mul(1 / geom.CentimetersPerMeter))
		if !ok {
			o.report.Unbucketed++
			o.log.Error("object lies outside every tile",
				zap.String("object", obj.Label),
				zap.Float64("x", pos.X()),
				zap.Float64("y", pos.Y()))
			continue
		}
		shift := o.MinPosition(tile).Mul(-1)

		if obj.Kind == engine.KindInstancedMesh {
			instances := make([]geom.Transform, len(obj.Instances))
			for i, inst := range obj.Instances {
				instances[i] = obj.Transform.Compose(inst).Translated(shift)
			}
			if err := eng.SetInstanceTransforms(obj.ID, instances); err != nil {
				return fmt.Errorf("moving instances of %s: %w", obj.Label, err)
			}
			if err := eng.SetObjectTransform(obj.ID, geom.Identity()); err != nil {
				return fmt.Errorf("moving %s: %w", obj.Label, err)
			}
		} else if err := eng.SetObjectTransform(obj.ID, obj.Transform.Translated(shift)); err != nil {
			return fmt.Errorf("moving %s: %w", obj.Label, err)
		}
		if obj.Kind.HasMesh() {
			eng.ClearStandalone(obj.Mesh)
		}
		buckets[tile] = append(buckets[tile], obj.ID)
	}

	// Move in row-major order so saved output is stable.
	cursor := tiling.NewCursor(o.grid)
	for {
		tile := cursor.Current()
		if ids := buckets[tile]; len(ids) > 0 {
			name := tile.String()
			eng.SetContextOrigin(name, o.MinPosition(tile))
			if err := eng.MoveObjectsToContext(ids, name); err != nil {
				return fmt.Errorf("moving objects to %s: %w", name, err)
			}
			o.log.Debug("moved objects into tile",
				zap.Stringer("tile", tile), zap.Int("objects", len(ids)))
		}
		if !cursor.GoNextTile() {
			break
		}
	}

	o.report.Collected += eng.CollectGarbage()
	eng.ResetUndoHistory()
	return nil
}
