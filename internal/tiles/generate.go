package tiles

import (
	"context"
	"fmt"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/height"
	"github.com/Faultbox/roadtiles/internal/terrain"
	"github.com/Faultbox/roadtiles/internal/tiling"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// generate runs terrain, roads, lane marks, trees and the finish hook for
// tile in the current context.
func (o *Orchestrator) generate(ctx context.Context, tile tiling.Coordinate) error {
	bounds := o.grid.Bounds(tile)

	if o.opts.Terrain {
		o.generateTerrain(tile, bounds)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := o.generateRoads(ctx, tile, bounds); err != nil {
		return err
	}
	o.generateLaneMarks(tile, bounds)

	if o.opts.Trees {
		props := o.props.PlaceProps(bounds, o.opts.Engine)
		ids := o.props.Spawn(o.opts.Engine, props, o.opts.Namespace, TagGenerated, TagTree)
		o.report.Props += len(props)
		o.log.Debug("trees placed", zap.Stringer("tile", tile),
			zap.Int("props", len(props)), zap.Int("groups", len(ids)))
	}

	if o.opts.Finish != nil {
		if err := o.opts.Finish(ctx, tile, o.opts.Engine); err != nil {
			o.log.Warn("finish hook failed", zap.Stringer("tile", tile), zap.Error(err))
		}
	}
	return ctx.Err()
}

func (o *Orchestrator) generateRoads(ctx context.Context, tile tiling.Coordinate, bounds geom.Box) error {
	buckets := o.opts.Network.GenerateOrderedChunkedMeshInLocations(o.opts.MeshParams, bounds.Min, bounds.Max)
	meshes, err := o.assembler.Assemble(ctx, buckets)
	if err != nil {
		return fmt.Errorf("assembling roads for %s: %w", tile, err)
	}
	ids := o.emitter.EmitRoads(meshes, TagGenerated, TagRoad)
	o.report.Roads += len(ids)
	o.log.Debug("roads emitted", zap.Stringer("tile", tile),
		zap.Int("prepared", len(meshes)), zap.Int("placed", len(ids)))
	return nil
}

func (o *Orchestrator) generateLaneMarks(tile tiling.Coordinate, bounds geom.Box) {
	raws, colors := o.opts.Network.GenerateLineMarkings(o.opts.MeshParams, bounds.Min, bounds.Max)
	ids, stats := o.marks.Place(raws, colors, TagGenerated, TagLaneMark)
	o.report.LaneMarks += len(ids)
	o.report.Duplicates += stats.Duplicates
	o.log.Debug("lane marks placed", zap.Stringer("tile", tile),
		zap.Int("total", stats.Total),
		zap.Int("invalid", stats.Invalid),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("placed", len(ids)))
}

// generateTerrain builds the landscape patches of one tile. Each patch is
// placed at its own centre so that it buckets into the tile it covers.
func (o *Orchestrator) generateTerrain(tile tiling.Coordinate, bounds geom.Box) {
	eng := o.opts.Engine
	extent := bounds.Scaled(geom.CentimetersPerMeter)
	heightAt := func(world mgl64.Vec3) (float64, bool) {
		return o.opts.Heights.GetHeightForLandscape(world, height.Obstacles{Scene: eng, Ignore: o.landscape})
	}

	patches := terrain.BuildPatches(extent, o.opts.TerrainX, o.opts.TerrainY, o.opts.Resolution, heightAt)
	if len(patches) == 0 {
		return
	}
	material, _ := o.emitter.Materials().Get(o.emitter.Materials().Defaults().Landscape)

	size := extent.Size()
	half := mgl64.Vec3{
		size.X() / float64(o.opts.TerrainX) / 2,
		-size.Y() / float64(o.opts.TerrainY) / 2,
		0,
	}

	misses := 0
	for i := range patches {
		p := &patches[i]
		misses += p.Misses

		vertices := make([]mgl64.Vec3, len(p.Vertices))
		for j, v := range p.Vertices {
			vertices[j] = v.Sub(half)
		}
		data := engine.MeshData{
			Name:     o.emitter.Label(fmt.Sprintf("Landscape_%s_%d_%d", tile, p.CellX, p.CellY)),
			Category: TagLandscape,
			Material: material,
			Vertices: vertices,
			Indices:  p.Indices,
			Normals:  p.Normals,
			UVs:      p.UVs,
			Tangents: geom.Tangents(vertices, p.Indices, p.UVs, p.Normals),
		}
		id, err := o.emitter.EmitMesh(engine.KindLandscape, data, p.Offset.Add(half), []string{TagGenerated, TagLandscape})
		if err != nil {
			o.log.Error("failed to emit landscape patch",
				zap.Stringer("tile", tile), zap.Int("cell_x", p.CellX), zap.Int("cell_y", p.CellY), zap.Error(err))
			continue
		}
		o.landscape = append(o.landscape, id)
		o.report.Landscape++
	}

	if misses > 0 {
		o.log.Warn("landscape probes found no geometry, using sampled ground",
			zap.Stringer("tile", tile),
			zap.Int("patches", len(patches)),
			zap.Int("missed_vertices", misses))
	}
}
