// Package assembler turns raw lane meshes from the road network into placed,
// ground-conforming engine meshes.
package assembler

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/Faultbox/roadtiles/pkg/roadnet"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HeightSource is the ground the assembler drapes meshes over.
type HeightSource interface {
	GetHeight(x, y float64, isDrivingLane bool) float64
}

// LaneQuery is the part of the road network used to measure how far a
// vertex is from its lane border.
type LaneQuery interface {
	GetClosestWaypointOnRoad(location mgl64.Vec3, mask roadnet.LaneType) (roadnet.Waypoint, bool)
	GetLaneWidth(wp roadnet.Waypoint) float64
	ComputeTransform(wp roadnet.Waypoint) geom.Transform
}

// Settings configures mesh assembly.
type Settings struct {
	Workers                  int     // Parallel chunk workers, 0 for GOMAXPROCS
	DrivingBorderThreshold   float64 // Centimeters; farther from the border gets the driving bias
	NonDrivingLift           float64 // Meters added to non-driving lanes
	LaneMarkLift             float64 // Meters added to lane marks
	SimplificationPercentage float64 // Share of interior rows a driving chunk may lose
	SimplificationTolerance  float64 // Meters of deviation a removed row may introduce
}

// PreparedMesh is a recentered mesh ready for emission. Vertices are in
// meters relative to Centroid.
type PreparedMesh struct {
	Index    int
	LaneType roadnet.LaneType
	Centroid mgl64.Vec3
	Vertices []mgl64.Vec3
	Indices  []uint32
	UVs      []mgl64.Vec2
	Normals  []mgl64.Vec3
	Tangents []mgl64.Vec3
}

// Placement returns the world position in engine units.
func (p *PreparedMesh) Placement() mgl64.Vec3 {
	return p.Centroid.Mul(geom.CentimetersPerMeter)
}

// Assembler prepares lane meshes.
type Assembler struct {
	heights  HeightSource
	lanes    LaneQuery
	settings Settings
	log      *zap.Logger
}

// New creates an assembler. lanes may be nil, in which case every driving
// vertex is treated as far from its border.
func New(heights HeightSource, lanes LaneQuery, settings Settings, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{heights: heights, lanes: lanes, settings: settings, log: log}
}

func (a *Assembler) workers() int {
	if a.settings.Workers > 0 {
		return a.settings.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// DistanceToLaneBorder returns how far loc (meters) is from the nearest
// border of the closest driving lane, in centimeters. Without a lane it
// returns +Inf.
func (a *Assembler) DistanceToLaneBorder(loc mgl64.Vec3) float64 {
	if a.lanes == nil {
		return math.Inf(1)
	}
	wp, ok := a.lanes.GetClosestWaypointOnRoad(loc, roadnet.LaneDriving)
	if !ok {
		return math.Inf(1)
	}
	center := a.lanes.ComputeTransform(wp).Location
	dist := math.Hypot(loc.X()-center.X(), loc.Y()-center.Y())
	return math.Abs(a.lanes.GetLaneWidth(wp)*0.5-dist) * geom.CentimetersPerMeter
}

// Assemble prepares every chunk of every bucket. Chunks within a bucket are
// processed in parallel; indices are unique and contiguous from zero but
// which chunk receives which index depends on completion order. Normals and
// tangents are computed afterwards, sequentially.
func (a *Assembler) Assemble(ctx context.Context, buckets map[roadnet.LaneType][]roadnet.RawMesh) ([]PreparedMesh, error) {
	var (
		mu      sync.Mutex
		results []PreparedMesh
		next    int
	)

	for _, laneType := range roadnet.SortedLaneTypes(buckets) {
		chunks := buckets[laneType]
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.workers())

		for i := range chunks {
			raw := &chunks[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				prepared, ok := a.prepare(raw, laneType)
				if !ok {
					return nil
				}

				mu.Lock()
				prepared.Index = next
				next++
				results = append(results, prepared)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	for i := range results {
		finish(&results[i])
	}

	a.log.Debug("assembled lane meshes",
		zap.Int("buckets", len(buckets)),
		zap.Int("meshes", len(results)))
	return results, nil
}

// prepare drapes, simplifies and recenters one chunk without touching the
// caller's buffers.
func (a *Assembler) prepare(raw *roadnet.RawMesh, laneType roadnet.LaneType) (PreparedMesh, bool) {
	if !raw.IsValid() {
		a.log.Debug("skipping degenerate chunk",
			zap.Stringer("lane_type", laneType),
			zap.Int("vertices", len(raw.Vertices)),
			zap.Int("indices", len(raw.Indices)))
		return PreparedMesh{}, false
	}
	mesh := raw.Clone()

	if laneType == roadnet.LaneDriving {
		for i, v := range mesh.Vertices {
			biased := a.DistanceToLaneBorder(v) > a.settings.DrivingBorderThreshold
			mesh.Vertices[i][2] = a.heights.GetHeight(v.X(), v.Y(), biased)
		}
		if a.settings.SimplificationPercentage > 0 {
			mesh = simplifyRibbon(mesh, a.settings.SimplificationPercentage, a.settings.SimplificationTolerance)
		}
	} else {
		for i, v := range mesh.Vertices {
			mesh.Vertices[i][2] = a.heights.GetHeight(v.X(), v.Y(), false) + a.settings.NonDrivingLift
		}
	}

	return recenter(mesh, laneType), true
}

// PrepareMark drapes a lane mark strip just above the road and recenters it,
// including normals and tangents.
func (a *Assembler) PrepareMark(raw *roadnet.RawMesh) (PreparedMesh, bool) {
	if !raw.IsValid() {
		a.log.Debug("skipping degenerate lane mark",
			zap.Int("vertices", len(raw.Vertices)))
		return PreparedMesh{}, false
	}
	mesh := raw.Clone()
	for i, v := range mesh.Vertices {
		mesh.Vertices[i][2] = a.heights.GetHeight(v.X(), v.Y(), false) + a.settings.LaneMarkLift
	}
	p := recenter(mesh, roadnet.LaneNone)
	finish(&p)
	return p, true
}

func recenter(mesh roadnet.RawMesh, laneType roadnet.LaneType) PreparedMesh {
	centroid := geom.Centroid(mesh.Vertices)
	for i := range mesh.Vertices {
		mesh.Vertices[i] = mesh.Vertices[i].Sub(centroid)
	}
	return PreparedMesh{
		LaneType: laneType,
		Centroid: centroid,
		Vertices: mesh.Vertices,
		Indices:  mesh.Indices,
		UVs:      mesh.UVs,
	}
}

func finish(p *PreparedMesh) {
	p.Normals = geom.VertexNormals(p.Vertices, p.Indices)
	p.Tangents = geom.Tangents(p.Vertices, p.Indices, p.UVs, p.Normals)
}
