package roadnet

import (
	"math"

	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
)

// queryBound converts a min/max location pair to a 2D bound.
func queryBound(min, max mgl64.Vec3) orb.Bound {
	return orb.Bound{Min: orb.Point{min.X(), min.Y()}, Max: orb.Point{max.X(), max.Y()}}
}

// stations returns the s values of the rows of one chunk, always including both ends.
func stations(start, end, step float64) []float64 {
	if step <= 0 {
		step = 1
	}
	var out []float64
	for s := start; s < end-1e-9; s += step {
		out = append(out, s)
	}
	return append(out, end)
}

// chunkRanges splits [start, end) into pieces of at most maxLen meters.
func chunkRanges(start, end, maxLen float64) [][2]float64 {
	if maxLen <= 0 {
		return [][2]float64{{start, end}}
	}
	var out [][2]float64
	for s := start; s < end-1e-9; s += maxLen {
		out = append(out, [2]float64{s, math.Min(s+maxLen, end)})
	}
	return out
}

// ribbon builds a two-vertex-per-row strip between lateral offsets given per row.
func ribbon(r *Road, ss []float64, border func(s float64) (a, b float64), width float64) RawMesh {
	mesh := RawMesh{Stride: 2}
	if width <= 0 {
		width = 1
	}
	start := ss[0]
	for _, s := range ss {
		a, b := border(s)
		v := (s - start) / width
		mesh.Vertices = append(mesh.Vertices, r.PointAt(s, a), r.PointAt(s, b))
		mesh.UVs = append(mesh.UVs, mgl64.Vec2{0, v}, mgl64.Vec2{1, v})
	}
	for row := 0; row+1 < len(ss); row++ {
		i0 := uint32(row * 2)
		i1, i2, i3 := i0+1, i0+2, i0+3
		a, b, c := geom.FaceUp(mesh.Vertices, i0, i2, i1)
		mesh.Indices = append(mesh.Indices, a, b, c)
		a, b, c = geom.FaceUp(mesh.Vertices, i3, i1, i2)
		mesh.Indices = append(mesh.Indices, a, b, c)
	}
	return mesh
}

// GenerateOrderedChunkedMeshInLocations returns lane meshes bucketed by lane
// type. A chunk belongs to the query when its centroid lies inside the
// half-open rectangle [min, max), so adjacent queries never return the same
// chunk. Within a bucket chunks are ordered by road id, lane id and s.
func (m *Map) GenerateOrderedChunkedMeshInLocations(params MeshParams, min, max mgl64.Vec3) map[LaneType][]RawMesh {
	area := geom.Box{Min: min, Max: max}
	qb := queryBound(min, max)
	out := make(map[LaneType][]RawMesh)

	for _, road := range m.roads {
		if !road.bound.Intersects(qb) {
			continue
		}
		for si := range road.Sections {
			sec := &road.Sections[si]
			secEnd := road.SectionEnd(si)
			lanes := make([]Lane, 0, len(sec.Left)+len(sec.Right))
			lanes = append(lanes, sec.Left...)
			lanes = append(lanes, sec.Right...)

			for _, lane := range lanes {
				if lane.Type == LaneNone {
					continue
				}
				for _, rng := range chunkRanges(sec.S, secEnd, params.MaxChunkLength) {
					laneID := lane.ID
					ss := stations(rng[0], rng[1], params.SampleStep)
					mesh := ribbon(road, ss, func(s float64) (float64, float64) {
						inner, outer, _ := road.LaneBorders(si, laneID, s)
						return inner, outer
					}, lane.Width(rng[0]-sec.S))
					if !mesh.IsValid() || !area.ContainsXY(geom.Centroid(mesh.Vertices)) {
						continue
					}
					out[lane.Type] = append(out[lane.Type], mesh)
				}
			}
		}
	}
	return out
}

// GenerateLineMarkings returns lane mark strips inside [min, max) and a
// parallel slice with the paint colour of each strip.
func (m *Map) GenerateLineMarkings(params MeshParams, min, max mgl64.Vec3) ([]RawMesh, []string) {
	area := geom.Box{Min: min, Max: max}
	qb := queryBound(min, max)
	var meshes []RawMesh
	var colors []string

	half := params.MarkWidth / 2
	for _, road := range m.roads {
		if !road.bound.Intersects(qb) {
			continue
		}
		for si := range road.Sections {
			sec := &road.Sections[si]
			secEnd := road.SectionEnd(si)

			type markLine struct {
				mark   RoadMark
				offset func(s float64) float64
			}
			var lines []markLine
			if sec.Center.Mark.Painted() {
				lines = append(lines, markLine{sec.Center.Mark, func(float64) float64 { return 0 }})
			}
			for _, lane := range append(append([]Lane(nil), sec.Left...), sec.Right...) {
				if !lane.Mark.Painted() {
					continue
				}
				laneID := lane.ID
				lines = append(lines, markLine{lane.Mark, func(s float64) float64 {
					_, outer, _ := road.LaneBorders(si, laneID, s)
					return outer
				}})
			}

			for _, line := range lines {
				for _, rng := range markRanges(sec.S, secEnd, line.mark, params) {
					offset := line.offset
					ss := stations(rng[0], rng[1], params.SampleStep)
					mesh := ribbon(road, ss, func(s float64) (float64, float64) {
						t := offset(s)
						return t - half, t + half
					}, params.MarkWidth)
					if !mesh.IsValid() || !area.ContainsXY(geom.Centroid(mesh.Vertices)) {
						continue
					}
					meshes = append(meshes, mesh)
					colors = append(colors, markColor(line.mark.Color))
				}
			}
		}
	}
	return meshes, colors
}

// markRanges returns the painted s ranges of a mark between start and end.
func markRanges(start, end float64, mark RoadMark, params MeshParams) [][2]float64 {
	if !mark.Broken() || params.DashLength <= 0 {
		return chunkRanges(start, end, params.MaxChunkLength)
	}
	var out [][2]float64
	for s := start; s < end-1e-9; s += params.DashLength + params.DashGap {
		out = append(out, [2]float64{s, math.Min(s+params.DashLength, end)})
	}
	return out
}

func markColor(c string) string {
	switch c {
	case "", "standard":
		return "white"
	}
	return c
}
