package roadnet

import (
	"math"

	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// project returns the s coordinate and signed lateral offset of p relative to
// the road reference line, plus the planar distance to it.
func (r *Road) project(p orb.Point) (s, t, dist float64) {
	best := math.MaxFloat64
	bestSeg := 0
	for i := 0; i+1 < len(r.refLine); i++ {
		d := planar.DistanceFromSegmentSquared(r.refLine[i], r.refLine[i+1], p)
		if d < best {
			best = d
			bestSeg = i
		}
	}

	a, b := r.refLine[bestSeg], r.refLine[bestSeg+1]
	dx, dy := b.X()-a.X(), b.Y()-a.Y()
	segLen2 := dx*dx + dy*dy
	u := 0.0
	if segLen2 > 0 {
		u = ((p.X()-a.X())*dx + (p.Y()-a.Y())*dy) / segLen2
		u = math.Max(0, math.Min(1, u))
	}
	s = r.refS[bestSeg] + u*(r.refS[bestSeg+1]-r.refS[bestSeg])

	x, y, hdg := r.Evaluate(s)
	t = -(p.X()-x)*math.Sin(hdg) + (p.Y()-y)*math.Cos(hdg)
	return s, t, math.Sqrt(best)
}

// GetClosestWaypointOnRoad returns the waypoint on the nearest lane whose type
// is in mask.
func (m *Map) GetClosestWaypointOnRoad(location mgl64.Vec3, mask LaneType) (Waypoint, bool) {
	p := orb.Point{location.X(), location.Y()}

	var best Waypoint
	bestDist := math.MaxFloat64
	found := false
	for _, road := range m.roads {
		if boundDistance(road.bound, p) > bestDist {
			continue
		}
		s, t, _ := road.project(p)
		si := road.SectionAt(s)
		sec := &road.Sections[si]
		for _, lanes := range [][]Lane{sec.Left, sec.Right} {
			for i := range lanes {
				lane := &lanes[i]
				if !lane.Type.Matches(mask) {
					continue
				}
				inner, outer, ok := road.LaneBorders(si, lane.ID, s)
				if !ok {
					continue
				}
				lo, hi := math.Min(inner, outer), math.Max(inner, outer)
				lateral := 0.0
				switch {
				case t < lo:
					lateral = lo - t
				case t > hi:
					lateral = t - hi
				}
				x, y, _ := road.Evaluate(s)
				along := math.Hypot(p.X()-x, p.Y()-y) - math.Abs(t)
				dist := math.Hypot(lateral, math.Max(0, along))
				if dist < bestDist {
					bestDist = dist
					best = Waypoint{RoadID: road.ID, Section: si, LaneID: lane.ID, S: s}
					found = true
				}
			}
		}
	}
	return best, found
}

func boundDistance(b orb.Bound, p orb.Point) float64 {
	dx := math.Max(0, math.Max(b.Min.X()-p.X(), p.X()-b.Max.X()))
	dy := math.Max(0, math.Max(b.Min.Y()-p.Y(), p.Y()-b.Max.Y()))
	return math.Hypot(dx, dy)
}

// GetLaneWidth returns the width of the waypoint's lane at its s.
func (m *Map) GetLaneWidth(wp Waypoint) float64 {
	road, ok := m.index[wp.RoadID]
	if !ok || wp.Section < 0 || wp.Section >= len(road.Sections) {
		return 0
	}
	lane, ok := road.Lane(wp.Section, wp.LaneID)
	if !ok {
		return 0
	}
	return lane.Width(wp.S - road.Sections[wp.Section].S)
}

// ComputeTransform returns the transform at the centre of the waypoint's lane,
// facing the lane's driving direction.
func (m *Map) ComputeTransform(wp Waypoint) geom.Transform {
	road, ok := m.index[wp.RoadID]
	if !ok || wp.Section < 0 || wp.Section >= len(road.Sections) {
		return geom.Identity()
	}
	inner, outer, ok := road.LaneBorders(wp.Section, wp.LaneID, wp.S)
	if !ok {
		return geom.Identity()
	}
	_, _, hdg := road.Evaluate(wp.S)
	if wp.LaneID > 0 {
		hdg += math.Pi
	}
	return geom.WithYaw(road.PointAt(wp.S, (inner+outer)/2), hdg)
}

// GetTreesTransform returns prop anchors along the outer edge of every non
// junction road, spaced along s and pushed outward by edgeDistance+extraOffset.
// Only anchors inside [min, max) are returned. The category is the outermost
// lane type on that side.
func (m *Map) GetTreesTransform(min, max mgl64.Vec3, spacing, edgeDistance, extraOffset float64) []PropAnchor {
	if spacing <= 0 {
		return nil
	}
	area := geom.Box{Min: min, Max: max}
	qb := queryBound(min, max).Pad(edgeDistance + extraOffset)

	var out []PropAnchor
	for _, road := range m.roads {
		if road.Junction || !road.bound.Intersects(qb) {
			continue
		}
		for s := spacing / 2; s < road.Length; s += spacing {
			si := road.SectionAt(s)
			sec := &road.Sections[si]
			_, _, hdg := road.Evaluate(s)

			for _, side := range []struct {
				lanes []Lane
				sign  float64
			}{{sec.Left, 1}, {sec.Right, -1}} {
				if len(side.lanes) == 0 {
					continue
				}
				last := side.lanes[len(side.lanes)-1]
				_, outer, ok := road.LaneBorders(si, last.ID, s)
				if !ok {
					continue
				}
				t := outer + side.sign*(edgeDistance+extraOffset)
				loc := road.PointAt(s, t)
				if !area.ContainsXY(loc) {
					continue
				}
				out = append(out, PropAnchor{
					Transform: geom.WithYaw(loc, hdg),
					Category:  last.Type.String(),
				})
			}
		}
	}
	return out
}

// GetAllSignalReferences returns every signal with its world transform.
func (m *Map) GetAllSignalReferences() []SignalRef {
	var out []SignalRef
	for _, road := range m.roads {
		for _, sig := range road.Signals {
			_, _, hdg := road.Evaluate(sig.S)
			if sig.Orientation == "-" {
				hdg += math.Pi
			}
			loc := road.PointAt(sig.S, sig.T)
			loc[2] = sig.ZOffset
			out = append(out, SignalRef{
				ID:          sig.ID,
				Name:        sig.Name,
				RoadID:      road.ID,
				S:           sig.S,
				T:           sig.T,
				ZOffset:     sig.ZOffset,
				Orientation: sig.Orientation,
				Type:        sig.Type,
				Transform:   geom.WithYaw(loc, hdg),
			})
		}
	}
	return out
}

var _ Network = (*Map)(nil)
