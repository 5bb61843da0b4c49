package roadnet

import (
	"math"

	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
)

// referenceStep is the sampling distance of the cached reference polyline.
const referenceStep = 0.5

// Map is an immutable parsed road network.
type Map struct {
	name   string
	roads  []*Road
	index  map[int]*Road
	bounds geom.Box
}

// Road is a single OpenDRIVE road.
type Road struct {
	ID       int
	Name     string
	Length   float64
	Junction bool
	Segments []Segment
	Sections []LaneSection
	Signals  []Signal

	refLine orb.LineString
	refS    []float64
	bound   orb.Bound
}

// Segment is one plan view primitive. Zero curvature is a straight line.
type Segment struct {
	S         float64
	X         float64
	Y         float64
	Hdg       float64
	Length    float64
	Curvature float64
}

// LaneSection is a run of road with a constant lane layout.
type LaneSection struct {
	S      float64
	Left   []Lane
	Center Lane
	Right  []Lane
}

// Lane is one lane of a section.
type Lane struct {
	ID     int
	Type   LaneType
	Widths []WidthRecord
	Mark   RoadMark
}

// WidthRecord is a cubic width polynomial starting at SOffset within the section.
type WidthRecord struct {
	SOffset, A, B, C, D float64
}

// RoadMark describes the paint on a lane's outer border.
type RoadMark struct {
	Type  string
	Color string
}

// Painted reports whether the mark produces geometry.
func (m RoadMark) Painted() bool {
	return m.Type != "" && m.Type != "none"
}

// Broken reports whether the mark is dashed.
func (m RoadMark) Broken() bool {
	return m.Type == "broken" || m.Type == "broken broken"
}

// Signal is a road signal.
type Signal struct {
	ID          string
	Name        string
	S           float64
	T           float64
	ZOffset     float64
	Orientation string
	Type        string
}

// Name returns the network name from the OpenDRIVE header.
func (m *Map) Name() string { return m.name }

// Roads returns the roads ordered by id.
func (m *Map) Roads() []*Road { return m.roads }

// Road returns the road with the given id.
func (m *Map) Road(id int) (*Road, bool) {
	r, ok := m.index[id]
	return r, ok
}

// Bounds returns the XY extent of all lanes, in meters.
func (m *Map) Bounds() geom.Box { return m.bounds }

func (m *Map) computeBounds() {
	b := geom.EmptyBox()
	for _, r := range m.roads {
		b.Extend(mgl64.Vec3{r.bound.Min.X(), r.bound.Min.Y(), 0})
		b.Extend(mgl64.Vec3{r.bound.Max.X(), r.bound.Max.Y(), 0})
	}
	m.bounds = b
}

// Evaluate returns the reference line position and heading at s.
func (r *Road) Evaluate(s float64) (x, y, hdg float64) {
	s = math.Max(0, math.Min(s, r.Length))
	seg := r.Segments[0]
	for _, cand := range r.Segments {
		if cand.S <= s {
			seg = cand
		}
	}
	ds := s - seg.S
	if math.Abs(seg.Curvature) < 1e-12 {
		return seg.X + ds*math.Cos(seg.Hdg), seg.Y + ds*math.Sin(seg.Hdg), seg.Hdg
	}
	k := seg.Curvature
	h := seg.Hdg + k*ds
	x = seg.X + (math.Sin(h)-math.Sin(seg.Hdg))/k
	y = seg.Y + (math.Cos(seg.Hdg)-math.Cos(h))/k
	return x, y, h
}

// PointAt returns the position at longitudinal s and lateral offset t
// (positive to the left of the reference line).
func (r *Road) PointAt(s, t float64) mgl64.Vec3 {
	x, y, hdg := r.Evaluate(s)
	return mgl64.Vec3{x - t*math.Sin(hdg), y + t*math.Cos(hdg), 0}
}

// SectionAt returns the index of the lane section containing s.
func (r *Road) SectionAt(s float64) int {
	idx := 0
	for i, sec := range r.Sections {
		if sec.S <= s {
			idx = i
		}
	}
	return idx
}

// SectionEnd returns the s coordinate where section i ends.
func (r *Road) SectionEnd(i int) float64 {
	if i+1 < len(r.Sections) {
		return r.Sections[i+1].S
	}
	return r.Length
}

// Width returns the lane width ds meters into its section.
func (l *Lane) Width(ds float64) float64 {
	if len(l.Widths) == 0 {
		return 0
	}
	w := l.Widths[0]
	for _, cand := range l.Widths {
		if cand.SOffset <= ds {
			w = cand
		}
	}
	d := ds - w.SOffset
	return w.A + w.B*d + w.C*d*d + w.D*d*d*d
}

// LaneBorders returns the lateral offsets of the lane's inner and outer borders
// at s. Left lanes have positive offsets, right lanes negative.
func (r *Road) LaneBorders(section int, laneID int, s float64) (inner, outer float64, ok bool) {
	sec := &r.Sections[section]
	ds := s - sec.S
	switch {
	case laneID > 0:
		for i := range sec.Left {
			w := sec.Left[i].Width(ds)
			if sec.Left[i].ID == laneID {
				return inner, inner + w, true
			}
			inner += w
		}
	case laneID < 0:
		for i := range sec.Right {
			w := sec.Right[i].Width(ds)
			if sec.Right[i].ID == laneID {
				return inner, inner - w, true
			}
			inner -= w
		}
	}
	return 0, 0, false
}

// Lane returns the lane with the given id in a section.
func (r *Road) Lane(section, laneID int) (*Lane, bool) {
	sec := &r.Sections[section]
	if laneID == 0 {
		return &sec.Center, true
	}
	lanes := sec.Right
	if laneID > 0 {
		lanes = sec.Left
	}
	for i := range lanes {
		if lanes[i].ID == laneID {
			return &lanes[i], true
		}
	}
	return nil, false
}

func (r *Road) buildReferenceLine() {
	n := int(math.Ceil(r.Length/referenceStep)) + 1
	if n < 2 {
		n = 2
	}
	r.refLine = make(orb.LineString, 0, n)
	r.refS = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		s := math.Min(float64(i)*referenceStep, r.Length)
		x, y, _ := r.Evaluate(s)
		r.refLine = append(r.refLine, orb.Point{x, y})
		r.refS = append(r.refS, s)
	}

	// Pad the reference line bound by the widest cross-section of the road.
	pad := 0.0
	for i := range r.Sections {
		for _, s := range []float64{r.Sections[i].S, r.SectionEnd(i)} {
			for _, lanes := range [][]Lane{r.Sections[i].Left, r.Sections[i].Right} {
				total := 0.0
				for j := range lanes {
					total += lanes[j].Width(s - r.Sections[i].S)
				}
				pad = math.Max(pad, total)
			}
		}
	}
	r.bound = r.refLine.Bound().Pad(pad)
}
