// Package roadnet holds the read-only road network model consumed by the
// tile generator, together with a parser for a subset of OpenDRIVE.
package roadnet

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// LaneType classifies a lane. Values are bit flags so they can be combined
// into a query mask.
type LaneType uint32

// Lane type constants.
const (
	LaneNone          LaneType = 0
	LaneDriving       LaneType = 1 << 1
	LaneStop          LaneType = 1 << 2
	LaneShoulder      LaneType = 1 << 3
	LaneBiking        LaneType = 1 << 4
	LaneSidewalk      LaneType = 1 << 5
	LaneBorder        LaneType = 1 << 6
	LaneRestricted    LaneType = 1 << 7
	LaneParking       LaneType = 1 << 8
	LaneBidirectional LaneType = 1 << 9
	LaneMedian        LaneType = 1 << 10
	LaneSpecial1      LaneType = 1 << 11
	LaneSpecial2      LaneType = 1 << 12
	LaneSpecial3      LaneType = 1 << 13
	LaneRoadWorks     LaneType = 1 << 14
	LaneTram          LaneType = 1 << 15
	LaneRail          LaneType = 1 << 16
	LaneEntry         LaneType = 1 << 17
	LaneExit          LaneType = 1 << 18
	LaneOffRamp       LaneType = 1 << 19
	LaneOnRamp        LaneType = 1 << 20
	LaneAny           LaneType = 0xFFFFFFFE
)

var laneTypeNames = map[LaneType]string{
	LaneNone:          "None",
	LaneDriving:       "Driving",
	LaneStop:          "Stop",
	LaneShoulder:      "Shoulder",
	LaneBiking:        "Biking",
	LaneSidewalk:      "Sidewalk",
	LaneBorder:        "Border",
	LaneRestricted:    "Restricted",
	LaneParking:       "Parking",
	LaneBidirectional: "Bidirectional",
	LaneMedian:        "Median",
	LaneSpecial1:      "Special1",
	LaneSpecial2:      "Special2",
	LaneSpecial3:      "Special3",
	LaneRoadWorks:     "RoadWorks",
	LaneTram:          "Tram",
	LaneRail:          "Rail",
	LaneEntry:         "Entry",
	LaneExit:          "Exit",
	LaneOffRamp:       "OffRamp",
	LaneOnRamp:        "OnRamp",
	LaneAny:           "Any",
}

// String returns the lane type name.
func (t LaneType) String() string {
	if name, ok := laneTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("LaneType(%#x)", uint32(t))
}

// Matches reports whether t is included in the mask.
func (t LaneType) Matches(mask LaneType) bool {
	return t&mask != 0
}

// ParseLaneType converts an OpenDRIVE lane type attribute to a LaneType.
// Unknown names map to LaneNone.
func ParseLaneType(s string) LaneType {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range laneTypeNames {
		if strings.ToLower(name) == s {
			return t
		}
	}
	switch s {
	case "curb":
		return LaneBorder
	case "walking":
		return LaneSidewalk
	}
	return LaneNone
}

// SortedLaneTypes returns the keys of a lane type bucket map in ascending order.
func SortedLaneTypes[T any](m map[LaneType]T) []LaneType {
	keys := make([]LaneType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// RawMesh is a triangle mesh in road network meters, as produced by the model.
type RawMesh struct {
	Vertices []mgl64.Vec3
	Indices  []uint32
	UVs      []mgl64.Vec2

	// Stride is the number of vertices per cross-section row when the mesh
	// is a ribbon laid along the road. Zero means no row structure.
	Stride int
}

// IsValid reports whether the mesh can be assembled: it has vertices, whole
// triangles, in-range indices and either no UVs or one per vertex.
func (m *RawMesh) IsValid() bool {
	if len(m.Vertices) == 0 || len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
		return false
	}
	if len(m.UVs) != 0 && len(m.UVs) != len(m.Vertices) {
		return false
	}
	if m.Stride > 0 && len(m.Vertices)%m.Stride != 0 {
		return false
	}
	n := uint32(len(m.Vertices))
	for _, idx := range m.Indices {
		if idx >= n {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can mutate vertices freely.
func (m *RawMesh) Clone() RawMesh {
	return RawMesh{
		Vertices: append([]mgl64.Vec3(nil), m.Vertices...),
		Indices:  append([]uint32(nil), m.Indices...),
		UVs:      append([]mgl64.Vec2(nil), m.UVs...),
		Stride:   m.Stride,
	}
}

// MeshParams controls mesh generation.
type MeshParams struct {
	SampleStep     float64 // meters between cross-section rows
	MaxChunkLength float64 // meters of road per chunk
	MarkWidth      float64 // lane mark strip width in meters
	DashLength     float64 // painted length of broken marks
	DashGap        float64 // gap between broken mark dashes
}

// DefaultMeshParams returns the generation parameters used by the generator.
func DefaultMeshParams() MeshParams {
	return MeshParams{
		SampleStep:     1.0,
		MaxChunkLength: 50.0,
		MarkWidth:      0.15,
		DashLength:     3.0,
		DashGap:        6.0,
	}
}

// Waypoint identifies a point on a lane.
type Waypoint struct {
	RoadID  int
	Section int
	LaneID  int
	S       float64
}

// PropAnchor is a placement candidate for a tree or other prop.
type PropAnchor struct {
	Transform geom.Transform // meters
	Category  string
}

// SignalRef is a signal placed along a road.
type SignalRef struct {
	ID          string
	Name        string
	RoadID      int
	S           float64
	T           float64
	ZOffset     float64
	Orientation string
	Type        string
	Transform   geom.Transform // meters
}

// Network is the query surface of a parsed road network. Implementations
// must be immutable and safe for concurrent reads.
type Network interface {
	Name() string
	Bounds() geom.Box
	GenerateOrderedChunkedMeshInLocations(params MeshParams, min, max mgl64.Vec3) map[LaneType][]RawMesh
	GenerateLineMarkings(params MeshParams, min, max mgl64.Vec3) ([]RawMesh, []string)
	GetTreesTransform(min, max mgl64.Vec3, spacing, edgeDistance, extraOffset float64) []PropAnchor
	GetClosestWaypointOnRoad(location mgl64.Vec3, mask LaneType) (Waypoint, bool)
	GetLaneWidth(wp Waypoint) float64
	ComputeTransform(wp Waypoint) geom.Transform
	GetAllSignalReferences() []SignalRef
}
