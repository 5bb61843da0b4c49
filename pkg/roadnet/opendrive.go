package roadnet

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Faultbox/roadtiles/pkg/encoding"
)

// Parse errors.
var (
	ErrNoRoads       = errors.New("road network contains no roads")
	ErrInvalidRoadID = errors.New("invalid road id")
	ErrNoGeometry    = errors.New("road has no plan view geometry")
	ErrNoLanes       = errors.New("road has no lane sections")
)

type xodrFile struct {
	XMLName xml.Name   `xml:"OpenDRIVE"`
	Header  xodrHeader `xml:"header"`
	Roads   []xodrRoad `xml:"road"`
}

type xodrHeader struct {
	Name string `xml:"name,attr"`
}

type xodrRoad struct {
	ID           string            `xml:"id,attr"`
	Name         string            `xml:"name,attr"`
	Length       float64           `xml:"length,attr"`
	Junction     string            `xml:"junction,attr"`
	Geometries   []xodrGeometry    `xml:"planView>geometry"`
	LaneSections []xodrLaneSection `xml:"lanes>laneSection"`
	Signals      []xodrSignal      `xml:"signals>signal"`
}

type xodrGeometry struct {
	S      float64     `xml:"s,attr"`
	X      float64     `xml:"x,attr"`
	Y      float64     `xml:"y,attr"`
	Hdg    float64     `xml:"hdg,attr"`
	Length float64     `xml:"length,attr"`
	Line   *struct{}   `xml:"line"`
	Arc    *xodrArc    `xml:"arc"`
	Spiral *xodrSpiral `xml:"spiral"`
}

type xodrArc struct {
	Curvature float64 `xml:"curvature,attr"`
}

type xodrSpiral struct {
	CurvStart float64 `xml:"curvStart,attr"`
	CurvEnd   float64 `xml:"curvEnd,attr"`
}

type xodrLaneSection struct {
	S      float64    `xml:"s,attr"`
	Left   []xodrLane `xml:"left>lane"`
	Center []xodrLane `xml:"center>lane"`
	Right  []xodrLane `xml:"right>lane"`
}

type xodrLane struct {
	ID        int            `xml:"id,attr"`
	Type      string         `xml:"type,attr"`
	Widths    []xodrWidth    `xml:"width"`
	RoadMarks []xodrRoadMark `xml:"roadMark"`
}

type xodrWidth struct {
	SOffset float64 `xml:"sOffset,attr"`
	A       float64 `xml:"a,attr"`
	B       float64 `xml:"b,attr"`
	C       float64 `xml:"c,attr"`
	D       float64 `xml:"d,attr"`
}

type xodrRoadMark struct {
	SOffset float64 `xml:"sOffset,attr"`
	Type    string  `xml:"type,attr"`
	Color   string  `xml:"color,attr"`
}

type xodrSignal struct {
	ID          string  `xml:"id,attr"`
	Name        string  `xml:"name,attr"`
	S           float64 `xml:"s,attr"`
	T           float64 `xml:"t,attr"`
	ZOffset     float64 `xml:"zOffset,attr"`
	Orientation string  `xml:"orientation,attr"`
	Type        string  `xml:"type,attr"`
}

// Parse parses an OpenDRIVE document into an immutable Map.
//
// Supported plan view primitives are line and arc. Spirals are approximated
// by an arc with their mean curvature; other primitives are treated as lines.
func Parse(data []byte) (*Map, error) {
	var doc xodrFile
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = encoding.CharsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding OpenDRIVE: %w", err)
	}
	if len(doc.Roads) == 0 {
		return nil, ErrNoRoads
	}

	m := &Map{
		name:  doc.Header.Name,
		roads: make([]*Road, 0, len(doc.Roads)),
		index: make(map[int]*Road, len(doc.Roads)),
	}
	for i := range doc.Roads {
		road, err := buildRoad(&doc.Roads[i])
		if err != nil {
			return nil, fmt.Errorf("road %q: %w", doc.Roads[i].ID, err)
		}
		if _, dup := m.index[road.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidRoadID, road.ID)
		}
		m.roads = append(m.roads, road)
		m.index[road.ID] = road
	}
	sort.Slice(m.roads, func(i, j int) bool { return m.roads[i].ID < m.roads[j].ID })
	m.computeBounds()
	return m, nil
}

// ParseFile parses an OpenDRIVE file from disk.
func ParseFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OpenDRIVE file: %w", err)
	}
	return Parse(data)
}

func buildRoad(x *xodrRoad) (*Road, error) {
	id, err := strconv.Atoi(strings.TrimSpace(x.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoadID, x.ID)
	}
	if len(x.Geometries) == 0 {
		return nil, ErrNoGeometry
	}
	if len(x.LaneSections) == 0 {
		return nil, ErrNoLanes
	}

	road := &Road{
		ID:       id,
		Name:     x.Name,
		Length:   x.Length,
		Junction: x.Junction != "" && x.Junction != "-1",
	}

	for _, g := range x.Geometries {
		seg := Segment{S: g.S, X: g.X, Y: g.Y, Hdg: g.Hdg, Length: g.Length}
		switch {
		case g.Arc != nil:
			seg.Curvature = g.Arc.Curvature
		case g.Spiral != nil:
			seg.Curvature = (g.Spiral.CurvStart + g.Spiral.CurvEnd) / 2
		}
		road.Segments = append(road.Segments, seg)
	}
	sort.Slice(road.Segments, func(i, j int) bool { return road.Segments[i].S < road.Segments[j].S })

	if road.Length <= 0 {
		last := road.Segments[len(road.Segments)-1]
		road.Length = last.S + last.Length
	}

	for _, xs := range x.LaneSections {
		sec := LaneSection{S: xs.S}
		for _, l := range xs.Left {
			sec.Left = append(sec.Left, buildLane(l))
		}
		for _, l := range xs.Right {
			sec.Right = append(sec.Right, buildLane(l))
		}
		if len(xs.Center) > 0 {
			sec.Center = buildLane(xs.Center[0])
		}
		// Left lanes ordered 1, 2, ...; right lanes ordered -1, -2, ...
		sort.Slice(sec.Left, func(i, j int) bool { return sec.Left[i].ID < sec.Left[j].ID })
		sort.Slice(sec.Right, func(i, j int) bool { return sec.Right[i].ID > sec.Right[j].ID })
		road.Sections = append(road.Sections, sec)
	}
	sort.Slice(road.Sections, func(i, j int) bool { return road.Sections[i].S < road.Sections[j].S })

	for _, xs := range x.Signals {
		road.Signals = append(road.Signals, Signal{
			ID:          xs.ID,
			Name:        xs.Name,
			S:           xs.S,
			T:           xs.T,
			ZOffset:     xs.ZOffset,
			Orientation: xs.Orientation,
			Type:        xs.Type,
		})
	}

	road.buildReferenceLine()
	return road, nil
}

func buildLane(x xodrLane) Lane {
	lane := Lane{ID: x.ID, Type: ParseLaneType(x.Type)}
	for _, w := range x.Widths {
		lane.Widths = append(lane.Widths, WidthRecord{SOffset: w.SOffset, A: w.A, B: w.B, C: w.C, D: w.D})
	}
	sort.Slice(lane.Widths, func(i, j int) bool { return lane.Widths[i].SOffset < lane.Widths[j].SOffset })
	if len(x.RoadMarks) > 0 {
		rm := x.RoadMarks[0]
		lane.Mark = RoadMark{Type: strings.ToLower(rm.Type), Color: strings.ToLower(rm.Color)}
	}
	return lane
}
