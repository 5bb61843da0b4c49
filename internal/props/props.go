// Package props places trees and other roadside props along the road edges.
package props

import (
	"sort"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/labels"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/Faultbox/roadtiles/pkg/roadnet"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Anchors supplies candidate prop transforms from the road network.
type Anchors interface {
	GetTreesTransform(min, max mgl64.Vec3, spacing, edgeDistance, extraOffset float64) []roadnet.PropAnchor
}

// Ground places anchors on the terrain.
type Ground interface {
	GetHeight(x, y float64, isDrivingLane bool) float64
	GetSnappedPosition(t geom.Transform, scene engine.Raycaster) geom.Transform
}

// Settings configures prop placement. Distances are meters.
type Settings struct {
	Spacing      float64
	EdgeDistance float64
	ExtraOffset  float64
}

// Prop is a placed anchor in engine units.
type Prop struct {
	Transform geom.Transform
	Category  string
	Label     string
}

// Placer computes prop transforms.
type Placer struct {
	anchors  Anchors
	ground   Ground
	settings Settings
	labels   *labels.Counter
	log      *zap.Logger
}

// NewPlacer creates a placer labelling props from counter.
func NewPlacer(anchors Anchors, ground Ground, settings Settings, counter *labels.Counter, log *zap.Logger) *Placer {
	if log == nil {
		log = zap.NewNop()
	}
	if counter == nil {
		counter = labels.NewCounter()
	}
	return &Placer{anchors: anchors, ground: ground, settings: settings, labels: counter, log: log}
}

// PlaceProps returns one prop per anchor inside bounds (meters). Each anchor
// is raised to the sampled ground and then snapped onto whatever surface the
// scene has below or above it.
func (p *Placer) PlaceProps(bounds geom.Box, scene engine.Raycaster) []Prop {
	anchors := p.anchors.GetTreesTransform(bounds.Min, bounds.Max,
		p.settings.Spacing, p.settings.EdgeDistance, p.settings.ExtraOffset)

	props := make([]Prop, 0, len(anchors))
	for _, a := range anchors {
		t := a.Transform
		loc := t.Location
		z := p.ground.GetHeight(loc.X(), loc.Y(), false)
		t.Location = mgl64.Vec3{loc.X(), loc.Y(), z}.Mul(geom.CentimetersPerMeter)
		t = p.ground.GetSnappedPosition(t, scene)

		props = append(props, Prop{
			Transform: t,
			Category:  a.Category,
			Label:     p.labels.Next("Tree_" + a.Category),
		})
	}
	return props
}

// treeMesh is a pair of crossed vertical quads, 4 m tall, used as the
// instanced stand-in for every category.
func treeMesh(category string) engine.MeshData {
	const half, height = 100.0, 400.0
	v := []mgl64.Vec3{
		{-half, 0, 0}, {half, 0, 0}, {-half, 0, height}, {half, 0, height},
		{0, -half, 0}, {0, half, 0}, {0, -half, height}, {0, half, height},
	}
	uv := []mgl64.Vec2{{0, 1}, {1, 1}, {0, 0}, {1, 0}, {0, 1}, {1, 1}, {0, 0}, {1, 0}}
	idx := []uint32{0, 1, 2, 2, 1, 3, 4, 5, 6, 6, 5, 7}
	n := geom.VertexNormals(v, idx)
	return engine.MeshData{
		Name:     "SM_Tree_" + category,
		Category: "Tree",
		Vertices: v,
		Indices:  idx,
		Normals:  n,
		UVs:      uv,
		Tangents: geom.Tangents(v, idx, uv, n),
	}
}

// Spawn places props as one instanced mesh per category. Each group sits at
// the mean of its instances and holds instance transforms relative to it.
func (p *Placer) Spawn(eng engine.Engine, props []Prop, namespace string, tags ...string) []engine.ObjectID {
	groups := make(map[string][]Prop)
	for _, pr := range props {
		groups[pr.Category] = append(groups[pr.Category], pr)
	}
	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var ids []engine.ObjectID
	for _, category := range categories {
		group := groups[category]
		locs := make([]mgl64.Vec3, len(group))
		for i, pr := range group {
			locs[i] = pr.Transform.Location
		}
		center := geom.Centroid(locs)

		instances := make([]geom.Transform, len(group))
		for i, pr := range group {
			instances[i] = pr.Transform.Translated(center.Mul(-1))
		}

		data := treeMesh(category)
		data.Namespace = namespace
		mesh, err := eng.CreateMesh(data)
		if err != nil {
			p.log.Error("failed to create prop mesh", zap.String("category", category), zap.Error(err))
			continue
		}
		id, err := eng.PlaceObject(engine.Placement{
			Kind:      engine.KindInstancedMesh,
			Mesh:      mesh,
			Class:     category,
			Label:     p.labels.Next("Trees_" + category),
			Transform: geom.At(center),
			Instances: instances,
			Tags:      tags,
		})
		if err != nil {
			p.log.Error("failed to place props", zap.String("category", category), zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
