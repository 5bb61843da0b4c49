package assembler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/labels"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/Faultbox/roadtiles/pkg/roadnet"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Materials names the default assets each map gets its own copy of.
type Materials struct {
	Road       engine.AssetID
	Sidewalk   engine.AssetID
	Base       engine.AssetID
	Landscape  engine.AssetID
	MarkWhite  engine.AssetID
	MarkYellow engine.AssetID
}

// MaterialCache duplicates default materials into the map namespace once and
// hands out the copies.
type MaterialCache struct {
	eng       engine.Engine
	defaults  Materials
	namespace string
	log       *zap.Logger

	mu     sync.Mutex
	copies map[engine.AssetID]engine.AssetID
	failed map[engine.AssetID]bool
}

// NewMaterialCache creates a cache writing copies into namespace.
func NewMaterialCache(eng engine.Engine, defaults Materials, namespace string, log *zap.Logger) *MaterialCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &MaterialCache{
		eng:       eng,
		defaults:  defaults,
		namespace: namespace,
		log:       log,
		copies:    make(map[engine.AssetID]engine.AssetID),
		failed:    make(map[engine.AssetID]bool),
	}
}

// Defaults returns the source materials.
func (c *MaterialCache) Defaults() Materials { return c.defaults }

// Get returns the namespace copy of source. A missing source is reported
// once at warning level and yields false; the mesh is then emitted without
// a material.
func (c *MaterialCache) Get(source engine.AssetID) (engine.AssetID, bool) {
	if source == "" {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.copies[source]; ok {
		return id, true
	}
	if c.failed[source] {
		return "", false
	}
	id, err := c.eng.DuplicateAssetIntoNamespace(source, c.namespace)
	if err != nil {
		c.failed[source] = true
		c.log.Warn("material unavailable, meshes will have none",
			zap.String("material", string(source)),
			zap.String("namespace", c.namespace),
			zap.Error(err))
		return "", false
	}
	c.copies[source] = id
	return id, true
}

// ForLaneType picks the material for a lane bucket.
func (c *MaterialCache) ForLaneType(t roadnet.LaneType) (engine.AssetID, bool) {
	switch t {
	case roadnet.LaneDriving:
		return c.Get(c.defaults.Road)
	case roadnet.LaneSidewalk:
		// TODO: confirm with map owners whether sidewalks should use
		// defaults.Sidewalk; they have always shared the road material.
		return c.Get(c.defaults.Road)
	default:
		return c.Get(c.defaults.Base)
	}
}

// ForMarkColor picks the lane mark material for a paint colour.
func (c *MaterialCache) ForMarkColor(color string) (engine.AssetID, bool) {
	if color == "yellow" {
		return c.Get(c.defaults.MarkYellow)
	}
	return c.Get(c.defaults.MarkWhite)
}

// Emitter creates engine meshes and objects for prepared meshes.
type Emitter struct {
	eng       engine.Engine
	materials *MaterialCache
	labels    *labels.Counter
	namespace string
	log       *zap.Logger
}

// NewEmitter creates an emitter. Labels come from the caller's counter.
func NewEmitter(eng engine.Engine, materials *MaterialCache, counter *labels.Counter, namespace string, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	if counter == nil {
		counter = labels.NewCounter()
	}
	return &Emitter{eng: eng, materials: materials, labels: counter, namespace: namespace, log: log}
}

// Materials returns the emitter's material cache.
func (e *Emitter) Materials() *MaterialCache { return e.materials }

// EmitRoads emits one object per lane mesh, tagged with tags. Meshes the
// engine rejects are logged and skipped.
func (e *Emitter) EmitRoads(meshes []PreparedMesh, tags ...string) []engine.ObjectID {
	ids := make([]engine.ObjectID, 0, len(meshes))
	for i := range meshes {
		p := &meshes[i]
		material, _ := e.materials.ForLaneType(p.LaneType)
		id, err := e.Emit(p, material, "Road_"+p.LaneType.String(), tags)
		if err != nil {
			e.log.Error("failed to emit lane mesh",
				zap.Int("index", p.Index),
				zap.Stringer("lane_type", p.LaneType),
				zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Emit creates the mesh asset for p and places it at p's centroid.
func (e *Emitter) Emit(p *PreparedMesh, material engine.AssetID, category string, tags []string) (engine.ObjectID, error) {
	label := e.labels.Next(category)
	data := engine.MeshData{
		Name:      label,
		Category:  category,
		Namespace: e.namespace,
		Material:  material,
		Vertices:  scaled(p.Vertices),
		Indices:   p.Indices,
		Normals:   p.Normals,
		UVs:       p.UVs,
		Tangents:  p.Tangents,
	}
	mesh, err := e.eng.CreateMesh(data)
	if err != nil {
		return 0, fmt.Errorf("creating mesh %s: %w", label, err)
	}
	id, err := e.eng.PlaceObject(engine.Placement{
		Kind:      engine.KindMesh,
		Mesh:      mesh,
		Label:     label,
		Transform: geom.At(p.Placement()),
		Tags:      tags,
	})
	if err != nil {
		return 0, fmt.Errorf("placing %s: %w", label, err)
	}
	return id, nil
}

// EmitMesh creates and places an arbitrary mesh already in engine units.
func (e *Emitter) EmitMesh(kind engine.Kind, data engine.MeshData, at mgl64.Vec3, tags []string) (engine.ObjectID, error) {
	if data.Name == "" {
		data.Name = e.labels.Next(data.Category)
	}
	if data.Namespace == "" {
		data.Namespace = e.namespace
	}
	mesh, err := e.eng.CreateMesh(data)
	if err != nil {
		if errors.Is(err, engine.ErrEmptyMesh) {
			e.log.Debug("skipping empty mesh", zap.String("name", data.Name))
		}
		return 0, fmt.Errorf("creating mesh %s: %w", data.Name, err)
	}
	return e.eng.PlaceObject(engine.Placement{
		Kind:      kind,
		Mesh:      mesh,
		Label:     data.Name,
		Transform: geom.At(at),
		Tags:      tags,
	})
}

// Label returns the next label for prefix.
func (e *Emitter) Label(prefix string) string { return e.labels.Next(prefix) }

func scaled(vs []mgl64.Vec3) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(vs))
	for i, v := range vs {
		out[i] = v.Mul(geom.CentimetersPerMeter)
	}
	return out
}
