// Package memory is an in-process engine.Engine. Objects live in named
// contexts; saving a context encodes it as a tile file, and a saved context
// that is left is unloaded until loaded again.
package memory

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/engine/tilefile"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Options configures an Engine.
type Options struct {
	Dir    string           // Saved contexts are also written here when set
	Assets []engine.AssetID // Source assets available for duplication
	Log    *zap.Logger
}

type meshRecord struct {
	data       engine.MeshData
	bounds     geom.Box // local space
	standalone bool
}

type contextState struct {
	origin mgl64.Vec3
	loaded bool
	dirty  bool
}

// Engine keeps everything in memory. It is safe for concurrent use.
type Engine struct {
	mu  sync.RWMutex
	log *zap.Logger
	dir string

	assets   map[engine.AssetID]bool
	meshes   map[engine.MeshID]*meshRecord
	objects  map[engine.ObjectID]*engine.Object
	contexts map[string]*contextState
	saved    map[string][]byte
	current  string

	nextMesh   engine.MeshID
	nextObject engine.ObjectID
	undo       int
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine positioned in the root context.
func New(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		log:      log,
		dir:      opts.Dir,
		assets:   make(map[engine.AssetID]bool),
		meshes:   make(map[engine.MeshID]*meshRecord),
		objects:  make(map[engine.ObjectID]*engine.Object),
		contexts: map[string]*contextState{engine.RootContext: {loaded: true}},
		saved:    make(map[string][]byte),
		current:  engine.RootContext,
	}
	for _, a := range opts.Assets {
		e.assets[a] = true
	}
	return e
}

// Dir returns the directory saved contexts are written to, if any.
func (e *Engine) Dir() string { return e.dir }

// RegisterAsset makes a source asset available.
func (e *Engine) RegisterAsset(id engine.AssetID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assets[id] = true
}

// HasAsset reports whether id exists.
func (e *Engine) HasAsset(id engine.AssetID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.assets[id]
}

// CreateMesh registers a mesh asset. New meshes are standalone, so they
// survive garbage collection until ClearStandalone is called.
func (e *Engine) CreateMesh(data engine.MeshData) (engine.MeshID, error) {
	if len(data.Vertices) == 0 || len(data.Indices) < 3 {
		return 0, fmt.Errorf("%s: %w", data.Name, engine.ErrEmptyMesh)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if data.Material != "" && !e.assets[data.Material] {
		return 0, fmt.Errorf("%s material %s: %w", data.Name, data.Material, engine.ErrUnknownAsset)
	}
	e.nextMesh++
	e.meshes[e.nextMesh] = &meshRecord{
		data:       data,
		bounds:     geom.BoundsOf(data.Vertices),
		standalone: true,
	}
	e.undo++
	return e.nextMesh, nil
}

// DuplicateAssetIntoNamespace copies source to "<namespace>/<name>". Copying
// the same asset twice returns the existing copy.
func (e *Engine) DuplicateAssetIntoNamespace(source engine.AssetID, namespace string) (engine.AssetID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.assets[source] {
		return "", fmt.Errorf("%s: %w", source, engine.ErrUnknownAsset)
	}
	id := engine.AssetID(path.Join(namespace, path.Base(string(source))))
	if !e.assets[id] {
		e.assets[id] = true
		e.undo++
	}
	return id, nil
}

// PlaceObject places an object in the current context.
func (e *Engine) PlaceObject(p engine.Placement) (engine.ObjectID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p.Kind.HasMesh() {
		if _, ok := e.meshes[p.Mesh]; !ok {
			return 0, fmt.Errorf("placing %s: %w", p.Label, engine.ErrUnknownMesh)
		}
	}
	e.nextObject++
	obj := &engine.Object{
		ID:        e.nextObject,
		Kind:      p.Kind,
		Mesh:      p.Mesh,
		Class:     p.Class,
		Label:     p.Label,
		Transform: p.Transform,
		Instances: append([]geom.Transform(nil), p.Instances...),
		Tags:      append([]string(nil), p.Tags...),
		Context:   e.current,
	}
	e.objects[obj.ID] = obj
	e.contexts[e.current].dirty = true
	e.undo++
	return obj.ID, nil
}

// Objects returns the current context's objects ordered by id.
func (e *Engine) Objects() []engine.Object {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.objectsIn(e.current)
}

// ObjectsIn returns the objects of a loaded context ordered by id.
func (e *Engine) ObjectsIn(context string) []engine.Object {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.objectsIn(context)
}

func (e *Engine) objectsIn(context string) []engine.Object {
	var out []engine.Object
	for _, o := range e.objects {
		if o.Context == context {
			out = append(out, copyObject(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Object returns a loaded object.
func (e *Engine) Object(id engine.ObjectID) (engine.Object, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.objects[id]
	if !ok {
		return engine.Object{}, false
	}
	return copyObject(o), true
}

// SetObjectTransform moves an object.
func (e *Engine) SetObjectTransform(id engine.ObjectID, t geom.Transform) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.objects[id]
	if !ok {
		return fmt.Errorf("object %d: %w", id, engine.ErrUnknownObject)
	}
	o.Transform = t
	e.touch(o.Context)
	return nil
}

// SetInstanceTransforms replaces the instances of an instanced object.
func (e *Engine) SetInstanceTransforms(id engine.ObjectID, instances []geom.Transform) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.objects[id]
	if !ok {
		return fmt.Errorf("object %d: %w", id, engine.ErrUnknownObject)
	}
	o.Instances = append([]geom.Transform(nil), instances...)
	e.touch(o.Context)
	return nil
}

// MeshBounds returns a mesh's local bounds.
func (e *Engine) MeshBounds(id engine.MeshID) (geom.Box, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.meshes[id]
	if !ok {
		return geom.Box{}, false
	}
	return m.bounds, true
}

// MeshData returns a copy of a mesh's buffers.
func (e *Engine) MeshData(id engine.MeshID) (engine.MeshData, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.meshes[id]
	if !ok {
		return engine.MeshData{}, false
	}
	return m.data, true
}

// MeshCount returns the number of live mesh assets.
func (e *Engine) MeshCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.meshes)
}

// CurrentContext returns the active context name.
func (e *Engine) CurrentContext() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// LoadContext makes name the active context, restoring it from its saved
// state when it was unloaded. Leaving a clean, saved context unloads it.
func (e *Engine) LoadContext(name string) error {
	if name == "" {
		return fmt.Errorf("empty context name: %w", engine.ErrUnknownContext)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if name == e.current {
		return nil
	}

	ctx, ok := e.contexts[name]
	if !ok {
		ctx = &contextState{}
		e.contexts[name] = ctx
	}
	if !ctx.loaded {
		if data, ok := e.saved[name]; ok {
			if err := e.restore(name, data); err != nil {
				return err
			}
		}
		ctx.loaded = true
	}

	prev := e.current
	e.current = name
	e.unloadIfSaved(prev)
	return nil
}

// SetContextOrigin records the world origin stored with a context.
func (e *Engine) SetContextOrigin(name string, origin mgl64.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, ok := e.contexts[name]
	if !ok {
		ctx = &contextState{loaded: true}
		e.contexts[name] = ctx
	}
	ctx.origin = origin
	ctx.dirty = true
}

// MoveObjectsToContext reassigns objects to context, creating it if needed.
func (e *Engine) MoveObjectsToContext(ids []engine.ObjectID, context string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range ids {
		if _, ok := e.objects[id]; !ok {
			return fmt.Errorf("moving object %d: %w", id, engine.ErrUnknownObject)
		}
	}
	dst, ok := e.contexts[context]
	if !ok {
		dst = &contextState{loaded: true}
		e.contexts[context] = dst
	}
	if !dst.loaded {
		if data, ok := e.saved[context]; ok {
			if err := e.restore(context, data); err != nil {
				return err
			}
		}
		dst.loaded = true
	}
	for _, id := range ids {
		o := e.objects[id]
		e.touch(o.Context)
		o.Context = context
	}
	dst.dirty = true
	e.undo++
	return nil
}

// SaveDirtyState encodes every dirty context. With a directory configured
// each becomes <dir>/<context>.rtile.
func (e *Engine) SaveDirtyState() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.contexts))
	for name, ctx := range e.contexts {
		if ctx.dirty && ctx.loaded {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		tile := e.snapshot(name)
		data := tilefile.Encode(tile)
		e.saved[name] = data
		if e.dir != "" {
			if err := os.MkdirAll(e.dir, 0o755); err != nil {
				return fmt.Errorf("creating output dir: %w", err)
			}
			if err := os.WriteFile(filepath.Join(e.dir, name+tilefile.Extension), data, 0o644); err != nil {
				return fmt.Errorf("saving %s: %w", name, err)
			}
		}
		e.contexts[name].dirty = false
		e.log.Debug("saved context",
			zap.String("context", name),
			zap.Int("objects", len(tile.Entries)),
			zap.Int("bytes", len(data)))
	}
	return nil
}

// Saved returns the names of saved contexts.
func (e *Engine) Saved() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.saved))
	for name := range e.saved {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SavedTile decodes the last saved state of a context.
func (e *Engine) SavedTile(name string) (*tilefile.Tile, error) {
	e.mu.RLock()
	data, ok := e.saved[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, engine.ErrUnknownContext)
	}
	return tilefile.Decode(data)
}

// IsLoaded reports whether a context's objects are in memory.
func (e *Engine) IsLoaded(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ctx, ok := e.contexts[name]
	return ok && ctx.loaded
}

// ClearStandalone lets a mesh be collected once nothing loaded uses it.
func (e *Engine) ClearStandalone(id engine.MeshID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.meshes[id]; ok {
		m.standalone = false
	}
}

// CollectGarbage drops non-standalone meshes no loaded object references
// and returns how many were dropped. Saved contexts carry their own mesh
// copies, so unloaded references do not keep a mesh alive.
func (e *Engine) CollectGarbage() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	used := make(map[engine.MeshID]bool)
	for _, o := range e.objects {
		if o.Kind.HasMesh() {
			used[o.Mesh] = true
		}
	}
	n := 0
	for id, m := range e.meshes {
		if !m.standalone && !used[id] {
			delete(e.meshes, id)
			n++
		}
	}
	return n
}

// ResetUndoHistory drops recorded undo steps.
func (e *Engine) ResetUndoHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.undo = 0
}

// UndoDepth returns the number of recorded undo steps.
func (e *Engine) UndoDepth() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.undo
}

// touch marks a context dirty and records an undo step. Callers hold mu.
func (e *Engine) touch(context string) {
	if ctx, ok := e.contexts[context]; ok {
		ctx.dirty = true
	}
	e.undo++
}

// snapshot builds the tile for a context. Callers hold mu.
func (e *Engine) snapshot(name string) *tilefile.Tile {
	tile := &tilefile.Tile{Name: name, Origin: e.contexts[name].origin}
	for _, o := range e.objectsIn(name) {
		entry := tilefile.Entry{Object: o}
		if o.Kind.HasMesh() {
			if m, ok := e.meshes[o.Mesh]; ok {
				data := m.data
				entry.Mesh = &data
			}
		}
		tile.Entries = append(tile.Entries, entry)
	}
	return tile
}

// restore loads a saved context back into memory. Callers hold mu.
func (e *Engine) restore(name string, data []byte) error {
	tile, err := tilefile.Decode(data)
	if err != nil {
		return fmt.Errorf("restoring %s: %w", name, err)
	}
	e.contexts[name].origin = tile.Origin
	for _, entry := range tile.Entries {
		o := entry.Object
		o.Context = name
		e.objects[o.ID] = &o
		if o.ID > e.nextObject {
			e.nextObject = o.ID
		}
		if entry.Mesh != nil {
			if _, ok := e.meshes[o.Mesh]; !ok {
				e.meshes[o.Mesh] = &meshRecord{data: *entry.Mesh, bounds: geom.BoundsOf(entry.Mesh.Vertices)}
			}
			if o.Mesh > e.nextMesh {
				e.nextMesh = o.Mesh
			}
		}
	}
	return nil
}

// unloadIfSaved drops a clean, saved, non-root context from memory.
// Callers hold mu.
func (e *Engine) unloadIfSaved(name string) {
	ctx := e.contexts[name]
	if name == engine.RootContext || ctx == nil || ctx.dirty {
		return
	}
	if _, ok := e.saved[name]; !ok {
		return
	}
	for id, o := range e.objects {
		if o.Context == name {
			delete(e.objects, id)
		}
	}
	ctx.loaded = false
}

func copyObject(o *engine.Object) engine.Object {
	c := *o
	c.Instances = append([]geom.Transform(nil), o.Instances...)
	c.Tags = append([]string(nil), o.Tags...)
	return c
}
