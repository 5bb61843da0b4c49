package memory

import (
	"math"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Raycast traces the segment start..end against meshes in the root and the
// current context and returns the hit closest to start. Instanced meshes
// only block ChannelVisibility traces.
func (e *Engine) Raycast(start, end mgl64.Vec3, channel engine.Channel, ignore []engine.ObjectID) (engine.Hit, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	skip := make(map[engine.ObjectID]bool, len(ignore))
	for _, id := range ignore {
		skip[id] = true
	}

	seg := segment{origin: start, dir: end.Sub(start)}
	best := engine.Hit{Distance: math.MaxFloat64}
	found := false

	for _, o := range e.objects {
		if skip[o.ID] || !o.Kind.HasMesh() {
			continue
		}
		if o.Context != e.current && o.Context != engine.RootContext {
			continue
		}
		if o.Kind == engine.KindInstancedMesh && channel != engine.ChannelVisibility {
			continue
		}
		m, ok := e.meshes[o.Mesh]
		if !ok {
			continue
		}

		transforms := []geom.Transform{o.Transform}
		if o.Kind == engine.KindInstancedMesh {
			transforms = transforms[:0]
			for _, inst := range o.Instances {
				transforms = append(transforms, o.Transform.Compose(inst))
			}
		}
		for _, t := range transforms {
			if _, ok := seg.intersectBox(worldBounds(m.bounds, t)); !ok {
				continue
			}
			if tHit, ok := seg.intersectMesh(&m.data, t); ok {
				dist := tHit * seg.dir.Len()
				if dist < best.Distance {
					best = engine.Hit{Location: seg.at(tHit), Object: o.ID, Distance: dist}
					found = true
				}
			}
		}
	}
	return best, found
}

// segment is origin + t*dir for t in [0,1].
type segment struct {
	origin mgl64.Vec3
	dir    mgl64.Vec3
}

func (s segment) at(t float64) mgl64.Vec3 {
	return s.origin.Add(s.dir.Mul(t))
}

// intersectBox is the slab test restricted to the segment's parameter range.
// It returns the entry parameter, or the exit one when starting inside.
func (s segment) intersectBox(b geom.Box) (float64, bool) {
	tmin, tmax := 0.0, 1.0
	for axis := 0; axis < 3; axis++ {
		if s.dir[axis] == 0 {
			if s.origin[axis] < b.Min[axis] || s.origin[axis] > b.Max[axis] {
				return 0, false
			}
			continue
		}
		t1 := (b.Min[axis] - s.origin[axis]) / s.dir[axis]
		t2 := (b.Max[axis] - s.origin[axis]) / s.dir[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmax < tmin {
			return 0, false
		}
	}
	return tmin, true
}

// intersectMesh returns the smallest segment parameter at which the segment
// crosses a triangle of data placed at t. Both faces count.
func (s segment) intersectMesh(data *engine.MeshData, t geom.Transform) (float64, bool) {
	best, found := math.MaxFloat64, false
	for i := 0; i+2 < len(data.Indices); i += 3 {
		a := t.Apply(data.Vertices[data.Indices[i]])
		b := t.Apply(data.Vertices[data.Indices[i+1]])
		c := t.Apply(data.Vertices[data.Indices[i+2]])
		if u, ok := s.intersectTriangle(a, b, c); ok && u < best {
			best, found = u, true
		}
	}
	return best, found
}

// intersectTriangle is the Moller-Trumbore test.
func (s segment) intersectTriangle(a, b, c mgl64.Vec3) (float64, bool) {
	const eps = 1e-12
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := s.dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < eps {
		return 0, false
	}
	inv := 1 / det
	tv := s.origin.Sub(a)
	u := tv.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := tv.Cross(e1)
	v := s.dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}

// worldBounds transforms the eight corners of a local box.
func worldBounds(local geom.Box, t geom.Transform) geom.Box {
	out := geom.EmptyBox()
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{local.Min[0], local.Min[1], local.Min[2]}
		if i&1 != 0 {
			corner[0] = local.Max[0]
		}
		if i&2 != 0 {
			corner[1] = local.Max[1]
		}
		if i&4 != 0 {
			corner[2] = local.Max[2]
		}
		out.Extend(t.Apply(corner))
	}
	return out
}
