// Package geom provides the small set of geometric types shared by the
// road network model, the mesh pipeline and the engine collaborator.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// CentimetersPerMeter converts road network meters to engine placement units.
const CentimetersPerMeter = 100.0

// Transform is a world placement: translation, rotation and scale.
type Transform struct {
	Location mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// Identity returns a transform at the origin with no rotation and unit scale.
func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent(), Scale: mgl64.Vec3{1, 1, 1}}
}

// At returns an identity transform translated to loc.
func At(loc mgl64.Vec3) Transform {
	t := Identity()
	t.Location = loc
	return t
}

// WithYaw returns an identity transform at loc rotated by yaw radians about +Z.
func WithYaw(loc mgl64.Vec3, yaw float64) Transform {
	t := At(loc)
	t.Rotation = mgl64.QuatRotate(yaw, mgl64.Vec3{0, 0, 1})
	return t
}

// Yaw returns the rotation about +Z in radians.
func (t Transform) Yaw() float64 {
	fwd := t.Rotation.Rotate(mgl64.Vec3{1, 0, 0})
	return math.Atan2(fwd.Y(), fwd.X())
}

// Translated returns a copy of t moved by d.
func (t Transform) Translated(d mgl64.Vec3) Transform {
	t.Location = t.Location.Add(d)
	return t
}

// Apply maps a point from t's local space to its parent space.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	scaled := mgl64.Vec3{p[0] * t.Scale[0], p[1] * t.Scale[1], p[2] * t.Scale[2]}
	return t.Location.Add(t.Rotation.Rotate(scaled))
}

// Compose returns the transform of child expressed in t's parent space.
// Non-uniform scale is applied per axis and does not shear.
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Location: t.Apply(child.Location),
		Rotation: t.Rotation.Mul(child.Rotation).Normalize(),
		Scale:    mgl64.Vec3{t.Scale[0] * child.Scale[0], t.Scale[1] * child.Scale[1], t.Scale[2] * child.Scale[2]},
	}
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// EmptyBox returns an inverted box that any Extend call will replace.
func EmptyBox() Box {
	return Box{
		Min: mgl64.Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		Max: mgl64.Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
	}
}

// Extend grows the box to include p.
func (b *Box) Extend(p mgl64.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Union grows the box to include o.
func (b *Box) Union(o Box) {
	if !o.IsValid() {
		return
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
}

// IsValid reports whether the box has been extended at least once.
func (b Box) IsValid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Center returns the midpoint of the box.
func (b Box) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the box extent on each axis.
func (b Box) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Scaled returns the box with both corners multiplied by s.
func (b Box) Scaled(s float64) Box {
	return Box{Min: b.Min.Mul(s), Max: b.Max.Mul(s)}
}

// PaddedXY returns the box grown by d on every XY side.
func (b Box) PaddedXY(d float64) Box {
	pad := mgl64.Vec3{d, d, 0}
	return Box{Min: b.Min.Sub(pad), Max: b.Max.Add(pad)}
}

// ContainsXY reports whether p lies in the half-open XY rectangle [Min, Max).
// Half-open bounds let adjacent tiles share an edge without sharing a point.
func (b Box) ContainsXY(p mgl64.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() < b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() < b.Max.Y()
}

// BoundsOf returns the bounding box of a vertex set.
func BoundsOf(vertices []mgl64.Vec3) Box {
	b := EmptyBox()
	for _, v := range vertices {
		b.Extend(v)
	}
	return b
}

// Centroid returns the arithmetic mean of the vertex positions.
func Centroid(vertices []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	if len(vertices) == 0 {
		return sum
	}
	for _, v := range vertices {
		sum = sum.Add(v)
	}
	return sum.Mul(1.0 / float64(len(vertices)))
}

// FaceUp returns the triangle indices reordered so the face normal points to +Z.
func FaceUp(vertices []mgl64.Vec3, a, b, c uint32) (uint32, uint32, uint32) {
	e1 := vertices[b].Sub(vertices[a])
	e2 := vertices[c].Sub(vertices[a])
	if e1.Cross(e2).Z() < 0 {
		return a, c, b
	}
	return a, b, c
}
