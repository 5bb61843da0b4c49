package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestCentroid(t *testing.T) {
	verts := []mgl64.Vec3{{0, 0, 0}, {2, 0, 0}, {2, 4, 0}, {0, 4, 6}}
	c := Centroid(verts)
	want := mgl64.Vec3{1, 2, 1.5}
	if !c.ApproxEqual(want) {
		t.Errorf("expected centroid %v, got %v", want, c)
	}

	if got := Centroid(nil); got != (mgl64.Vec3{}) {
		t.Errorf("expected zero centroid for empty set, got %v", got)
	}
}

func TestBoxExtend(t *testing.T) {
	b := EmptyBox()
	if b.IsValid() {
		t.Fatal("empty box should not be valid")
	}

	b.Extend(mgl64.Vec3{1, -2, 3})
	b.Extend(mgl64.Vec3{-1, 5, 0})

	if b.Min != (mgl64.Vec3{-1, -2, 0}) {
		t.Errorf("unexpected min %v", b.Min)
	}
	if b.Max != (mgl64.Vec3{1, 5, 3}) {
		t.Errorf("unexpected max %v", b.Max)
	}
	if c := b.Center(); !c.ApproxEqual(mgl64.Vec3{0, 1.5, 1.5}) {
		t.Errorf("unexpected center %v", c)
	}
}

func TestBoxPaddedXY(t *testing.T) {
	b := Box{Min: mgl64.Vec3{0, 0, 1}, Max: mgl64.Vec3{10, 4, 2}}
	got := b.PaddedXY(1.5)
	if got.Min != (mgl64.Vec3{-1.5, -1.5, 1}) || got.Max != (mgl64.Vec3{11.5, 5.5, 2}) {
		t.Errorf("PaddedXY(1.5) = %+v", got)
	}
}

func TestBoxContainsXYHalfOpen(t *testing.T) {
	b := Box{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{10, 10, 0}}

	tests := []struct {
		p    mgl64.Vec3
		want bool
	}{
		{mgl64.Vec3{0, 0, 0}, true},
		{mgl64.Vec3{5, 5, 100}, true},
		{mgl64.Vec3{10, 5, 0}, false},
		{mgl64.Vec3{5, 10, 0}, false},
		{mgl64.Vec3{-0.001, 5, 0}, false},
	}
	for _, tt := range tests {
		if got := b.ContainsXY(tt.p); got != tt.want {
			t.Errorf("ContainsXY(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestFaceUp(t *testing.T) {
	verts := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}

	a, b, c := FaceUp(verts, 0, 2, 1)
	n := verts[b].Sub(verts[a]).Cross(verts[c].Sub(verts[a]))
	if n.Z() <= 0 {
		t.Errorf("expected upward normal, got %v", n)
	}
}

func TestWithYaw(t *testing.T) {
	tr := WithYaw(mgl64.Vec3{1, 2, 3}, math.Pi/2)
	if math.Abs(tr.Yaw()-math.Pi/2) > 1e-9 {
		t.Errorf("expected yaw pi/2, got %f", tr.Yaw())
	}
	if tr.Scale != (mgl64.Vec3{1, 1, 1}) {
		t.Errorf("expected unit scale, got %v", tr.Scale)
	}
}

func TestVertexNormalsFlatQuad(t *testing.T) {
	verts := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}
	indices := []uint32{0, 1, 2, 2, 1, 3}

	normals := VertexNormals(verts, indices)
	for i, n := range normals {
		if !n.ApproxEqual(mgl64.Vec3{0, 0, 1}) {
			t.Errorf("normal %d: expected +Z, got %v", i, n)
		}
	}
}

func TestVertexNormalsWeldsSeams(t *testing.T) {
	// Two triangles that share an edge position but not vertex indices.
	verts := []mgl64.Vec3{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 1},
		{1, 0, 0}, {1, 1, 0}, {0, 1, 1},
	}
	indices := []uint32{0, 1, 2, 3, 4, 5}

	normals := VertexNormals(verts, indices)
	if !normals[1].ApproxEqual(normals[3]) {
		t.Errorf("welded normals differ: %v vs %v", normals[1], normals[3])
	}
	if math.Abs(normals[1].Len()-1) > 1e-9 {
		t.Errorf("normal not unit length: %v", normals[1])
	}
}

func TestTangentsFollowU(t *testing.T) {
	verts := []mgl64.Vec3{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}, {2, 2, 0}}
	uvs := []mgl64.Vec2{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	indices := []uint32{0, 1, 2, 2, 1, 3}
	normals := VertexNormals(verts, indices)

	tangents := Tangents(verts, indices, uvs, normals)
	for i, tg := range tangents {
		if !tg.ApproxEqual(mgl64.Vec3{1, 0, 0}) {
			t.Errorf("tangent %d: expected +X, got %v", i, tg)
		}
	}

	// Missing UVs still yield unit tangents.
	for i, tg := range Tangents(verts, indices, nil, normals) {
		if math.Abs(tg.Len()-1) > 1e-9 {
			t.Errorf("fallback tangent %d not unit: %v", i, tg)
		}
	}
}

func TestTransformApplyCompose(t *testing.T) {
	parent := WithYaw(mgl64.Vec3{100, 0, 0}, math.Pi/2)
	child := At(mgl64.Vec3{10, 0, 0})

	// A quarter turn maps +X to +Y.
	if got := parent.Apply(mgl64.Vec3{10, 0, 0}); !got.ApproxEqualThreshold(mgl64.Vec3{100, 10, 0}, 1e-9) {
		t.Errorf("Apply: expected (100,10,0), got %v", got)
	}

	composed := parent.Compose(child)
	if !composed.Location.ApproxEqualThreshold(mgl64.Vec3{100, 10, 0}, 1e-9) {
		t.Errorf("Compose location: got %v", composed.Location)
	}
	if math.Abs(composed.Yaw()-math.Pi/2) > 1e-9 {
		t.Errorf("Compose yaw: got %f", composed.Yaw())
	}

	scaled := At(mgl64.Vec3{})
	scaled.Scale = mgl64.Vec3{2, 3, 4}
	if got := scaled.Apply(mgl64.Vec3{1, 1, 1}); got != (mgl64.Vec3{2, 3, 4}) {
		t.Errorf("Apply scale: got %v", got)
	}
}
