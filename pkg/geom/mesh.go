package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// quantum is the position quantization used when welding normals.
const quantum = 0.001

// VertexNormals returns area-weighted smooth normals for an indexed triangle
// list. Vertices sharing a position (within quantum) share the averaged
// normal so chunk seams do not show hard edges.
func VertexNormals(vertices []mgl64.Vec3, indices []uint32) []mgl64.Vec3 {
	normals := make([]mgl64.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		n := vertices[b].Sub(vertices[a]).Cross(vertices[c].Sub(vertices[a]))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}

	// Weld by quantized position.
	groups := make(map[[3]int64][]int)
	for i, v := range vertices {
		key := [3]int64{
			int64(math.Round(v[0] / quantum)),
			int64(math.Round(v[1] / quantum)),
			int64(math.Round(v[2] / quantum)),
		}
		groups[key] = append(groups[key], i)
	}
	for _, group := range groups {
		var sum mgl64.Vec3
		for _, i := range group {
			sum = sum.Add(normals[i])
		}
		for _, i := range group {
			normals[i] = sum
		}
	}

	for i := range normals {
		normals[i] = safeNormalize(normals[i])
	}
	return normals
}

// Tangents returns per-vertex tangents derived from the UV layout, projected
// to be orthogonal to the matching normal.
func Tangents(vertices []mgl64.Vec3, indices []uint32, uvs []mgl64.Vec2, normals []mgl64.Vec3) []mgl64.Vec3 {
	tangents := make([]mgl64.Vec3, len(vertices))
	if len(uvs) != len(vertices) {
		for i := range tangents {
			tangents[i] = mgl64.Vec3{1, 0, 0}
		}
		return tangents
	}

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		e1 := vertices[b].Sub(vertices[a])
		e2 := vertices[c].Sub(vertices[a])
		d1 := uvs[b].Sub(uvs[a])
		d2 := uvs[c].Sub(uvs[a])

		det := d1.X()*d2.Y() - d2.X()*d1.Y()
		if math.Abs(det) < 1e-12 {
			continue
		}
		r := 1 / det
		t := e1.Mul(d2.Y()).Sub(e2.Mul(d1.Y())).Mul(r)
		tangents[a] = tangents[a].Add(t)
		tangents[b] = tangents[b].Add(t)
		tangents[c] = tangents[c].Add(t)
	}

	for i, t := range tangents {
		n := mgl64.Vec3{0, 0, 1}
		if i < len(normals) {
			n = normals[i]
		}
		// Gram-Schmidt against the normal.
		t = t.Sub(n.Mul(n.Dot(t)))
		if t.Len() < 1e-9 {
			t = fallbackTangent(n)
		}
		tangents[i] = t.Normalize()
	}
	return tangents
}

func fallbackTangent(n mgl64.Vec3) mgl64.Vec3 {
	axis := mgl64.Vec3{1, 0, 0}
	if math.Abs(n.X()) > 0.9 {
		axis = mgl64.Vec3{0, 1, 0}
	}
	return axis.Sub(n.Mul(n.Dot(axis)))
}

func safeNormalize(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return mgl64.Vec3{0, 0, 1}
	}
	return v.Mul(1 / l)
}
