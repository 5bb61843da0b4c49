package assembler

import (
	"math"

	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/Faultbox/roadtiles/pkg/roadnet"
	"github.com/go-gl/mathgl/mgl64"
)

// simplifyRibbon drops interior cross-section rows of a ribbon mesh while the
// surface stays within tolerance of the original. At most percentage% of the
// interior rows are removed; the first and last rows are always kept.
// Meshes without row structure are returned unchanged.
func simplifyRibbon(mesh roadnet.RawMesh, percentage, tolerance float64) roadnet.RawMesh {
	stride := mesh.Stride
	if stride <= 0 {
		return mesh
	}
	rows := len(mesh.Vertices) / stride
	budget := int(math.Floor(percentage / 100 * float64(rows-2)))
	if rows < 3 || budget <= 0 {
		return mesh
	}

	row := func(r int) []mgl64.Vec3 { return mesh.Vertices[r*stride : (r+1)*stride] }

	kept := make([]int, rows)
	for i := range kept {
		kept[i] = i
	}

	for removed := 0; removed < budget && len(kept) > 2; removed++ {
		best, bestCost := -1, math.MaxFloat64
		for k := 1; k < len(kept)-1; k++ {
			cost := rowDeviation(row(kept[k-1]), row(kept[k]), row(kept[k+1]))
			if cost < bestCost {
				best, bestCost = k, cost
			}
		}
		if best < 0 || bestCost > tolerance {
			break
		}
		kept = append(kept[:best], kept[best+1:]...)
	}

	if len(kept) == rows {
		return mesh
	}
	return rebuildRibbon(mesh, kept)
}

// rowDeviation is the largest distance from a vertex of mid to the segment
// joining the matching vertices of prev and next.
func rowDeviation(prev, mid, next []mgl64.Vec3) float64 {
	worst := 0.0
	for i := range mid {
		worst = math.Max(worst, segmentDistance(mid[i], prev[i], next[i]))
	}
	return worst
}

func segmentDistance(p, a, b mgl64.Vec3) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Sub(a).Len()
	}
	t := math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/l2))
	return p.Sub(a.Add(ab.Mul(t))).Len()
}

func rebuildRibbon(mesh roadnet.RawMesh, kept []int) roadnet.RawMesh {
	stride := mesh.Stride
	out := roadnet.RawMesh{
		Stride:   stride,
		Vertices: make([]mgl64.Vec3, 0, len(kept)*stride),
	}
	if len(mesh.UVs) > 0 {
		out.UVs = make([]mgl64.Vec2, 0, len(kept)*stride)
	}
	for _, r := range kept {
		out.Vertices = append(out.Vertices, mesh.Vertices[r*stride:(r+1)*stride]...)
		if len(mesh.UVs) > 0 {
			out.UVs = append(out.UVs, mesh.UVs[r*stride:(r+1)*stride]...)
		}
	}

	s := uint32(stride)
	for r := uint32(0); r+1 < uint32(len(kept)); r++ {
		for c := uint32(0); c+1 < s; c++ {
			i0 := r*s + c
			i1 := i0 + 1
			i2 := i0 + s
			i3 := i2 + 1
			a, b, cc := geom.FaceUp(out.Vertices, i0, i2, i1)
			out.Indices = append(out.Indices, a, b, cc)
			a, b, cc = geom.FaceUp(out.Vertices, i3, i1, i2)
			out.Indices = append(out.Indices, a, b, cc)
		}
	}
	return out
}
