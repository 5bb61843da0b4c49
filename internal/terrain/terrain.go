// Package terrain builds the landscape grid meshes that sit under the roads.
package terrain

import (
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// HeightFunc returns the ground height at a world position and whether the
// value came from a probe hit rather than the fallback.
type HeightFunc func(world mgl64.Vec3) (float64, bool)

// Patch is one terrain cell. Vertices are relative to Offset, the cell's
// world corner at minimum X and maximum Y; the grid spans +X and -Y.
type Patch struct {
	CellX, CellY int
	Offset       mgl64.Vec3
	Vertices     []mgl64.Vec3
	Indices      []uint32
	UVs          []mgl64.Vec2
	Normals      []mgl64.Vec3
	Misses       int // vertices that used the fallback height
}

// VertexCount is the number of grid vertices per patch.
func VertexCount(resolution int) int {
	return (resolution + 1) * (resolution + 1)
}

// IndexCount is the number of triangle indices per patch.
func IndexCount(resolution int) int {
	return 6 * resolution * resolution
}

// BuildPatches partitions extent into numX by numY equal cells and builds a
// (resolution+1)^2 vertex grid for each. Any non-positive count yields nil.
// Cells are returned row-major, X fastest.
func BuildPatches(extent geom.Box, numX, numY, resolution int, height HeightFunc) []Patch {
	if numX <= 0 || numY <= 0 || resolution <= 0 || height == nil {
		return nil
	}

	size := extent.Size()
	cellW := size.X() / float64(numX)
	cellH := size.Y() / float64(numY)

	patches := make([]Patch, 0, numX*numY)
	for cy := 0; cy < numY; cy++ {
		for cx := 0; cx < numX; cx++ {
			offset := mgl64.Vec3{
				extent.Min.X() + float64(cx)*cellW,
				extent.Max.Y() - float64(cy)*cellH,
				0,
			}
			patches = append(patches, buildPatch(cx, cy, offset, cellW, cellH, resolution, height))
		}
	}
	return patches
}

func buildPatch(cx, cy int, offset mgl64.Vec3, cellW, cellH float64, res int, height HeightFunc) Patch {
	p := Patch{
		CellX:    cx,
		CellY:    cy,
		Offset:   offset,
		Vertices: make([]mgl64.Vec3, 0, VertexCount(res)),
		UVs:      make([]mgl64.Vec2, 0, VertexCount(res)),
		Indices:  make([]uint32, 0, IndexCount(res)),
	}

	stepX := cellW / float64(res)
	stepY := cellH / float64(res)
	for j := 0; j <= res; j++ {
		for i := 0; i <= res; i++ {
			local := mgl64.Vec3{float64(i) * stepX, -float64(j) * stepY, 0}
			z, hit := height(offset.Add(local))
			if !hit {
				p.Misses++
			}
			local[2] = z
			p.Vertices = append(p.Vertices, local)
			p.UVs = append(p.UVs, mgl64.Vec2{float64(i) / float64(res), float64(j) / float64(res)})
		}
	}

	row := uint32(res + 1)
	for j := uint32(0); j < uint32(res); j++ {
		for i := uint32(0); i < uint32(res); i++ {
			i0 := j*row + i
			i1 := i0 + 1
			i2 := i0 + row
			i3 := i2 + 1
			p.Indices = append(p.Indices,
				i0, i2, i1,
				i3, i1, i2,
			)
		}
	}

	p.Normals = geom.VertexNormals(p.Vertices, p.Indices)
	return p
}
