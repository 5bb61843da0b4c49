// Package tiling partitions the map extent into a regular grid of tiles and
// walks it in row-major order.
package tiling

import (
	"fmt"
	"math"

	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Coordinate identifies one tile.
type Coordinate struct {
	X, Y int
}

// String returns the tile name used for contexts and files.
func (c Coordinate) String() string {
	return fmt.Sprintf("Tile_%d_%d", c.X, c.Y)
}

// Grid is the tile layout over a map. Units are whatever the extent uses;
// the orchestrator works in meters and converts at the engine boundary.
type Grid struct {
	NumTiles Coordinate
	TileSize float64
	Extent   geom.Box
}

// NewGrid covers extent with square tiles of tileSize. Each axis has at
// least one tile.
func NewGrid(extent geom.Box, tileSize float64) Grid {
	g := Grid{NumTiles: Coordinate{1, 1}, TileSize: tileSize, Extent: extent}
	if tileSize <= 0 || !extent.IsValid() {
		return g
	}
	size := extent.Size()
	g.NumTiles.X = max(1, int(math.Ceil(size.X()/tileSize)))
	g.NumTiles.Y = max(1, int(math.Ceil(size.Y()/tileSize)))
	return g
}

// Count returns the number of tiles.
func (g Grid) Count() int {
	return g.NumTiles.X * g.NumTiles.Y
}

// Contains reports whether c lies inside the grid.
func (g Grid) Contains(c Coordinate) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.NumTiles.X && c.Y < g.NumTiles.Y
}

// Origin returns the tile's corner at minimum X and maximum Y. Tile rows
// advance towards -Y.
func (g Grid) Origin(c Coordinate) mgl64.Vec3 {
	return mgl64.Vec3{
		float64(c.X)*g.TileSize + g.Extent.Min.X(),
		-float64(c.Y)*g.TileSize + g.Extent.Max.Y(),
		0,
	}
}

// Bounds returns the tile's XY rectangle. Z spans the whole extent.
func (g Grid) Bounds(c Coordinate) geom.Box {
	o := g.Origin(c)
	return geom.Box{
		Min: mgl64.Vec3{o.X(), o.Y() - g.TileSize, g.Extent.Min.Z()},
		Max: mgl64.Vec3{o.X() + g.TileSize, o.Y(), g.Extent.Max.Z()},
	}
}

// TileOf returns the tile whose half-open bounds contain p.
func (g Grid) TileOf(p mgl64.Vec3) (Coordinate, bool) {
	if g.TileSize <= 0 {
		return Coordinate{}, false
	}
	fx := (p.X() - g.Extent.Min.X()) / g.TileSize
	fy := (g.Extent.Max.Y() - p.Y()) / g.TileSize
	// Rows are half-open towards -Y, so a point on a row's upper edge
	// belongs to the row above. Row 0 also takes the top edge of the extent.
	c := Coordinate{X: int(math.Floor(fx)), Y: int(math.Ceil(fy)) - 1}
	if c.Y == -1 && fy == 0 {
		c.Y = 0
	}
	if !g.Contains(c) {
		return Coordinate{}, false
	}
	return c, true
}

// Cursor walks a grid tile by tile.
type Cursor struct {
	grid    Grid
	current Coordinate
}

// NewCursor starts at tile (0, 0).
func NewCursor(g Grid) *Cursor {
	return &Cursor{grid: g}
}

// Current returns the tile under the cursor.
func (c *Cursor) Current() Coordinate { return c.current }

// GoNextTile advances in row-major order, X fastest. It returns false once
// the grid is exhausted and leaves the cursor on the last tile.
func (c *Cursor) GoNextTile() bool {
	next := c.current
	next.X++
	if next.X >= c.grid.NumTiles.X {
		next.X = 0
		next.Y++
		if next.Y >= c.grid.NumTiles.Y {
			return false
		}
	}
	c.current = next
	return true
}
