package snapshot

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/engine/tilefile"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// writeTile saves a tile holding a lower-left half triangle of a 10 m square
// and a prop without geometry.
func writeTile(t *testing.T, dir string) {
	t.Helper()
	tile := &tilefile.Tile{
		Name:   "Tile_0_0",
		Origin: mgl64.Vec3{500, 500, 0},
		Entries: []tilefile.Entry{
			{
				Object: engine.Object{ID: 1, Kind: engine.KindMesh, Mesh: 1, Label: "ground",
					Transform: geom.At(mgl64.Vec3{-500, -500, 0})},
				Mesh: &engine.MeshData{
					Name:     "ground",
					Vertices: []mgl64.Vec3{{0, 0, 0}, {1000, 0, 0}, {0, 1000, 0}},
					Indices:  []uint32{0, 1, 2},
				},
			},
			{
				Object: engine.Object{ID: 2, Kind: engine.KindProp, Class: "Sign", Label: "sign",
					Transform: geom.At(mgl64.Vec3{0, 0, 0})},
			},
		},
	}
	if err := tilefile.Write(filepath.Join(dir, tile.Name+tilefile.Extension), tile); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir)

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Tiles != 1 || s.Skipped != 1 || len(s.Triangles) != 1 {
		t.Errorf("unexpected scene: tiles %d skipped %d triangles %d", s.Tiles, s.Skipped, len(s.Triangles))
	}
	if !s.Bounds.Min.ApproxEqual(mgl64.Vec3{0, 0, 0}) || !s.Bounds.Max.ApproxEqual(mgl64.Vec3{1000, 1000, 0}) {
		t.Errorf("unexpected bounds %+v", s.Bounds)
	}
}

func TestLoadInstances(t *testing.T) {
	dir := t.TempDir()
	tile := &tilefile.Tile{
		Name: "Persistent",
		Entries: []tilefile.Entry{{
			Object: engine.Object{ID: 1, Kind: engine.KindInstancedMesh, Mesh: 1,
				Transform: geom.At(mgl64.Vec3{100, 0, 0}),
				Instances: []geom.Transform{geom.At(mgl64.Vec3{0, 0, 0}), geom.At(mgl64.Vec3{0, 200, 0})}},
			Mesh: &engine.MeshData{
				Vertices: []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {0, 10, 0}},
				Indices:  []uint32{0, 1, 2},
			},
		}},
	}
	if err := tilefile.Write(filepath.Join(dir, "Persistent"+tilefile.Extension), tile); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(s.Triangles) != 2 {
		t.Fatalf("expected one triangle per instance, got %d", len(s.Triangles))
	}
	if !s.Triangles[1][0].ApproxEqual(mgl64.Vec3{100, 200, 0}) {
		t.Errorf("second instance at %v", s.Triangles[1][0])
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrNoTiles) {
		t.Errorf("expected ErrNoTiles, got %v", err)
	}

	dir := t.TempDir()
	tile := &tilefile.Tile{Name: "Tile_0_0", Entries: []tilefile.Entry{
		{Object: engine.Object{ID: 1, Kind: engine.KindProp}},
	}}
	if err := tilefile.Write(filepath.Join(dir, "Tile_0_0"+tilefile.Extension), tile); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrNoGeometry) {
		t.Errorf("expected ErrNoGeometry, got %v", err)
	}
}

func TestCapture(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir)

	path, err := Capture(dir, Options{Width: 100}, nil)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if path != filepath.Join(dir, FileName) {
		t.Errorf("unexpected output path %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Fatalf("expected 100x100, got %v", b)
	}

	// Image Y runs from +Y world down, so the triangle fills the lower left.
	tests := []struct {
		name   string
		x, y   int
		filled bool
	}{
		{"inside", 10, 80, true},
		{"outside", 90, 10, false},
	}
	for _, tt := range tests {
		r, g, b, _ := img.At(tt.x, tt.y).RGBA()
		br, bg, bb, _ := background.RGBA()
		isBackground := r == br && g == bg && b == bb
		if isBackground == tt.filled {
			t.Errorf("%s: pixel (%d,%d) filled=%v, want %v", tt.name, tt.x, tt.y, !isBackground, tt.filled)
		}
	}
}

func TestRenderTileGrid(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir)
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(s.Origins) != 1 {
		t.Fatalf("expected one tile origin, got %d", len(s.Origins))
	}

	// The tile spans (5, 5)..(10, 10) m, the upper right quarter of the image.
	img := s.Render(Options{Width: 100, TileSize: 5})
	if got := img.RGBAAt(75, 0); got != gridColor {
		t.Errorf("expected grid on the tile's top edge, got %v", got)
	}
	if got := img.RGBAAt(50, 25); got != gridColor {
		t.Errorf("expected grid on the tile's left edge, got %v", got)
	}
	if got := img.RGBAAt(75, 25); got != background {
		t.Errorf("expected empty tile interior, got %v", got)
	}
}
