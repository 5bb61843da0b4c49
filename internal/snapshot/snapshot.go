// Package snapshot renders saved tiles as a top-down orthographic image.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/engine/tilefile"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"golang.org/x/image/vector"
)

// FileName is the snapshot written into the map directory.
const FileName = "snapshot.png"

// DefaultWidth is the pixel size of the longer image side.
const DefaultWidth = 1024

// Errors.
var (
	ErrNoTiles    = errors.New("no tile files found")
	ErrNoGeometry = errors.New("tiles contain no mesh geometry")
)

// shades is the number of height bands triangles are grouped into.
const shades = 32

var (
	background = color.RGBA{R: 24, G: 24, B: 32, A: 255}
	gridColor  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	lowColor   = color.RGBA{R: 40, G: 70, B: 40, A: 255}
	highColor  = color.RGBA{R: 230, G: 230, B: 210, A: 255}
)

// Triangle is a world-space triangle in centimeters.
type Triangle [3]mgl64.Vec3

// Height returns the mean Z of the corners.
func (t Triangle) Height() float64 {
	return (t[0].Z() + t[1].Z() + t[2].Z()) / 3
}

// Options configures a render.
type Options struct {
	Width    int     // Pixel size of the longer side
	TileSize float64 // Tile edge in meters; positive values overlay tile borders
}

// Scene is the world geometry of a set of tiles.
type Scene struct {
	Triangles []Triangle
	Bounds    geom.Box
	Origins   []mgl64.Vec3 // Minimum corners of the non-root tiles
	Tiles     int
	Skipped   int // objects without a mesh
}

// Load reads every tile file in dir into world space. Objects without mesh
// geometry are skipped.
func Load(dir string) (*Scene, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+tilefile.Extension))
	if err != nil {
		return nil, fmt.Errorf("listing tiles: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoTiles)
	}
	sort.Strings(paths)

	s := &Scene{Bounds: geom.EmptyBox()}
	for _, p := range paths {
		tile, err := tilefile.Read(p)
		if err != nil {
			return nil, err
		}
		s.Tiles++
		if tile.Name != engine.RootContext {
			s.Origins = append(s.Origins, tile.Origin)
		}
		for i := range tile.Entries {
			s.add(tile.Origin, &tile.Entries[i])
		}
	}
	if len(s.Triangles) == 0 {
		return s, ErrNoGeometry
	}
	return s, nil
}

func (s *Scene) add(origin mgl64.Vec3, e *tilefile.Entry) {
	obj := &e.Object
	if !obj.Kind.HasMesh() || e.Mesh == nil {
		s.Skipped++
		return
	}
	placements := []geom.Transform{obj.Transform}
	if obj.Kind == engine.KindInstancedMesh {
		placements = placements[:0]
		for _, inst := range obj.Instances {
			placements = append(placements, obj.Transform.Compose(inst))
		}
	}

	m := e.Mesh
	for _, t := range placements {
		for i := 0; i+2 < len(m.Indices); i += 3 {
			var tri Triangle
			for k := 0; k < 3; k++ {
				idx := m.Indices[i+k]
				if int(idx) >= len(m.Vertices) {
					return
				}
				tri[k] = origin.Add(t.Apply(m.Vertices[idx]))
				s.Bounds.Extend(tri[k])
			}
			s.Triangles = append(s.Triangles, tri)
		}
	}
}

// Render rasterizes the scene looking down -Z, +X to the right and +Y up.
func (s *Scene) Render(opts Options) *image.RGBA {
	width := opts.Width
	if width <= 0 {
		width = DefaultWidth
	}
	size := s.Bounds.Size()
	span := math.Max(size.X(), size.Y())
	if !s.Bounds.IsValid() || span <= 0 {
		img := image.NewRGBA(image.Rect(0, 0, 1, 1))
		draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
		return img
	}
	scale := float64(width) / span
	w := max(1, int(math.Ceil(size.X()*scale)))
	h := max(1, int(math.Ceil(size.Y()*scale)))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	// Band triangles by height and draw low to high so raised geometry
	// covers what lies beneath it.
	zMin, zMax := s.Bounds.Min.Z(), s.Bounds.Max.Z()
	bands := make([][]Triangle, shades)
	for _, tri := range s.Triangles {
		b := 0
		if zMax > zMin {
			b = int((tri.Height() - zMin) / (zMax - zMin) * float64(shades-1))
		}
		bands[b] = append(bands[b], tri)
	}

	toPixel := func(p mgl64.Vec3) (float32, float32) {
		return float32((p.X() - s.Bounds.Min.X()) * scale),
			float32((s.Bounds.Max.Y() - p.Y()) * scale)
	}

	z := vector.NewRasterizer(w, h)
	for b, tris := range bands {
		if len(tris) == 0 {
			continue
		}
		z.Reset(w, h)
		for _, tri := range tris {
			ax, ay := toPixel(tri[0])
			bx, by := toPixel(tri[1])
			cx, cy := toPixel(tri[2])
			// The rasterizer accumulates signed area; keep every triangle
			// the same way round so overlaps add instead of cancelling.
			if (bx-ax)*(cy-ay)-(by-ay)*(cx-ax) < 0 {
				bx, by, cx, cy = cx, cy, bx, by
			}
			z.MoveTo(ax, ay)
			z.LineTo(bx, by)
			z.LineTo(cx, cy)
			z.ClosePath()
		}
		z.Draw(img, img.Bounds(), image.NewUniform(shade(float64(b)/float64(shades-1))), image.Point{})
	}

	if opts.TileSize > 0 {
		s.drawGrid(img, z, toPixel, opts.TileSize*geom.CentimetersPerMeter)
	}
	return img
}

// drawGrid outlines every tile with one pixel wide lines.
func (s *Scene) drawGrid(img *image.RGBA, z *vector.Rasterizer, toPixel func(mgl64.Vec3) (float32, float32), size float64) {
	if len(s.Origins) == 0 {
		return
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	z.Reset(w, h)
	rect := func(x0, y0, x1, y1 float32) {
		z.MoveTo(x0, y0)
		z.LineTo(x1, y0)
		z.LineTo(x1, y1)
		z.LineTo(x0, y1)
		z.ClosePath()
	}
	for _, o := range s.Origins {
		x0, y1 := toPixel(o)
		x1, y0 := toPixel(o.Add(mgl64.Vec3{size, size, 0}))
		rect(x0, y0, x1, y0+1)
		rect(x0, y1-1, x1, y1)
		rect(x0, y0, x0+1, y1)
		rect(x1-1, y0, x1, y1)
	}
	z.Draw(img, img.Bounds(), image.NewUniform(gridColor), image.Point{})
}

func shade(t float64) color.RGBA {
	lerp := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
	}
	return color.RGBA{
		R: lerp(lowColor.R, highColor.R),
		G: lerp(lowColor.G, highColor.G),
		B: lerp(lowColor.B, highColor.B),
		A: 255,
	}
}

// Capture renders the tiles in mapPath into mapPath/snapshot.png and
// returns the written path.
func Capture(mapPath string, opts Options, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	scene, err := Load(mapPath)
	if err != nil {
		return "", err
	}
	img := scene.Render(opts)

	filename := filepath.Join(mapPath, FileName)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}

	log.Info("snapshot written",
		zap.String("path", filename),
		zap.Int("tiles", scene.Tiles),
		zap.Int("triangles", len(scene.Triangles)),
		zap.Int("skipped", scene.Skipped),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))
	return filename, nil
}
