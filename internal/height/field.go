// Package height converts world positions to ground heights, either from a
// heightmap raster or from a procedural deformation function.
package height

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png" // PNG heightmaps
	"io"
	"math"
	"os"

	_ "golang.org/x/image/bmp"  // BMP heightmaps
	_ "golang.org/x/image/tiff" // 16-bit TIFF heightmaps
)

// ErrInvalidHeightField is returned for empty or inconsistent rasters.
var ErrInvalidHeightField = errors.New("invalid height field")

// Field is a 16-bit single channel raster covering the world box.
type Field struct {
	Width   int
	Height  int
	Samples []uint16 // row-major, Width*Height
}

// NewField wraps raw samples, checking the dimensions agree.
func NewField(width, height int, samples []uint16) (*Field, error) {
	if width <= 0 || height <= 0 || len(samples) != width*height {
		return nil, fmt.Errorf("%w: %dx%d with %d samples", ErrInvalidHeightField, width, height, len(samples))
	}
	return &Field{Width: width, Height: height, Samples: samples}, nil
}

// DecodeField decodes a heightmap image. Colour images are reduced to their
// 16-bit luminance.
func DecodeField(r io.Reader) (*Field, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding heightmap: %w", err)
	}
	return FieldFromImage(img)
}

// LoadField reads a heightmap from disk.
func LoadField(path string) (*Field, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening heightmap: %w", err)
	}
	defer f.Close()
	return DecodeField(f)
}

// FieldFromImage converts any image to a Field.
func FieldFromImage(img image.Image) (*Field, error) {
	b := img.Bounds()
	samples := make([]uint16, 0, b.Dx()*b.Dy())
	if g, ok := img.(*image.Gray16); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				samples = append(samples, g.Gray16At(x, y).Y)
			}
		}
		return NewField(b.Dx(), b.Dy(), samples)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			samples = append(samples, color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
		}
	}
	return NewField(b.Dx(), b.Dy(), samples)
}

// At returns the normalized sample at pixel (x, y), clamped to the raster edge.
func (f *Field) At(x, y int) float64 {
	x = clampi(x, 0, f.Width-1)
	y = clampi(y, 0, f.Height-1)
	return float64(f.Samples[y*f.Width+x]) / math.MaxUint16
}

// SampleBicubic samples the field at normalized (u, v) in [0,1] using
// Catmull-Rom interpolation over the surrounding 4x4 pixels. Coordinates are
// clamped before lookup and the result is clamped to [0,1].
func (f *Field) SampleBicubic(u, v float64) float64 {
	u = clampf(u, 0, 1)
	v = clampf(v, 0, 1)

	px := u * float64(f.Width-1)
	py := v * float64(f.Height-1)
	x0 := int(math.Floor(px))
	y0 := int(math.Floor(py))
	fx := px - float64(x0)
	fy := py - float64(y0)

	var rows [4]float64
	for j := -1; j <= 2; j++ {
		rows[j+1] = catmullRom(
			f.At(x0-1, y0+j),
			f.At(x0, y0+j),
			f.At(x0+1, y0+j),
			f.At(x0+2, y0+j),
			fx,
		)
	}
	return clampf(catmullRom(rows[0], rows[1], rows[2], rows[3], fy), 0, 1)
}

func catmullRom(p0, p1, p2, p3, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}

func clampi(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampf(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
