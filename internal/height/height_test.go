package height

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// fakeScene returns a fixed hit unless the hit object is ignored.
type fakeScene struct {
	hitZ    float64
	hit     bool
	object  engine.ObjectID
	ignored []engine.ObjectID
	calls   int
}

func (f *fakeScene) Raycast(start, end mgl64.Vec3, _ engine.Channel, ignore []engine.ObjectID) (engine.Hit, bool) {
	f.calls++
	f.ignored = ignore
	if !f.hit {
		return engine.Hit{}, false
	}
	for _, id := range ignore {
		if id == f.object {
			return engine.Hit{}, false
		}
	}
	return engine.Hit{Location: mgl64.Vec3{start.X(), start.Y(), f.hitZ}, Object: f.object}, true
}

func testSettings() Settings {
	return Settings{
		WorldOrigin:      mgl64.Vec2{0, 0},
		WorldEnd:         mgl64.Vec2{100, 100},
		MinHeight:        -10,
		MaxHeight:        30,
		NonDrivingMargin: 5,
		LandscapeOffset:  100,
		FallbackOffset:   2,
	}
}

func constantField(t *testing.T, w, h int, v uint16) *Field {
	t.Helper()
	samples := make([]uint16, w*h)
	for i := range samples {
		samples[i] = v
	}
	f, err := NewField(w, h, samples)
	if err != nil {
		t.Fatalf("NewField failed: %v", err)
	}
	return f
}

func TestNewFieldInvalid(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		samples []uint16
	}{
		{"zero width", 0, 2, nil},
		{"short samples", 2, 2, []uint16{1, 2, 3}},
		{"negative height", 2, -1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewField(tt.w, tt.h, tt.samples); !errors.Is(err, ErrInvalidHeightField) {
				t.Errorf("expected ErrInvalidHeightField, got %v", err)
			}
		})
	}
}

func TestDecodeFieldGray16PNG(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 3, 2))
	img.SetGray16(2, 1, color.Gray16{Y: 65535})
	img.SetGray16(1, 0, color.Gray16{Y: 1000})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	f, err := DecodeField(&buf)
	if err != nil {
		t.Fatalf("DecodeField failed: %v", err)
	}
	if f.Width != 3 || f.Height != 2 {
		t.Fatalf("expected 3x2 field, got %dx%d", f.Width, f.Height)
	}
	if f.Samples[5] != 65535 {
		t.Errorf("expected max sample at (2,1), got %d", f.Samples[5])
	}
	if f.Samples[1] != 1000 {
		t.Errorf("expected sample 1000 at (1,0), got %d", f.Samples[1])
	}
}

func TestDecodeFieldGarbage(t *testing.T) {
	if _, err := DecodeField(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("expected error for undecodable data")
	}
}

func TestSampleBicubic(t *testing.T) {
	// Linear ramp along X: Catmull-Rom reproduces it exactly away from the edges.
	w, h := 9, 4
	samples := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			samples[y*w+x] = uint16(x * 8000)
		}
	}
	f, err := NewField(w, h, samples)
	if err != nil {
		t.Fatalf("NewField failed: %v", err)
	}

	u := 0.5 // pixel 4
	want := 4 * 8000.0 / math.MaxUint16
	if got := f.SampleBicubic(u, 0.5); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f at centre, got %f", want, got)
	}

	u = 3.5 / 8
	want = 3.5 * 8000.0 / math.MaxUint16
	if got := f.SampleBicubic(u, 0.5); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f between pixels, got %f", want, got)
	}

	// Out of range coordinates clamp to the edge.
	if got, edge := f.SampleBicubic(-3, 0.5), f.SampleBicubic(0, 0.5); got != edge {
		t.Errorf("expected clamped sample %f, got %f", edge, got)
	}
	if got := f.SampleBicubic(7, 7); got < 0 || got > 1 {
		t.Errorf("sample out of [0,1]: %f", got)
	}
}

func TestGetHeightWithField(t *testing.T) {
	f := constantField(t, 4, 4, math.MaxUint16/2)
	s := NewSampler(f, FlatDeformation, testSettings(), nil)

	mid := -10 + 40*(float64(math.MaxUint16/2)/math.MaxUint16)
	if got := s.GetHeight(50, 50, true); math.Abs(got-mid) > 1e-9 {
		t.Errorf("driving height: expected %f, got %f", mid, got)
	}
	if got := s.GetHeight(50, 50, false); math.Abs(got-(mid-5)) > 1e-9 {
		t.Errorf("non driving height: expected %f, got %f", mid-5, got)
	}
	// Outside the world box clamps to the raster edge.
	if got := s.GetHeight(-500, 900, true); math.Abs(got-mid) > 1e-9 {
		t.Errorf("clamped height: expected %f, got %f", mid, got)
	}
}

func TestGetHeightDeformation(t *testing.T) {
	s := NewSampler(nil, DefaultDeformation, testSettings(), nil)

	x, y := 13.0, -7.5
	want := waves(x, y) * 0.7
	if got := s.GetHeight(x, y, false); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, got)
	}
	if got := s.GetHeight(x, y, true); math.Abs(got-(want-bumps(x, y))) > 1e-12 {
		t.Errorf("expected bump correction, got %f", got)
	}

	// Pure function of position.
	if a, b := s.GetHeight(x, y, false), s.GetHeight(x, y, false); a != b {
		t.Errorf("GetHeight not deterministic: %f != %f", a, b)
	}
}

func TestGetHeightFlat(t *testing.T) {
	s := NewSampler(nil, FlatDeformation, testSettings(), nil)
	for _, p := range [][2]float64{{0, 0}, {123.4, -56.7}, {1e4, 1e4}} {
		if got := s.GetHeight(p[0], p[1], true); got != 0 {
			t.Errorf("expected flat height 0 at %v, got %f", p, got)
		}
	}
}

func TestBumps(t *testing.T) {
	// (17, 0) is a bump origin: ceil(17/17)*17 = 17, floor(0/12)*12 = 0.
	if got := bumps(17, 0); math.Abs(got-0.10) > 1e-12 {
		t.Errorf("expected full bump at origin, got %f", got)
	}
	if got := bumps(8, 6); got != 0 {
		t.Errorf("expected no bump far from origin, got %f", got)
	}
}

func TestGetHeightForLandscape(t *testing.T) {
	s := NewSampler(nil, FlatDeformation, testSettings(), nil)

	scene := &fakeScene{hit: true, hitZ: 500, object: 7}
	h, hit := s.GetHeightForLandscape(mgl64.Vec3{100, 200, 0}, Obstacles{Scene: scene})
	if !hit || h != 400 {
		t.Errorf("expected hit at 400, got %f (hit=%v)", h, hit)
	}

	// Ignoring the only obstacle falls back to the sampled ground.
	h, hit = s.GetHeightForLandscape(mgl64.Vec3{100, 200, 0}, Obstacles{Scene: scene, Ignore: []engine.ObjectID{7}})
	if hit || h != -2 {
		t.Errorf("expected fallback -2, got %f (hit=%v)", h, hit)
	}
	if len(scene.ignored) != 1 || scene.ignored[0] != 7 {
		t.Errorf("ignore set not forwarded: %v", scene.ignored)
	}

	h, hit = s.GetHeightForLandscape(mgl64.Vec3{100, 200, 0}, Obstacles{})
	if hit || h != -2 {
		t.Errorf("expected fallback -2 without scene, got %f", h)
	}
}

func TestGetSnappedPosition(t *testing.T) {
	s := NewSampler(nil, FlatDeformation, testSettings(), nil)
	in := geom.WithYaw(mgl64.Vec3{10, 20, 999}, 1.0)

	scene := &fakeScene{hit: true, hitZ: 42}
	out := s.GetSnappedPosition(in, scene)
	if out.Location != (mgl64.Vec3{10, 20, 42}) {
		t.Errorf("expected snap to hit, got %v", out.Location)
	}
	if scene.ignored != nil {
		t.Error("snap probe must not ignore any objects")
	}
	if math.Abs(out.Yaw()-1.0) > 1e-9 {
		t.Errorf("snap changed rotation: %f", out.Yaw())
	}

	out = s.GetSnappedPosition(in, &fakeScene{})
	if out.Location != (mgl64.Vec3{10, 20, 0}) {
		t.Errorf("expected snap to flat ground, got %v", out.Location)
	}
}
