package height

import (
	"math"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Deformation is the closed-form ground used when no raster is bound.
type Deformation struct {
	Base func(x, y float64) float64 // Base undulation in meters
	Bump func(x, y float64) float64 // Driving lane bumps in meters
}

// DefaultDeformation is two crossed sine waves plus a lattice of small bumps.
var DefaultDeformation = Deformation{Base: waves, Bump: bumps}

// FlatDeformation is zero everywhere.
var FlatDeformation = Deformation{
	Base: func(float64, float64) float64 { return 0 },
	Bump: func(float64, float64) float64 { return 0 },
}

func waves(x, y float64) float64 {
	const (
		a1, a2   = 0.6, 1.1
		f1, f2   = 1000.0, -1500.0
		kx1, kx2 = 0.035, 0.02
		ky1, ky2 = -0.08, 0.05
	)
	return a1*math.Sin(kx1*x+ky1*y+f1) + a2*math.Sin(kx2*x+ky2*y+f2)
}

func bumps(x, y float64) float64 {
	const (
		amplitude  = 0.10
		spacingX   = 17.0
		spacingY   = 12.0
		bumpRadius = 2.0
	)
	bx := math.Ceil(x/spacingX) * spacingX
	by := math.Floor(y/spacingY) * spacingY
	d := math.Hypot(bx-x, by-y)
	if d > bumpRadius {
		return 0
	}
	k := (bumpRadius - d) / bumpRadius
	return amplitude * k * k
}

// undulationScale is applied on top of the base deformation.
const undulationScale = -0.3

// Settings configures a Sampler.
type Settings struct {
	WorldOrigin      mgl64.Vec2 // meters, raster (0,0)
	WorldEnd         mgl64.Vec2 // meters, raster (1,1)
	MinHeight        float64
	MaxHeight        float64
	NonDrivingMargin float64 // subtracted from raster heights off the driving lane
	LandscapeOffset  float64 // centimeters below a landscape ray hit
	FallbackOffset   float64 // centimeters below the sampled height without a hit
}

// Obstacles is the scenery a vertical probe may land on. Ignore lists objects
// (typically previously placed landscape) the probe passes through.
type Obstacles struct {
	Scene  engine.Raycaster
	Ignore []engine.ObjectID
}

// Sampler answers height queries. It is safe for concurrent use.
type Sampler struct {
	field    *Field
	deform   Deformation
	settings Settings
	log      *zap.Logger
}

// NewSampler creates a sampler. A nil field selects the deformation fallback.
func NewSampler(field *Field, deform Deformation, settings Settings, log *zap.Logger) *Sampler {
	if log == nil {
		log = zap.NewNop()
	}
	if deform.Base == nil || deform.Bump == nil {
		deform = DefaultDeformation
	}
	return &Sampler{field: field, deform: deform, settings: settings, log: log}
}

// HasField reports whether a raster is bound.
func (s *Sampler) HasField() bool { return s.field != nil }

// GetHeight returns the ground height in meters at world (x, y) meters.
func (s *Sampler) GetHeight(x, y float64, isDrivingLane bool) float64 {
	if s.field != nil {
		span := s.settings.WorldEnd.Sub(s.settings.WorldOrigin)
		u := (x - s.settings.WorldOrigin.X()) / span.X()
		v := (y - s.settings.WorldOrigin.Y()) / span.Y()
		value := s.field.SampleBicubic(u, v)
		h := s.settings.MinHeight + (s.settings.MaxHeight-s.settings.MinHeight)*value
		if isDrivingLane {
			return h - s.deform.Bump(x, y)
		}
		return h - s.settings.NonDrivingMargin
	}

	base := s.deform.Base(x, y)
	h := base + base*undulationScale
	if isDrivingLane {
		return h - s.deform.Bump(x, y)
	}
	return h
}

// probeSpan is the half height of the vertical probe in centimeters.
func (s *Sampler) probeSpan() float64 {
	extreme := math.Max(math.Abs(s.settings.MinHeight), math.Abs(s.settings.MaxHeight))
	return (extreme + 100) * geom.CentimetersPerMeter
}

// GetHeightForLandscape returns the landscape height in centimeters under
// origin (centimeters) and whether a probe hit placed geometry. Landscape
// conforms to road geometry that is already placed, staying LandscapeOffset
// below it. Without a hit it sits FallbackOffset below the sampled ground.
func (s *Sampler) GetHeightForLandscape(origin mgl64.Vec3, obstacles Obstacles) (float64, bool) {
	if obstacles.Scene != nil {
		span := s.probeSpan()
		start := mgl64.Vec3{origin.X(), origin.Y(), span}
		end := mgl64.Vec3{origin.X(), origin.Y(), -span}
		if hit, ok := obstacles.Scene.Raycast(start, end, engine.ChannelWorldStatic, obstacles.Ignore); ok {
			return hit.Location.Z() - s.settings.LandscapeOffset, true
		}
	}
	x := origin.X() / geom.CentimetersPerMeter
	y := origin.Y() / geom.CentimetersPerMeter
	return s.GetHeight(x, y, false)*geom.CentimetersPerMeter - s.settings.FallbackOffset, false
}

// GetSnappedPosition drops t (centimeters) onto the first surface below or
// above it. Without a hit the sampled ground height is used.
func (s *Sampler) GetSnappedPosition(t geom.Transform, scene engine.Raycaster) geom.Transform {
	loc := t.Location
	if scene != nil {
		span := s.probeSpan()
		start := mgl64.Vec3{loc.X(), loc.Y(), span}
		end := mgl64.Vec3{loc.X(), loc.Y(), -span}
		if hit, ok := scene.Raycast(start, end, engine.ChannelVisibility, nil); ok {
			t.Location = mgl64.Vec3{loc.X(), loc.Y(), hit.Location.Z()}
			return t
		}
		s.log.Debug("snap probe missed",
			zap.Float64("x", loc.X()), zap.Float64("y", loc.Y()))
	}
	h := s.GetHeight(loc.X()/geom.CentimetersPerMeter, loc.Y()/geom.CentimetersPerMeter, false)
	t.Location = mgl64.Vec3{loc.X(), loc.Y(), h * geom.CentimetersPerMeter}
	return t
}
