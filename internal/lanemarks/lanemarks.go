// Package lanemarks places lane mark strips, dropping strips that land on
// top of one already placed.
package lanemarks

import (
	"math"

	"github.com/Faultbox/roadtiles/internal/assembler"
	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/pkg/roadnet"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Deduplicator accepts a point only if no accepted point lies closer than
// the threshold. Accepted points are bucketed in an XY grid with cells one
// threshold wide, so only the 3x3 neighbourhood needs checking.
type Deduplicator struct {
	threshold float64
	cells     map[[2]int64][]mgl64.Vec3
	count     int
}

// NewDeduplicator creates an empty deduplicator. A non-positive threshold
// accepts everything.
func NewDeduplicator(threshold float64) *Deduplicator {
	return &Deduplicator{threshold: threshold, cells: make(map[[2]int64][]mgl64.Vec3)}
}

func (d *Deduplicator) cell(p mgl64.Vec3) [2]int64 {
	return [2]int64{int64(math.Floor(p.X() / d.threshold)), int64(math.Floor(p.Y() / d.threshold))}
}

// Nearest returns the distance from p to the closest accepted point within
// one threshold, or +Inf.
func (d *Deduplicator) Nearest(p mgl64.Vec3) float64 {
	best := math.Inf(1)
	if d.threshold <= 0 {
		return best
	}
	c := d.cell(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, q := range d.cells[[2]int64{c[0] + dx, c[1] + dy}] {
				best = math.Min(best, p.Sub(q).Len())
			}
		}
	}
	return best
}

// Accept records p and returns true unless it is closer than the threshold
// to an accepted point.
func (d *Deduplicator) Accept(p mgl64.Vec3) bool {
	if d.threshold > 0 {
		if d.Nearest(p) < d.threshold {
			return false
		}
		c := d.cell(p)
		d.cells[c] = append(d.cells[c], p)
	}
	d.count++
	return true
}

// Len returns the number of accepted points.
func (d *Deduplicator) Len() int { return d.count }

// Metadata is the colour list returned alongside the mark meshes. Reads are
// counted so callers can check every mesh consulted its entry.
type Metadata struct {
	colors []string
	reads  int
}

// NewMetadata wraps a colour list.
func NewMetadata(colors []string) *Metadata {
	return &Metadata{colors: colors}
}

// At returns the colour for mesh i, "white" when missing.
func (m *Metadata) At(i int) string {
	m.reads++
	if i < 0 || i >= len(m.colors) || m.colors[i] == "" {
		return "white"
	}
	return m.colors[i]
}

// Reads returns how many entries were read.
func (m *Metadata) Reads() int { return m.reads }

// Candidate is a lane mark that survived deduplication.
type Candidate struct {
	Source int // index into the raw mesh list
	Color  string
	Mesh   assembler.PreparedMesh
}

// Preparer drapes and recenters a raw mark mesh.
type Preparer interface {
	PrepareMark(raw *roadnet.RawMesh) (assembler.PreparedMesh, bool)
}

// Stats summarizes a selection pass.
type Stats struct {
	Total      int
	Invalid    int
	Duplicates int
	Accepted   int
}

// Select prepares every mark in order and keeps those whose placement is at
// least the deduplicator's threshold from every earlier kept mark. The first
// mark of a close pair wins. Skipped marks still consume their metadata
// entry so colours stay aligned with meshes.
func Select(meshes []roadnet.RawMesh, meta *Metadata, prep Preparer, dedup *Deduplicator) ([]Candidate, Stats) {
	stats := Stats{Total: len(meshes)}
	var out []Candidate
	for i := range meshes {
		color := meta.At(i)
		p, ok := prep.PrepareMark(&meshes[i])
		if !ok {
			stats.Invalid++
			continue
		}
		if !dedup.Accept(p.Placement()) {
			stats.Duplicates++
			continue
		}
		out = append(out, Candidate{Source: i, Color: color, Mesh: p})
	}
	stats.Accepted = len(out)
	return out, stats
}

// Placer emits the selected marks for one tile.
type Placer struct {
	prep      Preparer
	emitter   *assembler.Emitter
	threshold float64
	log       *zap.Logger
}

// NewPlacer creates a placer. threshold is in engine units.
func NewPlacer(prep Preparer, emitter *assembler.Emitter, threshold float64, log *zap.Logger) *Placer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Placer{prep: prep, emitter: emitter, threshold: threshold, log: log}
}

// Place deduplicates and emits marks. Each call starts a fresh accepted set.
func (p *Placer) Place(meshes []roadnet.RawMesh, colors []string, tags ...string) ([]engine.ObjectID, Stats) {
	if len(colors) != len(meshes) {
		p.log.Warn("lane mark colours out of step with meshes",
			zap.Int("meshes", len(meshes)),
			zap.Int("colors", len(colors)))
	}
	candidates, stats := Select(meshes, NewMetadata(colors), p.prep, NewDeduplicator(p.threshold))

	ids := make([]engine.ObjectID, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		material, _ := p.emitter.Materials().ForMarkColor(c.Color)
		id, err := p.emitter.Emit(&c.Mesh, material, "LaneMark_"+c.Color, tags)
		if err != nil {
			p.log.Error("failed to emit lane mark", zap.Int("source", c.Source), zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	p.log.Debug("placed lane marks",
		zap.Int("total", stats.Total),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("invalid", stats.Invalid),
		zap.Int("placed", len(ids)))
	return ids, stats
}
