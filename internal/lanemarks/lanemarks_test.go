package lanemarks

import (
	"testing"

	"github.com/Faultbox/roadtiles/internal/assembler"
	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/engine/memory"
	"github.com/Faultbox/roadtiles/internal/labels"
	"github.com/Faultbox/roadtiles/pkg/roadnet"
	"github.com/go-gl/mathgl/mgl64"
)

// pointPrep places each mark at its first vertex (meters) and rejects marks
// without vertices.
type pointPrep struct{}

func (pointPrep) PrepareMark(raw *roadnet.RawMesh) (assembler.PreparedMesh, bool) {
	if len(raw.Vertices) == 0 {
		return assembler.PreparedMesh{}, false
	}
	return assembler.PreparedMesh{
		Centroid: raw.Vertices[0],
		Vertices: []mgl64.Vec3{{-1, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:  []uint32{0, 1, 2},
	}, true
}

func markAt(xCm float64) roadnet.RawMesh {
	return roadnet.RawMesh{Vertices: []mgl64.Vec3{{xCm / 100, 0, 0}}}
}

func TestDedupThreshold(t *testing.T) {
	tests := []struct {
		name   string
		second mgl64.Vec3
		kept   int
	}{
		{"100cm apart", mgl64.Vec3{100, 0, 0}, 1},
		{"300cm apart", mgl64.Vec3{300, 0, 0}, 2},
		{"exactly at threshold", mgl64.Vec3{250, 0, 0}, 2},
		{"close in 3D", mgl64.Vec3{0, 0, 249}, 1},
		{"across a cell edge", mgl64.Vec3{-10, -10, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDeduplicator(250)
			if !d.Accept(mgl64.Vec3{0, 0, 0}) {
				t.Fatal("first point rejected")
			}
			d.Accept(tt.second)
			if d.Len() != tt.kept {
				t.Errorf("expected %d kept, got %d", tt.kept, d.Len())
			}
		})
	}
}

func TestDedupMatchesBruteForce(t *testing.T) {
	d := NewDeduplicator(250)
	var accepted []mgl64.Vec3
	for i := 0; i < 400; i++ {
		// Deterministic scatter over a 3000cm square.
		p := mgl64.Vec3{float64((i * 7919) % 3000), float64((i * 104729) % 3000), float64(i % 5)}
		want := true
		for _, q := range accepted {
			if p.Sub(q).Len() < 250 {
				want = false
				break
			}
		}
		if got := d.Accept(p); got != want {
			t.Fatalf("point %d %v: grid says %v, brute force says %v", i, p, got, want)
		}
		if want {
			accepted = append(accepted, p)
		}
	}
}

func TestSelectKeepsFirstAndMetadataLockstep(t *testing.T) {
	meshes := []roadnet.RawMesh{
		markAt(0),
		{}, // invalid
		markAt(100),
		markAt(300),
		{}, // invalid
		markAt(5000),
	}
	colors := []string{"white", "yellow", "yellow", "yellow", "white", ""}
	meta := NewMetadata(colors)

	out, stats := Select(meshes, meta, pointPrep{}, NewDeduplicator(250))

	if meta.Reads() != len(meshes) {
		t.Errorf("expected %d metadata reads, got %d", len(meshes), meta.Reads())
	}
	if stats.Invalid != 2 || stats.Duplicates != 1 || stats.Accepted != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}

	wantSources := []int{0, 3, 5}
	wantColors := []string{"white", "yellow", "white"}
	for i, c := range out {
		if c.Source != wantSources[i] || c.Color != wantColors[i] {
			t.Errorf("candidate %d: got source %d colour %s, want %d %s",
				i, c.Source, c.Color, wantSources[i], wantColors[i])
		}
	}
}

func TestPlacerEmitsWithColorMaterials(t *testing.T) {
	eng := memory.New(memory.Options{Assets: []engine.AssetID{"M_MarkWhite", "M_MarkYellow"}})
	mats := assembler.NewMaterialCache(eng, assembler.Materials{MarkWhite: "M_MarkWhite", MarkYellow: "M_MarkYellow"}, "Town", nil)
	emitter := assembler.NewEmitter(eng, mats, labels.NewCounter(), "Town", nil)
	p := NewPlacer(pointPrep{}, emitter, 250, nil)

	ids, stats := p.Place([]roadnet.RawMesh{markAt(0), markAt(50), markAt(1000)}, []string{"yellow", "white", "white"}, "lanemark")
	if len(ids) != 2 || stats.Duplicates != 1 {
		t.Fatalf("expected 2 placed and 1 duplicate, got %d placed, %+v", len(ids), stats)
	}

	first, ok := eng.Object(ids[0])
	if !ok {
		t.Fatal("placed object missing")
	}
	if first.Label != "LaneMark_yellow_0" || !first.HasTag("lanemark") {
		t.Errorf("unexpected object %+v", first)
	}
	data, _ := eng.MeshData(first.Mesh)
	if data.Material != "Town/M_MarkYellow" {
		t.Errorf("expected yellow material copy, got %q", data.Material)
	}

	// A second call starts a fresh accepted set.
	again, _ := p.Place([]roadnet.RawMesh{markAt(0)}, []string{"white"})
	if len(again) != 1 {
		t.Errorf("expected dedup state to reset per call, placed %d", len(again))
	}
}
