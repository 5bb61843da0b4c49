package assembler

import (
	"testing"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/internal/engine/memory"
	"github.com/Faultbox/roadtiles/internal/labels"
	"github.com/Faultbox/roadtiles/pkg/roadnet"
	"github.com/go-gl/mathgl/mgl64"
)

func testMaterials() Materials {
	return Materials{Road: "M_Road", Sidewalk: "M_Sidewalk", Base: "M_Base"}
}

func TestMaterialForLaneType(t *testing.T) {
	eng := memory.New(memory.Options{Assets: []engine.AssetID{"M_Road", "M_Sidewalk", "M_Base"}})
	cache := NewMaterialCache(eng, testMaterials(), "Town", nil)

	tests := []struct {
		lane roadnet.LaneType
		want engine.AssetID
	}{
		{roadnet.LaneDriving, "Town/M_Road"},
		// Sidewalks share the road material.
		{roadnet.LaneSidewalk, "Town/M_Road"},
		{roadnet.LaneBorder, "Town/M_Base"},
		{roadnet.LaneShoulder, "Town/M_Base"},
	}
	for _, tt := range tests {
		t.Run(tt.lane.String(), func(t *testing.T) {
			got, ok := cache.ForLaneType(tt.lane)
			if !ok || got != tt.want {
				t.Errorf("ForLaneType(%v) = %q, %v; want %q", tt.lane, got, ok, tt.want)
			}
		})
	}
	if eng.HasAsset("Town/M_Sidewalk") {
		t.Error("sidewalk material should not have been duplicated")
	}
}

func TestMaterialMissing(t *testing.T) {
	eng := memory.New(memory.Options{})
	cache := NewMaterialCache(eng, testMaterials(), "Town", nil)

	for i := 0; i < 2; i++ {
		if id, ok := cache.Get("M_Road"); ok || id != "" {
			t.Errorf("attempt %d: expected no material, got %q", i, id)
		}
	}
	if _, ok := cache.Get(""); ok {
		t.Error("empty source should not resolve")
	}
}

func TestEmitRoads(t *testing.T) {
	eng := memory.New(memory.Options{Assets: []engine.AssetID{"M_Road"}})
	counter := labels.NewCounter()
	em := NewEmitter(eng, NewMaterialCache(eng, testMaterials(), "Town", nil), counter, "Town", nil)

	meshes := []PreparedMesh{
		{
			LaneType: roadnet.LaneDriving,
			Centroid: mgl64.Vec3{1, 2, 3},
			Vertices: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Indices:  []uint32{0, 1, 2},
		},
		// Rejected by the engine and skipped.
		{LaneType: roadnet.LaneDriving},
	}
	ids := em.EmitRoads(meshes, "road")
	if len(ids) != 1 {
		t.Fatalf("expected 1 object, got %d", len(ids))
	}

	obj, ok := eng.Object(ids[0])
	if !ok {
		t.Fatal("emitted object not found")
	}
	if !obj.Transform.Location.ApproxEqual(mgl64.Vec3{100, 200, 300}) {
		t.Errorf("placed at %v, want centroid in centimeters", obj.Transform.Location)
	}
	if !obj.HasTag("road") || obj.Label != "Road_Driving_0" {
		t.Errorf("unexpected object %+v", obj)
	}

	data, ok := eng.MeshData(obj.Mesh)
	if !ok {
		t.Fatal("mesh not found")
	}
	if data.Material != "Town/M_Road" || data.Namespace != "Town" {
		t.Errorf("unexpected material %q namespace %q", data.Material, data.Namespace)
	}
	if !data.Vertices[1].ApproxEqual(mgl64.Vec3{100, 0, 0}) {
		t.Errorf("vertices not scaled: %v", data.Vertices[1])
	}
}
