// Package engine defines the host collaborator the generator drives: mesh
// and asset creation, object placement, raycasts and level contexts.
package engine

import (
	"errors"
	"fmt"

	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Engine errors.
var (
	ErrUnknownAsset   = errors.New("unknown asset")
	ErrUnknownObject  = errors.New("unknown object")
	ErrUnknownMesh    = errors.New("unknown mesh")
	ErrUnknownContext = errors.New("unknown context")
	ErrEmptyMesh      = errors.New("mesh has no triangles")
)

// RootContext is the persistent context objects are created in when no tile
// context is loaded.
const RootContext = "Persistent"

// MeshID identifies a created mesh asset.
type MeshID uint64

// ObjectID identifies a placed object.
type ObjectID uint64

// AssetID names an asset, optionally inside a namespace ("ns/name").
type AssetID string

// Channel selects which objects a raycast considers.
type Channel int

// Raycast channels.
const (
	ChannelVisibility Channel = iota
	ChannelWorldStatic
)

// Kind classifies placed objects.
type Kind int

// Object kinds.
const (
	KindMesh Kind = iota
	KindInstancedMesh
	KindLandscape
	KindProp
	KindOther
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "Mesh"
	case KindInstancedMesh:
		return "InstancedMesh"
	case KindLandscape:
		return "Landscape"
	case KindProp:
		return "Prop"
	case KindOther:
		return "Other"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// HasMesh reports whether objects of this kind render a mesh.
func (k Kind) HasMesh() bool {
	return k == KindMesh || k == KindInstancedMesh || k == KindLandscape
}

// MeshData is everything needed to create a renderable mesh.
type MeshData struct {
	Name      string
	Category  string
	Namespace string
	Material  AssetID
	Vertices  []mgl64.Vec3
	Indices   []uint32
	Normals   []mgl64.Vec3
	UVs       []mgl64.Vec2
	Tangents  []mgl64.Vec3
}

// Placement describes an object to place.
type Placement struct {
	Kind      Kind
	Mesh      MeshID
	Class     string // Prop class when Mesh is zero
	Label     string
	Transform geom.Transform
	Instances []geom.Transform // Relative instance transforms for KindInstancedMesh
	Tags      []string
}

// Object is a placed object.
type Object struct {
	ID        ObjectID
	Kind      Kind
	Mesh      MeshID
	Class     string
	Label     string
	Transform geom.Transform
	Instances []geom.Transform
	Tags      []string
	Context   string
}

// HasTag reports whether the object carries tag.
func (o *Object) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Hit is a raycast result.
type Hit struct {
	Location mgl64.Vec3
	Object   ObjectID
	Distance float64
}

// Raycaster answers line traces against placed geometry.
type Raycaster interface {
	Raycast(start, end mgl64.Vec3, channel Channel, ignore []ObjectID) (Hit, bool)
}

// Engine is the host the generator places content into. Positions crossing
// this interface are in centimeters.
type Engine interface {
	Raycaster

	CreateMesh(data MeshData) (MeshID, error)
	DuplicateAssetIntoNamespace(source AssetID, namespace string) (AssetID, error)
	PlaceObject(p Placement) (ObjectID, error)

	// Objects returns the objects of the current context.
	Objects() []Object
	Object(id ObjectID) (Object, bool)
	SetObjectTransform(id ObjectID, t geom.Transform) error
	SetInstanceTransforms(id ObjectID, instances []geom.Transform) error
	MeshBounds(id MeshID) (geom.Box, bool)

	CurrentContext() string
	LoadContext(name string) error
	SetContextOrigin(name string, origin mgl64.Vec3)
	MoveObjectsToContext(ids []ObjectID, context string) error
	SaveDirtyState() error

	// ClearStandalone lets an otherwise unreferenced mesh be collected.
	ClearStandalone(id MeshID)
	CollectGarbage() int
	ResetUndoHistory()
}
