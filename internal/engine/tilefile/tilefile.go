// Package tilefile reads and writes saved tile contexts. Files are a short
// magic header followed by a protobuf wire format message.
package tilefile

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/Faultbox/roadtiles/internal/engine"
	"github.com/Faultbox/roadtiles/pkg/geom"
	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/protobuf/encoding/protowire"
)

// Extension is the file extension of tile files.
const Extension = ".rtile"

// Version is the current format version.
const Version = 1

var magic = []byte("RTIL")

// Format errors.
var (
	ErrBadMagic       = errors.New("not a tile file")
	ErrUnsupported    = errors.New("unsupported tile file version")
	ErrTruncatedTile  = errors.New("truncated tile file")
	ErrMalformedField = errors.New("malformed tile field")
)

// Tile is one saved context.
type Tile struct {
	Name    string
	Origin  mgl64.Vec3
	Entries []Entry
}

// Entry is a saved object, with its mesh when it renders one.
type Entry struct {
	Object engine.Object
	Mesh   *engine.MeshData
}

// Field numbers.
const (
	tileName    protowire.Number = 1
	tileOrigin  protowire.Number = 2
	tileEntries protowire.Number = 3

	entryID        protowire.Number = 1
	entryKind      protowire.Number = 2
	entryClass     protowire.Number = 3
	entryLabel     protowire.Number = 4
	entryTransform protowire.Number = 5
	entryInstance  protowire.Number = 6
	entryTag       protowire.Number = 7
	entryMesh      protowire.Number = 8
	entryContext   protowire.Number = 9
	entryMeshID    protowire.Number = 10

	xformLocation protowire.Number = 1
	xformRotation protowire.Number = 2
	xformScale    protowire.Number = 3

	meshName      protowire.Number = 1
	meshCategory  protowire.Number = 2
	meshNamespace protowire.Number = 3
	meshMaterial  protowire.Number = 4
	meshVertices  protowire.Number = 5
	meshIndices   protowire.Number = 6
	meshNormals   protowire.Number = 7
	meshUVs       protowire.Number = 8
	meshTangents  protowire.Number = 9
)

// Encode serializes a tile.
func Encode(t *Tile) []byte {
	b := append([]byte(nil), magic...)
	b = protowire.AppendVarint(b, Version)

	b = appendString(b, tileName, t.Name)
	b = appendDoubles(b, tileOrigin, t.Origin[:])
	for i := range t.Entries {
		b = protowire.AppendTag(b, tileEntries, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeEntry(&t.Entries[i]))
	}
	return b
}

// Decode parses a tile.
func Decode(data []byte) (*Tile, error) {
	if len(data) < len(magic) || !bytes.Equal(data[:len(magic)], magic) {
		return nil, ErrBadMagic
	}
	data = data[len(magic):]
	version, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, ErrTruncatedTile
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, version)
	}
	data = data[n:]

	t := &Tile{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case tileName:
			t.Name = string(v)
		case tileOrigin:
			vals, err := consumeDoubles(v, 3)
			if err != nil {
				return err
			}
			t.Origin = mgl64.Vec3{vals[0], vals[1], vals[2]}
		case tileEntries:
			e, err := decodeEntry(v)
			if err != nil {
				return err
			}
			t.Entries = append(t.Entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding tile: %w", err)
	}
	return t, nil
}

// Write encodes t to path.
func Write(path string, t *Tile) error {
	if err := os.WriteFile(path, Encode(t), 0o644); err != nil {
		return fmt.Errorf("writing tile %s: %w", t.Name, err)
	}
	return nil
}

// Read decodes the tile at path.
func Read(path string) (*Tile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tile: %w", err)
	}
	t, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func encodeEntry(e *Entry) []byte {
	o := &e.Object
	var b []byte
	b = appendVarint(b, entryID, uint64(o.ID))
	b = appendVarint(b, entryKind, uint64(o.Kind))
	b = appendVarint(b, entryMeshID, uint64(o.Mesh))
	b = appendString(b, entryClass, o.Class)
	b = appendString(b, entryLabel, o.Label)
	b = appendString(b, entryContext, o.Context)
	b = appendMessage(b, entryTransform, encodeTransform(o.Transform))
	for _, inst := range o.Instances {
		b = appendMessage(b, entryInstance, encodeTransform(inst))
	}
	for _, tag := range o.Tags {
		b = protowire.AppendTag(b, entryTag, protowire.BytesType)
		b = protowire.AppendString(b, tag)
	}
	if e.Mesh != nil {
		b = appendMessage(b, entryMesh, encodeMesh(e.Mesh))
	}
	return b
}

func decodeEntry(data []byte) (Entry, error) {
	var e Entry
	o := &e.Object
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		var err error
		switch num {
		case entryID:
			o.ID = engine.ObjectID(x)
		case entryKind:
			o.Kind = engine.Kind(x)
		case entryMeshID:
			o.Mesh = engine.MeshID(x)
		case entryClass:
			o.Class = string(v)
		case entryLabel:
			o.Label = string(v)
		case entryContext:
			o.Context = string(v)
		case entryTransform:
			o.Transform, err = decodeTransform(v)
		case entryInstance:
			var inst geom.Transform
			if inst, err = decodeTransform(v); err == nil {
				o.Instances = append(o.Instances, inst)
			}
		case entryTag:
			o.Tags = append(o.Tags, string(v))
		case entryMesh:
			var m engine.MeshData
			if m, err = decodeMesh(v); err == nil {
				e.Mesh = &m
			}
		}
		return err
	})
	return e, err
}

func encodeTransform(t geom.Transform) []byte {
	var b []byte
	b = appendDoubles(b, xformLocation, t.Location[:])
	b = appendDoubles(b, xformRotation, []float64{t.Rotation.W, t.Rotation.V[0], t.Rotation.V[1], t.Rotation.V[2]})
	b = appendDoubles(b, xformScale, t.Scale[:])
	return b
}

func decodeTransform(data []byte) (geom.Transform, error) {
	t := geom.Identity()
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case xformLocation:
			vals, err := consumeDoubles(v, 3)
			if err != nil {
				return err
			}
			t.Location = mgl64.Vec3{vals[0], vals[1], vals[2]}
		case xformRotation:
			vals, err := consumeDoubles(v, 4)
			if err != nil {
				return err
			}
			t.Rotation = mgl64.Quat{W: vals[0], V: mgl64.Vec3{vals[1], vals[2], vals[3]}}
		case xformScale:
			vals, err := consumeDoubles(v, 3)
			if err != nil {
				return err
			}
			t.Scale = mgl64.Vec3{vals[0], vals[1], vals[2]}
		}
		return nil
	})
	return t, err
}

func encodeMesh(m *engine.MeshData) []byte {
	var b []byte
	b = appendString(b, meshName, m.Name)
	b = appendString(b, meshCategory, m.Category)
	b = appendString(b, meshNamespace, m.Namespace)
	b = appendString(b, meshMaterial, string(m.Material))
	b = appendDoubles(b, meshVertices, flatten3(m.Vertices))
	b = appendDoubles(b, meshNormals, flatten3(m.Normals))
	b = appendDoubles(b, meshTangents, flatten3(m.Tangents))
	uvs := make([]float64, 0, len(m.UVs)*2)
	for _, uv := range m.UVs {
		uvs = append(uvs, uv[0], uv[1])
	}
	b = appendDoubles(b, meshUVs, uvs)

	if len(m.Indices) > 0 {
		var packed []byte
		for _, idx := range m.Indices {
			packed = protowire.AppendVarint(packed, uint64(idx))
		}
		b = protowire.AppendTag(b, meshIndices, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

func decodeMesh(data []byte) (engine.MeshData, error) {
	var m engine.MeshData
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		var err error
		switch num {
		case meshName:
			m.Name = string(v)
		case meshCategory:
			m.Category = string(v)
		case meshNamespace:
			m.Namespace = string(v)
		case meshMaterial:
			m.Material = engine.AssetID(v)
		case meshVertices:
			m.Vertices, err = unflatten3(v)
		case meshNormals:
			m.Normals, err = unflatten3(v)
		case meshTangents:
			m.Tangents, err = unflatten3(v)
		case meshUVs:
			var vals []float64
			if vals, err = consumeDoubles(v, -1); err == nil {
				if len(vals)%2 != 0 {
					return fmt.Errorf("%w: uv count %d", ErrMalformedField, len(vals))
				}
				for i := 0; i < len(vals); i += 2 {
					m.UVs = append(m.UVs, mgl64.Vec2{vals[i], vals[i+1]})
				}
			}
		case meshIndices:
			for len(v) > 0 {
				idx, n := protowire.ConsumeVarint(v)
				if n < 0 {
					return ErrTruncatedTile
				}
				m.Indices = append(m.Indices, uint32(idx))
				v = v[n:]
			}
		}
		return err
	})
	return m, err
}

// walk calls fn for every field of a message. Length-delimited values are
// passed as v, varints as x. Unknown wire types are skipped.
func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrTruncatedTile
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			x, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return ErrTruncatedTile
			}
			if err := fn(num, typ, nil, x); err != nil {
				return err
			}
			data = data[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return ErrTruncatedTile
			}
			if err := fn(num, typ, v, 0); err != nil {
				return err
			}
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return ErrTruncatedTile
			}
			data = data[m:]
		}
	}
	return nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// appendDoubles writes a packed repeated double field.
func appendDoubles(b []byte, num protowire.Number, vals []float64) []byte {
	if len(vals) == 0 {
		return b
	}
	packed := make([]byte, 0, len(vals)*8)
	for _, v := range vals {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

// consumeDoubles reads a packed double field. want < 0 accepts any count.
func consumeDoubles(v []byte, want int) ([]float64, error) {
	if len(v)%8 != 0 {
		return nil, ErrTruncatedTile
	}
	vals := make([]float64, 0, len(v)/8)
	for len(v) > 0 {
		bits, n := protowire.ConsumeFixed64(v)
		if n < 0 {
			return nil, ErrTruncatedTile
		}
		vals = append(vals, math.Float64frombits(bits))
		v = v[n:]
	}
	if want >= 0 && len(vals) != want {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrMalformedField, want, len(vals))
	}
	return vals, nil
}

func flatten3(vs []mgl64.Vec3) []float64 {
	out := make([]float64, 0, len(vs)*3)
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2])
	}
	return out
}

func unflatten3(v []byte) ([]mgl64.Vec3, error) {
	vals, err := consumeDoubles(v, -1)
	if err != nil {
		return nil, err
	}
	if len(vals)%3 != 0 {
		return nil, fmt.Errorf("%w: vector component count %d", ErrMalformedField, len(vals))
	}
	out := make([]mgl64.Vec3, 0, len(vals)/3)
	for i := 0; i < len(vals); i += 3 {
		out = append(out, mgl64.Vec3{vals[i], vals[i+1], vals[i+2]})
	}
	return out, nil
}
