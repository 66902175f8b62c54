// Package codec implements the versioned, guard-delimited, self-describing
// binary format for model/animation assets, backed by an embedded string
// table. The format is shaped to be consumed directly by the model
// runtime: parallel-array sections that slice cleanly out of a single
// contiguous block, with name lookups resolved through one shared table.
package codec

import (
	"fmt"

	"github.com/kohi3d/kohi/engine/kerr"
)

// Guard is the u32 tag written immediately before every section. Guards
// form a closed enum; a present section's guard must match its expected
// value exactly or deserialization fails.
type Guard uint32

const (
	GuardHeader       Guard = 0
	GuardSubmeshes    Guard = 1
	GuardBones        Guard = 2
	GuardNodes        Guard = 3
	GuardAnimations   Guard = 4
	GuardAnimChannels Guard = 5
	GuardStrings      Guard = 6
)

// MagicModel identifies a model asset block; the little-endian bytes spell
// "KOHI".
const MagicModel uint32 = 0x49484F4B

// AssetTypeModel is the only asset_type this codec currently serializes.
const AssetTypeModel uint32 = 1

// CurrentVersion is written into every block this package serializes.
// Deserialize does not reject other versions outright — the format
// versions per asset type with a monotonically increasing integer, and
// this package is the only writer, so a version mismatch here would
// indicate a genuinely incompatible caller rather than a migratable one.
const CurrentVersion uint32 = 1

// InvalidNameSentinel marks a name_id field as absent; no string lookup is
// attempted for it.
const InvalidNameSentinel uint16 = 0xFFFF

// MeshType identifies a submesh's vertex layout.
type MeshType uint8

const (
	MeshTypeStatic  MeshType = 0
	MeshTypeSkinned MeshType = 1
)

// Vertex strides, in bytes, per mesh type. Static vertices carry position,
// normal, uv, and tangent (3+3+2+4 float32 = 48 bytes). Skinned vertices
// add four bone ids and four bone weights (32 more bytes).
const (
	staticVertexStride  = 48
	skinnedVertexStride = staticVertexStride + 32
)

// indexStride is the fixed per-index byte size; indices are always u32.
const indexStride = 4

// vertexStride returns the byte size of one vertex under meshType, or an
// error if meshType is not one of the supported values.
func vertexStride(meshType MeshType) (uint32, error) {
	switch meshType {
	case MeshTypeStatic:
		return staticVertexStride, nil
	case MeshTypeSkinned:
		return skinnedVertexStride, nil
	default:
		return 0, kerr.Wrap(kerr.ErrUnsupportedMeshType, fmt.Sprintf("codec: mesh_type %d", meshType))
	}
}

// header is the fixed-size leading section of a serialized block. Integer
// fields are little-endian; vec3/mat4 fields are flat float32 arrays in the
// same column-major convention as package common.
type header struct {
	magic                  uint32
	assetType              uint32
	version                uint32
	exporterType           uint32
	exporterVersion        uint8
	extentsMin             [3]float32
	extentsMax             [3]float32
	center                 [3]float32
	inverseGlobalTransform [16]float32
	submeshCount           uint16
	boneCount              uint16
	nodeCount              uint16
	animationCount         uint16
	stringTableOffset      uint32
}

// headerSize is the fixed serialized size of header, in bytes: 4 u32 fields,
// 1 u8 field plus 3 bytes of alignment padding, three vec3 fields, one mat4
// field, 4 u16 fields, and a trailing u32.
const headerSize = 4*4 + 4 + 3*12 + 64 + 4*2 + 4

const guardSize = 4
