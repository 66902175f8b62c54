package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kohi3d/kohi/engine/kerr"
	"github.com/kohi3d/kohi/engine/stringtable"
)

const (
	posKeySize  = 4 + 12 // time (f32) + vec3
	rotKeySize  = 4 + 16 // time (f32) + quat
	scaleKeySize = posKeySize
)

// nameResolver interns strings into a stringtable.Table, deduplicating
// repeated names to the same index. Empty names resolve to
// InvalidNameSentinel without touching the table.
type nameResolver struct {
	tbl   *stringtable.Table
	cache map[string]uint16
}

func newNameResolver() *nameResolver {
	return &nameResolver{tbl: stringtable.New(), cache: map[string]uint16{}}
}

func (r *nameResolver) id(name string) (uint16, error) {
	if name == "" {
		return InvalidNameSentinel, nil
	}
	if id, ok := r.cache[name]; ok {
		return id, nil
	}
	idx, err := r.tbl.AddString(name)
	if err != nil {
		return 0, err
	}
	if idx >= uint32(InvalidNameSentinel) {
		return 0, kerr.Wrap(kerr.ErrCapacityExceeded, "codec: string table exceeds u16 addressable range")
	}
	id := uint16(idx)
	r.cache[name] = id
	return id, nil
}

func writeU8(buf *bytes.Buffer, v uint8)   { buf.WriteByte(v) }
func writeU16(buf *bytes.Buffer, v uint16) { var b [2]byte; binary.LittleEndian.PutUint16(b[:], v); buf.Write(b[:]) }
func writeU32(buf *bytes.Buffer, v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); buf.Write(b[:]) }
func writeF32(buf *bytes.Buffer, v float32) { writeU32(buf, math.Float32bits(v)) }

func writeVec3(buf *bytes.Buffer, v [3]float32) {
	writeF32(buf, v[0])
	writeF32(buf, v[1])
	writeF32(buf, v[2])
}

func writeQuat(buf *bytes.Buffer, v [4]float32) {
	writeF32(buf, v[0])
	writeF32(buf, v[1])
	writeF32(buf, v[2])
	writeF32(buf, v[3])
}

func writeMat4(buf *bytes.Buffer, m [16]float32) {
	for _, f := range m {
		writeF32(buf, f)
	}
}

func writeGuard(buf *bytes.Buffer, g Guard) {
	writeU32(buf, uint32(g))
}

// Serialize produces the single contiguous on-disk block for m: header,
// then present sections in guard-enum order, then the STRINGS section
// (always present).
//
// Parameters:
//   - m: the model to serialize
//
// Returns:
//   - []byte: the serialized block
//   - error: non-nil if m declares data the format cannot represent
//     (an unsupported mesh_type, a vertex/index blob of the wrong size, or
//     a string table that overflows u16 addressing)
func Serialize(m *Model) ([]byte, error) {
	names := newNameResolver()
	buf := new(bytes.Buffer)

	if err := writeHeaderPlaceholder(buf, m); err != nil {
		return nil, err
	}

	if len(m.Submeshes) > 0 {
		if err := writeSubmeshes(buf, m.Submeshes, names); err != nil {
			return nil, err
		}
	}
	if len(m.Bones) > 0 {
		if err := writeBones(buf, m.Bones, names); err != nil {
			return nil, err
		}
	}
	if len(m.Nodes) > 0 {
		if err := writeNodes(buf, m.Nodes, names); err != nil {
			return nil, err
		}
	}

	totalChannels := 0
	for _, a := range m.Animations {
		totalChannels += len(a.Channels)
	}
	if len(m.Animations) > 0 {
		if err := writeAnimations(buf, m.Animations, names); err != nil {
			return nil, err
		}
		if totalChannels > 0 {
			if err := writeAnimChannels(buf, m.Animations, names); err != nil {
				return nil, err
			}
		}
	}

	writeGuard(buf, GuardStrings)
	stringTableOffset := uint32(buf.Len())
	tblBytes, _ := names.tbl.Serialize()
	buf.Write(tblBytes)

	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[headerSize-4:headerSize], stringTableOffset)

	return out, nil
}

func writeHeaderPlaceholder(buf *bytes.Buffer, m *Model) error {
	writeU32(buf, MagicModel)
	writeU32(buf, AssetTypeModel)
	writeU32(buf, CurrentVersion)
	writeU32(buf, m.ExporterType)
	writeU8(buf, m.ExporterVersion)
	buf.Write([]byte{0, 0, 0})
	writeVec3(buf, m.ExtentsMin)
	writeVec3(buf, m.ExtentsMax)
	writeVec3(buf, m.Center)
	writeMat4(buf, m.InverseGlobalTransform)
	writeU16(buf, uint16(len(m.Submeshes)))
	writeU16(buf, uint16(len(m.Bones)))
	writeU16(buf, uint16(len(m.Nodes)))
	writeU16(buf, uint16(len(m.Animations)))
	writeU32(buf, 0) // string_table_offset placeholder, patched at the end
	return nil
}

func writeSubmeshes(buf *bytes.Buffer, submeshes []Submesh, names *nameResolver) error {
	writeGuard(buf, GuardSubmeshes)

	nameIDs := make([]uint16, len(submeshes))
	materialIDs := make([]uint16, len(submeshes))
	for i, s := range submeshes {
		id, err := names.id(s.Name)
		if err != nil {
			return err
		}
		nameIDs[i] = id
		mid, err := names.id(s.MaterialName)
		if err != nil {
			return err
		}
		materialIDs[i] = mid
	}
	for _, id := range nameIDs {
		writeU16(buf, id)
	}
	for _, id := range materialIDs {
		writeU16(buf, id)
	}
	for _, s := range submeshes {
		writeU32(buf, s.VertexCount)
	}
	for _, s := range submeshes {
		writeU32(buf, s.IndexCount)
	}
	for _, s := range submeshes {
		writeU8(buf, uint8(s.MeshType))
	}
	for _, s := range submeshes {
		writeVec3(buf, s.Center)
	}
	for _, s := range submeshes {
		writeVec3(buf, s.ExtentsMin)
		writeVec3(buf, s.ExtentsMax)
	}

	for i, s := range submeshes {
		stride, err := vertexStride(s.MeshType)
		if err != nil {
			return err
		}
		want := int(uint64(s.VertexCount) * uint64(stride))
		if len(s.VertexData) != want {
			return kerr.Wrap(kerr.ErrInvalidAsset, fmt.Sprintf("codec: submesh %d vertex data is %d bytes, want %d", i, len(s.VertexData), want))
		}
		buf.Write(s.VertexData)
	}
	for i, s := range submeshes {
		want := int(uint64(s.IndexCount) * indexStride)
		if len(s.IndexData) != want {
			return kerr.Wrap(kerr.ErrInvalidAsset, fmt.Sprintf("codec: submesh %d index data is %d bytes, want %d", i, len(s.IndexData), want))
		}
		buf.Write(s.IndexData)
	}
	return nil
}

func writeBones(buf *bytes.Buffer, bones []Bone, names *nameResolver) error {
	writeGuard(buf, GuardBones)
	ids := make([]uint16, len(bones))
	for i, b := range bones {
		id, err := names.id(b.Name)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	for _, id := range ids {
		writeU16(buf, id)
	}
	for _, b := range bones {
		writeMat4(buf, b.OffsetMatrix)
	}
	return nil
}

func writeNodes(buf *bytes.Buffer, nodes []Node, names *nameResolver) error {
	writeGuard(buf, GuardNodes)
	ids := make([]uint16, len(nodes))
	for i, n := range nodes {
		id, err := names.id(n.Name)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	for _, id := range ids {
		writeU16(buf, id)
	}
	for _, n := range nodes {
		writeU16(buf, n.ParentIndex)
	}
	for _, n := range nodes {
		writeMat4(buf, n.LocalTransform)
	}
	return nil
}

func writeAnimations(buf *bytes.Buffer, anims []Animation, names *nameResolver) error {
	writeGuard(buf, GuardAnimations)

	total := 0
	for _, a := range anims {
		total += len(a.Channels)
	}
	writeU16(buf, uint16(total))

	ids := make([]uint16, len(anims))
	for i, a := range anims {
		id, err := names.id(a.Name)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	for _, id := range ids {
		writeU16(buf, id)
	}
	for _, a := range anims {
		writeF32(buf, a.DurationTicks)
	}
	for _, a := range anims {
		writeF32(buf, a.TicksPerSecond)
	}
	for _, a := range anims {
		writeU16(buf, uint16(len(a.Channels)))
	}
	return nil
}

func writeAnimChannels(buf *bytes.Buffer, anims []Animation, names *nameResolver) error {
	writeGuard(buf, GuardAnimChannels)

	type flatChannel struct {
		animIdx uint16
		ch      Channel
	}
	var flat []flatChannel
	for a, anim := range anims {
		for _, ch := range anim.Channels {
			flat = append(flat, flatChannel{animIdx: uint16(a), ch: ch})
		}
	}

	channelNameIDs := make([]uint16, len(flat))
	for i, fc := range flat {
		id, err := names.id(fc.ch.NodeName)
		if err != nil {
			return err
		}
		channelNameIDs[i] = id
	}

	posCounts := make([]uint32, len(flat))
	posOffsets := make([]uint32, len(flat))
	rotCounts := make([]uint32, len(flat))
	rotOffsets := make([]uint32, len(flat))
	scaleCounts := make([]uint32, len(flat))
	scaleOffsets := make([]uint32, len(flat))

	running := uint32(0)
	for i, fc := range flat {
		posCounts[i] = uint32(len(fc.ch.Positions))
		posOffsets[i] = running
		running += posCounts[i] * posKeySize

		rotCounts[i] = uint32(len(fc.ch.Rotations))
		rotOffsets[i] = running
		running += rotCounts[i] * rotKeySize

		scaleCounts[i] = uint32(len(fc.ch.Scales))
		scaleOffsets[i] = running
		running += scaleCounts[i] * scaleKeySize
	}

	for _, fc := range flat {
		writeU16(buf, fc.animIdx)
	}
	for _, id := range channelNameIDs {
		writeU16(buf, id)
	}
	for _, v := range posCounts {
		writeU32(buf, v)
	}
	for _, v := range posOffsets {
		writeU32(buf, v)
	}
	for _, v := range rotCounts {
		writeU32(buf, v)
	}
	for _, v := range rotOffsets {
		writeU32(buf, v)
	}
	for _, v := range scaleCounts {
		writeU32(buf, v)
	}
	for _, v := range scaleOffsets {
		writeU32(buf, v)
	}

	for _, fc := range flat {
		for _, k := range fc.ch.Positions {
			writeF32(buf, k.Time)
			writeVec3(buf, k.Value)
		}
		for _, k := range fc.ch.Rotations {
			writeF32(buf, k.Time)
			writeQuat(buf, k.Value)
		}
		for _, k := range fc.ch.Scales {
			writeF32(buf, k.Time)
			writeVec3(buf, k.Value)
		}
	}

	return nil
}
