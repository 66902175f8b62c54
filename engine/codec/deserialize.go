package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kohi3d/kohi/engine/kerr"
	"github.com/kohi3d/kohi/engine/stringtable"
)

// reader is a cursor over a deserialization source block.
type reader struct {
	block []byte
	off   int
}

func (r *reader) need(n int) error {
	if r.off+n > len(r.block) {
		return kerr.Wrap(kerr.ErrInvalidAsset, fmt.Sprintf("codec: unexpected end of block at offset %d, need %d more bytes", r.off, n))
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.block[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.block[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.block[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) vec3() ([3]float32, error) {
	var v [3]float32
	for i := range v {
		f, err := r.f32()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

func (r *reader) quat() ([4]float32, error) {
	var v [4]float32
	for i := range v {
		f, err := r.f32()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

func (r *reader) mat4() ([16]float32, error) {
	var m [16]float32
	for i := range m {
		f, err := r.f32()
		if err != nil {
			return m, err
		}
		m[i] = f
	}
	return m, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.block[r.off:r.off+n])
	r.off += n
	return out, nil
}

func (r *reader) expectGuard(want Guard) error {
	g, err := r.u32()
	if err != nil {
		return err
	}
	if Guard(g) != want {
		return kerr.Wrap(kerr.ErrInvalidAsset, fmt.Sprintf("codec: expected guard %d at offset %d, got %d", want, r.off-4, g))
	}
	return nil
}

// Deserialize parses block into a fully decoded, string-resolved Model.
//
// Parameters:
//   - block: a byte slice previously produced by Serialize
//
// Returns:
//   - *Model: the decoded model
//   - error: non-nil on magic/asset-type mismatch, a guard mismatch, an
//     unsupported mesh_type, a string-table offset inconsistency, or an
//     out-of-range (non-sentinel) string index
func Deserialize(block []byte) (*Model, error) {
	r := &reader{block: block}

	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.magic != MagicModel {
		return nil, kerr.Wrap(kerr.ErrInvalidAsset, fmt.Sprintf("codec: magic mismatch: got 0x%08X, want 0x%08X", hdr.magic, MagicModel))
	}
	if hdr.assetType != AssetTypeModel {
		return nil, kerr.Wrap(kerr.ErrInvalidAsset, fmt.Sprintf("codec: asset_type mismatch: got %d, want %d", hdr.assetType, AssetTypeModel))
	}

	m := &Model{
		AssetType:              hdr.assetType,
		Version:                hdr.version,
		ExporterType:           hdr.exporterType,
		ExporterVersion:        hdr.exporterVersion,
		ExtentsMin:             hdr.extentsMin,
		ExtentsMax:             hdr.extentsMax,
		Center:                 hdr.center,
		InverseGlobalTransform: hdr.inverseGlobalTransform,
	}

	var rawSubmeshes []rawSubmesh
	var rawBones []rawBone
	var rawNodes []rawNode
	var rawAnims []rawAnimation
	var rawChannels []rawChannel

	if hdr.submeshCount > 0 {
		if err := r.expectGuard(GuardSubmeshes); err != nil {
			return nil, err
		}
		rawSubmeshes, err = readSubmeshes(r, hdr.submeshCount)
		if err != nil {
			return nil, err
		}
	}
	if hdr.boneCount > 0 {
		if err := r.expectGuard(GuardBones); err != nil {
			return nil, err
		}
		rawBones, err = readBones(r, hdr.boneCount)
		if err != nil {
			return nil, err
		}
	}
	if hdr.nodeCount > 0 {
		if err := r.expectGuard(GuardNodes); err != nil {
			return nil, err
		}
		rawNodes, err = readNodes(r, hdr.nodeCount)
		if err != nil {
			return nil, err
		}
	}

	totalChannels := uint16(0)
	if hdr.animationCount > 0 {
		if err := r.expectGuard(GuardAnimations); err != nil {
			return nil, err
		}
		rawAnims, totalChannels, err = readAnimations(r, hdr.animationCount)
		if err != nil {
			return nil, err
		}
		if totalChannels > 0 {
			if err := r.expectGuard(GuardAnimChannels); err != nil {
				return nil, err
			}
			rawChannels, err = readAnimChannels(r, totalChannels)
			if err != nil {
				return nil, err
			}
		}
	}

	if err := r.expectGuard(GuardStrings); err != nil {
		return nil, err
	}
	if uint32(r.off) != hdr.stringTableOffset {
		return nil, kerr.Wrap(kerr.ErrInvalidAsset, fmt.Sprintf("codec: string table offset mismatch: header declares %d, parser is at %d", hdr.stringTableOffset, r.off))
	}
	tbl, consumed, err := stringtable.FromBlock(r.block[r.off:])
	if err != nil {
		return nil, kerr.Wrap(kerr.ErrInvalidAsset, err.Error())
	}
	r.off += consumed

	resolve := func(id uint16) (string, error) {
		if id == InvalidNameSentinel {
			return "", nil
		}
		if uint32(id) >= tbl.Count() {
			return "", kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("codec: string index %d out of range (count %d)", id, tbl.Count()))
		}
		return tbl.GetString(uint32(id)), nil
	}

	for _, rs := range rawSubmeshes {
		name, err := resolve(rs.nameID)
		if err != nil {
			return nil, err
		}
		matName, err := resolve(rs.materialNameID)
		if err != nil {
			return nil, err
		}
		m.Submeshes = append(m.Submeshes, Submesh{
			Name:         name,
			MaterialName: matName,
			MeshType:     rs.meshType,
			VertexCount:  rs.vertexCount,
			IndexCount:   rs.indexCount,
			Center:       rs.center,
			ExtentsMin:   rs.extentsMin,
			ExtentsMax:   rs.extentsMax,
			VertexData:   rs.vertexData,
			IndexData:    rs.indexData,
		})
	}

	for _, rb := range rawBones {
		name, err := resolve(rb.nameID)
		if err != nil {
			return nil, err
		}
		m.Bones = append(m.Bones, Bone{
			Name:         name,
			OffsetMatrix: rb.offsetMatrix,
			ID:           uint16(len(m.Bones)),
		})
	}

	for i, rn := range rawNodes {
		name, err := resolve(rn.nameID)
		if err != nil {
			return nil, err
		}
		m.Nodes = append(m.Nodes, Node{
			Name:           name,
			LocalTransform: rn.localTransform,
			ParentIndex:    rn.parentIndex,
		})
		if rn.parentIndex != NoneIndex && int(rn.parentIndex) < len(rawNodes) {
			m.Nodes[rn.parentIndex].Children = append(m.Nodes[rn.parentIndex].Children, uint16(i))
		}
	}

	channelsByAnim := make([][]rawChannel, len(rawAnims))
	for _, rc := range rawChannels {
		channelsByAnim[rc.animIdx] = append(channelsByAnim[rc.animIdx], rc)
	}

	for i, ra := range rawAnims {
		name, err := resolve(ra.nameID)
		if err != nil {
			return nil, err
		}
		anim := Animation{
			Name:           name,
			DurationTicks:  ra.duration,
			TicksPerSecond: ra.ticksPerSecond,
		}
		for _, rc := range channelsByAnim[i] {
			chName, err := resolve(rc.nameID)
			if err != nil {
				return nil, err
			}
			anim.Channels = append(anim.Channels, Channel{
				NodeName:  chName,
				Positions: rc.positions,
				Rotations: rc.rotations,
				Scales:    rc.scales,
			})
		}
		m.Animations = append(m.Animations, anim)
	}

	return m, nil
}

func readHeader(r *reader) (header, error) {
	var h header
	var err error

	if h.magic, err = r.u32(); err != nil {
		return h, err
	}
	if h.assetType, err = r.u32(); err != nil {
		return h, err
	}
	if h.version, err = r.u32(); err != nil {
		return h, err
	}
	if h.exporterType, err = r.u32(); err != nil {
		return h, err
	}
	if h.exporterVersion, err = r.u8(); err != nil {
		return h, err
	}
	if _, err = r.bytes(3); err != nil {
		return h, err
	}
	if h.extentsMin, err = r.vec3(); err != nil {
		return h, err
	}
	if h.extentsMax, err = r.vec3(); err != nil {
		return h, err
	}
	if h.center, err = r.vec3(); err != nil {
		return h, err
	}
	if h.inverseGlobalTransform, err = r.mat4(); err != nil {
		return h, err
	}
	if h.submeshCount, err = r.u16(); err != nil {
		return h, err
	}
	if h.boneCount, err = r.u16(); err != nil {
		return h, err
	}
	if h.nodeCount, err = r.u16(); err != nil {
		return h, err
	}
	if h.animationCount, err = r.u16(); err != nil {
		return h, err
	}
	if h.stringTableOffset, err = r.u32(); err != nil {
		return h, err
	}
	return h, nil
}

type rawSubmesh struct {
	nameID         uint16
	materialNameID uint16
	meshType       MeshType
	vertexCount    uint32
	indexCount     uint32
	center         [3]float32
	extentsMin     [3]float32
	extentsMax     [3]float32
	vertexData     []byte
	indexData      []byte
}

func readSubmeshes(r *reader, count uint16) ([]rawSubmesh, error) {
	n := int(count)
	out := make([]rawSubmesh, n)

	for i := 0; i < n; i++ {
		id, err := r.u16()
		if err != nil {
			return nil, err
		}
		out[i].nameID = id
	}
	for i := 0; i < n; i++ {
		id, err := r.u16()
		if err != nil {
			return nil, err
		}
		out[i].materialNameID = id
	}
	for i := 0; i < n; i++ {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		out[i].vertexCount = v
	}
	for i := 0; i < n; i++ {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		out[i].indexCount = v
	}
	for i := 0; i < n; i++ {
		v, err := r.u8()
		if err != nil {
			return nil, err
		}
		out[i].meshType = MeshType(v)
	}
	for i := 0; i < n; i++ {
		v, err := r.vec3()
		if err != nil {
			return nil, err
		}
		out[i].center = v
	}
	for i := 0; i < n; i++ {
		mn, err := r.vec3()
		if err != nil {
			return nil, err
		}
		mx, err := r.vec3()
		if err != nil {
			return nil, err
		}
		out[i].extentsMin = mn
		out[i].extentsMax = mx
	}

	for i := 0; i < n; i++ {
		stride, err := vertexStride(out[i].meshType)
		if err != nil {
			return nil, err
		}
		size := int(uint64(out[i].vertexCount) * uint64(stride))
		data, err := r.bytes(size)
		if err != nil {
			return nil, err
		}
		out[i].vertexData = data
	}
	for i := 0; i < n; i++ {
		size := int(uint64(out[i].indexCount) * indexStride)
		data, err := r.bytes(size)
		if err != nil {
			return nil, err
		}
		out[i].indexData = data
	}

	return out, nil
}

type rawBone struct {
	nameID       uint16
	offsetMatrix [16]float32
}

func readBones(r *reader, count uint16) ([]rawBone, error) {
	n := int(count)
	out := make([]rawBone, n)
	for i := 0; i < n; i++ {
		id, err := r.u16()
		if err != nil {
			return nil, err
		}
		out[i].nameID = id
	}
	for i := 0; i < n; i++ {
		m, err := r.mat4()
		if err != nil {
			return nil, err
		}
		out[i].offsetMatrix = m
	}
	return out, nil
}

type rawNode struct {
	nameID         uint16
	parentIndex    uint16
	localTransform [16]float32
}

func readNodes(r *reader, count uint16) ([]rawNode, error) {
	n := int(count)
	out := make([]rawNode, n)
	for i := 0; i < n; i++ {
		id, err := r.u16()
		if err != nil {
			return nil, err
		}
		out[i].nameID = id
	}
	for i := 0; i < n; i++ {
		p, err := r.u16()
		if err != nil {
			return nil, err
		}
		out[i].parentIndex = p
	}
	for i := 0; i < n; i++ {
		m, err := r.mat4()
		if err != nil {
			return nil, err
		}
		out[i].localTransform = m
	}
	return out, nil
}

type rawAnimation struct {
	nameID         uint16
	duration       float32
	ticksPerSecond float32
	channelCount   uint16
}

func readAnimations(r *reader, count uint16) ([]rawAnimation, uint16, error) {
	totalChannels, err := r.u16()
	if err != nil {
		return nil, 0, err
	}

	n := int(count)
	out := make([]rawAnimation, n)
	for i := 0; i < n; i++ {
		id, err := r.u16()
		if err != nil {
			return nil, 0, err
		}
		out[i].nameID = id
	}
	for i := 0; i < n; i++ {
		d, err := r.f32()
		if err != nil {
			return nil, 0, err
		}
		out[i].duration = d
	}
	for i := 0; i < n; i++ {
		t, err := r.f32()
		if err != nil {
			return nil, 0, err
		}
		out[i].ticksPerSecond = t
	}
	for i := 0; i < n; i++ {
		c, err := r.u16()
		if err != nil {
			return nil, 0, err
		}
		out[i].channelCount = c
	}

	return out, totalChannels, nil
}

type rawChannel struct {
	animIdx   uint16
	nameID    uint16
	positions []Vec3Key
	rotations []QuatKey
	scales    []Vec3Key
}

func readAnimChannels(r *reader, totalChannels uint16) ([]rawChannel, error) {
	n := int(totalChannels)
	out := make([]rawChannel, n)

	animIdx := make([]uint16, n)
	for i := 0; i < n; i++ {
		v, err := r.u16()
		if err != nil {
			return nil, err
		}
		animIdx[i] = v
	}
	nameIDs := make([]uint16, n)
	for i := 0; i < n; i++ {
		v, err := r.u16()
		if err != nil {
			return nil, err
		}
		nameIDs[i] = v
	}
	posCounts := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		posCounts[i] = v
	}
	posOffsets := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		posOffsets[i] = v
	}
	rotCounts := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		rotCounts[i] = v
	}
	rotOffsets := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		rotOffsets[i] = v
	}
	scaleCounts := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		scaleCounts[i] = v
	}
	scaleOffsets := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		scaleOffsets[i] = v
	}

	blobStart := r.off
	blobSize := 0
	for i := 0; i < n; i++ {
		end := int(scaleOffsets[i]) + int(scaleCounts[i])*scaleKeySize
		if end > blobSize {
			blobSize = end
		}
	}
	blob, err := r.bytes(blobSize)
	if err != nil {
		return nil, err
	}
	_ = blobStart

	readVec3Keys := func(off uint32, count uint32) ([]Vec3Key, error) {
		keys := make([]Vec3Key, count)
		p := int(off)
		for i := range keys {
			if p+posKeySize > len(blob) {
				return nil, kerr.Wrap(kerr.ErrInvalidAsset, "codec: channel key blob truncated")
			}
			keys[i].Time = math.Float32frombits(binary.LittleEndian.Uint32(blob[p:]))
			keys[i].Value = [3]float32{
				math.Float32frombits(binary.LittleEndian.Uint32(blob[p+4:])),
				math.Float32frombits(binary.LittleEndian.Uint32(blob[p+8:])),
				math.Float32frombits(binary.LittleEndian.Uint32(blob[p+12:])),
			}
			p += posKeySize
		}
		return keys, nil
	}
	readQuatKeys := func(off uint32, count uint32) ([]QuatKey, error) {
		keys := make([]QuatKey, count)
		p := int(off)
		for i := range keys {
			if p+rotKeySize > len(blob) {
				return nil, kerr.Wrap(kerr.ErrInvalidAsset, "codec: channel key blob truncated")
			}
			keys[i].Time = math.Float32frombits(binary.LittleEndian.Uint32(blob[p:]))
			keys[i].Value = [4]float32{
				math.Float32frombits(binary.LittleEndian.Uint32(blob[p+4:])),
				math.Float32frombits(binary.LittleEndian.Uint32(blob[p+8:])),
				math.Float32frombits(binary.LittleEndian.Uint32(blob[p+12:])),
				math.Float32frombits(binary.LittleEndian.Uint32(blob[p+16:])),
			}
			p += rotKeySize
		}
		return keys, nil
	}

	for i := 0; i < n; i++ {
		out[i].animIdx = animIdx[i]
		out[i].nameID = nameIDs[i]

		pos, err := readVec3Keys(posOffsets[i], posCounts[i])
		if err != nil {
			return nil, err
		}
		out[i].positions = pos

		rot, err := readQuatKeys(rotOffsets[i], rotCounts[i])
		if err != nil {
			return nil, err
		}
		out[i].rotations = rot

		scale, err := readVec3Keys(scaleOffsets[i], scaleCounts[i])
		if err != nil {
			return nil, err
		}
		out[i].scales = scale
	}

	return out, nil
}
