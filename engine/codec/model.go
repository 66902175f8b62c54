package codec

// Vec3Key is one time-stamped position or scale keyframe.
type Vec3Key struct {
	Time  float32
	Value [3]float32
}

// QuatKey is one time-stamped rotation keyframe.
type QuatKey struct {
	Time  float32
	Value [4]float32
}

// Channel holds the three independent, time-sorted key streams driving one
// node across one animation.
type Channel struct {
	NodeName  string
	Positions []Vec3Key
	Rotations []QuatKey
	Scales    []Vec3Key
}

// Animation is one ordered sequence of channels sharing a duration and
// playback rate.
type Animation struct {
	Name           string
	DurationTicks  float32
	TicksPerSecond float32
	Channels       []Channel
}

// Submesh is one contiguous draw range within the model's geometry, plus
// the raw vertex/index bytes the geometry-upload stage copies into the
// renderer's global buffers.
type Submesh struct {
	Name         string
	MaterialName string
	MeshType     MeshType
	VertexCount  uint32
	IndexCount   uint32
	Center       [3]float32
	ExtentsMin   [3]float32
	ExtentsMax   [3]float32
	VertexData   []byte
	IndexData    []byte
}

// Bone is one skeletal joint: a name, the offset (inverse bind) matrix that
// maps mesh space into bone space, and the stable id used to index the
// runtime's bone palette.
type Bone struct {
	Name          string
	OffsetMatrix  [16]float32
	ID            uint16
}

// NoneIndex is the sentinel parent index marking a root node.
const NoneIndex uint16 = 0xFFFF

// Node is one entry in the index-based scene tree: a rest-pose local
// transform, a parent index (NoneIndex for roots), and an owned,
// insertion-ordered array of child indices.
type Node struct {
	Name           string
	LocalTransform [16]float32
	ParentIndex    uint16
	Children       []uint16
}

// Model is the fully decoded, string-resolved asset graph: everything a
// base needs to populate itself and begin geometry upload.
type Model struct {
	AssetType              uint32
	Version                uint32
	ExporterType           uint32
	ExporterVersion        uint8
	ExtentsMin             [3]float32
	ExtentsMax             [3]float32
	Center                 [3]float32
	InverseGlobalTransform [16]float32

	Submeshes  []Submesh
	Bones      []Bone
	Nodes      []Node
	Animations []Animation
}

// IsAnimated reports whether this model carries a skeleton (at least one
// bone or node), i.e. whether it should be treated as the runtime's
// ANIMATED base type rather than STATIC. The animation library is not
// consulted.
func (m *Model) IsAnimated() bool {
	return len(m.Bones) > 0 || len(m.Nodes) > 0
}
