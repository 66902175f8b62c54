package skeleton

import (
	"testing"

	"github.com/kohi3d/kohi/common"
	"github.com/kohi3d/kohi/engine/codec"
	"github.com/stretchr/testify/assert"
)

func identityModel() *codec.Model {
	var globalInverse [16]float32
	common.Identity(globalInverse[:])

	var rootLocal, childLocal [16]float32
	common.Identity(rootLocal[:])
	common.Identity(childLocal[:])
	childLocal[12] = 2 // translate child +2 on X in rest pose

	return &codec.Model{
		InverseGlobalTransform: globalInverse,
		Nodes: []codec.Node{
			{Name: "root", LocalTransform: rootLocal, ParentIndex: codec.NoneIndex, Children: []uint16{1}},
			{Name: "child", LocalTransform: childLocal, ParentIndex: 0},
		},
		Bones: []codec.Bone{
			{Name: "child", ID: 0}, // identity offset matrix (zero value is NOT identity, set below)
		},
	}
}

func TestSkeleton_RestPoseUsesLocalTransformWhenNoAnimation(t *testing.T) {
	m := identityModel()
	common.Identity(m.Bones[0].OffsetMatrix[:])

	s := New(m)
	palette := NewPalette()
	s.Evaluate(nil, 0, &palette)

	// world(child) = childLocal * rootWorld(=globalInverse=identity) = childLocal
	// palette[0] = offset(identity) * world = childLocal
	assert.Equal(t, float32(2), palette[0][12])
}

func TestSkeleton_ChannelOverridesRestPoseWhenPresent(t *testing.T) {
	m := identityModel()
	common.Identity(m.Bones[0].OffsetMatrix[:])

	anim := &codec.Animation{
		Name:           "walk",
		DurationTicks:  10,
		TicksPerSecond: 30,
		Channels: []codec.Channel{
			{
				NodeName:  "child",
				Positions: []codec.Vec3Key{{Time: 0, Value: [3]float32{0, 0, 0}}, {Time: 10, Value: [3]float32{10, 0, 0}}},
				Rotations: []codec.QuatKey{{Time: 0, Value: [4]float32{0, 0, 0, 1}}},
				Scales:    []codec.Vec3Key{{Time: 0, Value: [3]float32{1, 1, 1}}},
			},
		},
	}

	s := New(m)
	palette := NewPalette()
	s.Evaluate(anim, 5, &palette)

	assert.InDelta(t, float32(5), palette[0][12], 1e-5)
}

func TestSkeleton_NodeWithoutBoneStillPropagatesToChildren(t *testing.T) {
	var globalInverse, parentLocal, childLocal [16]float32
	common.Identity(globalInverse[:])
	common.Identity(parentLocal[:])
	parentLocal[12] = 5
	common.Identity(childLocal[:])
	childLocal[13] = 1

	var offset [16]float32
	common.Identity(offset[:])

	m := &codec.Model{
		InverseGlobalTransform: globalInverse,
		Nodes: []codec.Node{
			{Name: "unboned_parent", LocalTransform: parentLocal, ParentIndex: codec.NoneIndex, Children: []uint16{1}},
			{Name: "boned_child", LocalTransform: childLocal, ParentIndex: 0},
		},
		Bones: []codec.Bone{{Name: "boned_child", ID: 3, OffsetMatrix: offset}},
	}

	s := New(m)
	palette := NewPalette()
	s.Evaluate(nil, 0, &palette)

	assert.Equal(t, float32(5), palette[3][12], "parent's world translation must reach the child")
	assert.Equal(t, float32(1), palette[3][13])
}

func TestSkeleton_BoneIDAtOrOverCapIsIgnoredButTraversalContinues(t *testing.T) {
	var globalInverse, rootLocal, siblingLocal [16]float32
	common.Identity(globalInverse[:])
	common.Identity(rootLocal[:])
	common.Identity(siblingLocal[:])
	siblingLocal[12] = 7

	var offset [16]float32
	common.Identity(offset[:])

	m := &codec.Model{
		InverseGlobalTransform: globalInverse,
		Nodes: []codec.Node{
			{Name: "overflow_bone", LocalTransform: rootLocal, ParentIndex: codec.NoneIndex, Children: []uint16{1}},
			{Name: "normal_bone", LocalTransform: siblingLocal, ParentIndex: 0},
		},
		Bones: []codec.Bone{
			{Name: "overflow_bone", ID: PaletteCap, OffsetMatrix: offset},
			{Name: "normal_bone", ID: 2, OffsetMatrix: offset},
		},
	}

	s := New(m)
	palette := NewPalette()
	assert.NotPanics(t, func() { s.Evaluate(nil, 0, &palette) })

	assert.Equal(t, float32(7), palette[2][12], "traversal must continue past the overflowed bone")
}

func TestInterpVec3_SingleKeyReturnsItsValue(t *testing.T) {
	keys := []codec.Vec3Key{{Time: 3, Value: [3]float32{1, 2, 3}}}
	got := interpVec3(keys, 100, [3]float32{})
	assert.Equal(t, [3]float32{1, 2, 3}, got)
}

func TestInterpVec3_NoKeysReturnsDefault(t *testing.T) {
	got := interpVec3(nil, 5, [3]float32{9, 9, 9})
	assert.Equal(t, [3]float32{9, 9, 9}, got)
}

func TestInterpVec3_TimeBeforeFirstKeyClampsToFirst(t *testing.T) {
	keys := []codec.Vec3Key{{Time: 5, Value: [3]float32{1, 1, 1}}, {Time: 10, Value: [3]float32{2, 2, 2}}}
	got := interpVec3(keys, 0, [3]float32{})
	assert.Equal(t, [3]float32{1, 1, 1}, got)
}

func TestInterpVec3_TimeAfterLastKeyClampsToLast(t *testing.T) {
	keys := []codec.Vec3Key{{Time: 0, Value: [3]float32{1, 1, 1}}, {Time: 10, Value: [3]float32{2, 2, 2}}}
	got := interpVec3(keys, 999, [3]float32{})
	assert.Equal(t, [3]float32{2, 2, 2}, got)
}

func TestInterpVec3_MidpointLerpsLinearly(t *testing.T) {
	keys := []codec.Vec3Key{{Time: 0, Value: [3]float32{0, 0, 0}}, {Time: 10, Value: [3]float32{10, 20, 30}}}
	got := interpVec3(keys, 5, [3]float32{})
	assert.InDelta(t, float32(5), got[0], 1e-5)
	assert.InDelta(t, float32(10), got[1], 1e-5)
	assert.InDelta(t, float32(15), got[2], 1e-5)
}

func TestInterpQuat_NoKeysReturnsIdentity(t *testing.T) {
	got := interpQuat(nil, 5)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, got)
}

func TestInterpQuat_SingleKeyReturnsItsValue(t *testing.T) {
	keys := []codec.QuatKey{{Time: 0, Value: [4]float32{0, 1, 0, 0}}}
	got := interpQuat(keys, 50)
	assert.Equal(t, [4]float32{0, 1, 0, 0}, got)
}

func TestNewPalette_EveryEntryIsIdentity(t *testing.T) {
	p := NewPalette()
	var identity [16]float32
	common.Identity(identity[:])
	for i := range p {
		assert.Equal(t, identity, p[i])
	}
}
