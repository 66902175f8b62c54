// Package skeleton implements the Skeleton Evaluator: per-channel keyframe
// interpolation and hierarchical transform composition from a model's node
// tree into a fixed-capacity bone palette.
package skeleton

import (
	"log"

	"github.com/kohi3d/kohi/common"
	"github.com/kohi3d/kohi/engine/codec"
)

// PaletteCap is the maximum number of bones a single palette can hold.
// Bone ids at or beyond this are ignored; traversal still continues so
// the rest of the skeleton evaluates normally.
const PaletteCap = 64

// Palette is the per-instance array of final bone matrices handed to the
// renderer's shader storage buffer.
type Palette [PaletteCap][16]float32

// NewPalette returns a palette with every entry set to identity.
//
// Returns:
//   - Palette: an identity-initialized palette
func NewPalette() Palette {
	var p Palette
	for i := range p {
		common.Identity(p[i][:])
	}
	return p
}

// Skeleton precomputes the lookups a model's node tree needs to evaluate
// repeatedly: bone names resolved to their offset matrix and palette id,
// and the model's global inverse transform used as the evaluator's root
// parent.
type Skeleton struct {
	nodes         []codec.Node
	boneByName    map[string]codec.Bone
	globalInverse [16]float32

	loggedOverflow map[uint16]bool
}

// New builds a Skeleton from a decoded model's node and bone tables.
//
// Parameters:
//   - model: the decoded model to evaluate poses for
//
// Returns:
//   - *Skeleton: the newly built evaluator
func New(model *codec.Model) *Skeleton {
	boneByName := make(map[string]codec.Bone, len(model.Bones))
	for _, b := range model.Bones {
		boneByName[b.Name] = b
	}
	return &Skeleton{
		nodes:          model.Nodes,
		boneByName:     boneByName,
		globalInverse:  model.InverseGlobalTransform,
		loggedOverflow: make(map[uint16]bool),
	}
}

// Evaluate walks the node tree for a single point in time, writing each
// referenced bone's final matrix into palette. Root nodes (parent_index ==
// NONE) start composition with the skeleton's global inverse transform as
// their parent world matrix. anim may be nil, in which case every node uses
// its rest-pose local transform.
//
// Parameters:
//   - anim: the animation providing per-channel keys, or nil for rest pose
//   - timeTicks: the current time, in ticks, to sample anim at
//   - palette: destination bone matrices, indexed by bone id
func (s *Skeleton) Evaluate(anim *codec.Animation, timeTicks float32, palette *Palette) {
	var channelByNode map[string]*codec.Channel
	if anim != nil {
		channelByNode = make(map[string]*codec.Channel, len(anim.Channels))
		for i := range anim.Channels {
			channelByNode[anim.Channels[i].NodeName] = &anim.Channels[i]
		}
	}

	for i, n := range s.nodes {
		if n.ParentIndex != codec.NoneIndex {
			continue
		}
		s.composeNode(uint16(i), s.globalInverse[:], channelByNode, timeTicks, palette)
	}
}

func (s *Skeleton) composeNode(nodeIdx uint16, parentWorld []float32, channelByNode map[string]*codec.Channel, timeTicks float32, palette *Palette) {
	n := &s.nodes[nodeIdx]

	local := n.LocalTransform
	if ch, ok := channelByNode[n.Name]; ok {
		pos := interpVec3(ch.Positions, timeTicks, [3]float32{0, 0, 0})
		rot := interpQuat(ch.Rotations, timeTicks)
		scale := interpVec3(ch.Scales, timeTicks, [3]float32{1, 1, 1})
		common.ComposeTRS(local[:], pos, rot, scale)
	}

	var world [16]float32
	common.Mul4(world[:], local[:], parentWorld)

	if bone, ok := s.boneByName[n.Name]; ok {
		if bone.ID >= PaletteCap {
			if !s.loggedOverflow[bone.ID] {
				s.loggedOverflow[bone.ID] = true
				log.Printf("skeleton: bone %q id %d exceeds palette capacity %d, ignoring", bone.Name, bone.ID, PaletteCap)
			}
		} else {
			common.Mul4(palette[bone.ID][:], bone.OffsetMatrix[:], world[:])
		}
	}

	for _, childIdx := range n.Children {
		s.composeNode(childIdx, world[:], channelByNode, timeTicks, palette)
	}
}

func findKeyIndex[K any](keys []K, t float32, timeOf func(K) float32) int {
	i := 0
	for i < len(keys)-1 && timeOf(keys[i+1]) <= t {
		i++
	}
	return i
}

func interpVec3(keys []codec.Vec3Key, t float32, defaultValue [3]float32) [3]float32 {
	if len(keys) == 0 {
		return defaultValue
	}
	i := findKeyIndex(keys, t, func(k codec.Vec3Key) float32 { return k.Time })
	if i == len(keys)-1 || t <= keys[i].Time {
		return keys[i].Value
	}
	a, b := keys[i], keys[i+1]
	f := (t - a.Time) / (b.Time - a.Time)
	return common.Vec3Lerp(a.Value, b.Value, f)
}

func interpQuat(keys []codec.QuatKey, t float32) [4]float32 {
	if len(keys) == 0 {
		return [4]float32{0, 0, 0, 1}
	}
	i := findKeyIndex(keys, t, func(k codec.QuatKey) float32 { return k.Time })
	if i == len(keys)-1 {
		return keys[i].Value
	}
	a, b := keys[i], keys[i+1]
	f := (t - a.Time) / (b.Time - a.Time)
	return common.QuatSlerp(a.Value, b.Value, f)
}
