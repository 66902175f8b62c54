package system

import (
	"fmt"
	"testing"
	"time"

	"github.com/kohi3d/kohi/common"
	"github.com/kohi3d/kohi/engine/codec"
	"github.com/kohi3d/kohi/engine/handle"
	"github.com/kohi3d/kohi/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCubeBytes(t *testing.T) []byte {
	t.Helper()
	m := &codec.Model{
		Submeshes: []codec.Submesh{
			{Name: "cube", MaterialName: "mat_cube", MeshType: codec.MeshTypeStatic, VertexCount: 24, IndexCount: 36,
				VertexData: make([]byte, 48*24), IndexData: make([]byte, 4*36)},
		},
	}
	out, err := codec.Serialize(m)
	require.NoError(t, err)
	return out
}

func skinnedBytes(t *testing.T) []byte {
	t.Helper()
	var identity [16]float32
	common.Identity(identity[:])

	m := &codec.Model{
		InverseGlobalTransform: identity,
		Submeshes: []codec.Submesh{
			{Name: "body", MeshType: codec.MeshTypeSkinned, VertexCount: 4, IndexCount: 6,
				VertexData: make([]byte, 80*4), IndexData: make([]byte, 4*6)},
		},
		Bones: []codec.Bone{{Name: "root", ID: 0, OffsetMatrix: identity}},
		Nodes: []codec.Node{{Name: "root", LocalTransform: identity, ParentIndex: codec.NoneIndex}},
		Animations: []codec.Animation{
			{Name: "idle", DurationTicks: 60, TicksPerSecond: 30, Channels: []codec.Channel{
				{NodeName: "root",
					Positions: []codec.Vec3Key{{Time: 0, Value: [3]float32{0, 0, 0}}, {Time: 60, Value: [3]float32{1, 0, 0}}},
					Rotations: []codec.QuatKey{{Time: 0, Value: [4]float32{0, 0, 0, 1}}},
					Scales:    []codec.Vec3Key{{Time: 0, Value: [3]float32{1, 1, 1}}},
				},
			}},
		},
	}
	out, err := codec.Serialize(m)
	require.NoError(t, err)
	return out
}

func newTestSystem(t *testing.T, byName map[string][]byte) *System {
	t.Helper()
	loader := func(assetName, packageName string) ([]byte, error) {
		b, ok := byName[assetName]
		if !ok {
			return nil, fmt.Errorf("no such asset %q", assetName)
		}
		return b, nil
	}
	s, err := New(renderer.NewMemory(), loader, 8, WithQueueCapacity(16))
	require.NoError(t, err)
	return s
}

func waitFor(t *testing.T, s *System, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, s.Update(0))
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestSystem_AcquireLoadsStaticBaseAndFiresCallback(t *testing.T) {
	s := newTestSystem(t, map[string][]byte{"cube": staticCubeBytes(t)})

	var gotBaseID, gotInstanceID uint16
	called := false
	baseID, instanceID := s.Acquire("cube", "pkg", func(b, i uint16) {
		called = true
		gotBaseID, gotInstanceID = b, i
	})

	waitFor(t, s, func() bool { return called })

	assert.Equal(t, baseID, gotBaseID)
	assert.Equal(t, instanceID, gotInstanceID)

	state, err := s.BaseState(baseID)
	require.NoError(t, err)
	assert.Equal(t, handle.BaseLoaded, state)

	count, err := s.SubmeshCount(baseID)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), count)

	gen, err := s.Generation(baseID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), gen)
}

func TestSystem_AcquireSecondInstanceOnLoadedBaseFiresSynchronously(t *testing.T) {
	s := newTestSystem(t, map[string][]byte{"cube": staticCubeBytes(t)})

	baseID, _ := s.Acquire("cube", "pkg", nil)
	waitFor(t, s, func() bool {
		state, _ := s.BaseState(baseID)
		return state == handle.BaseLoaded
	})

	called := false
	b2, _ := s.Acquire("cube", "pkg", func(b, i uint16) { called = true })
	assert.True(t, called, "onLoaded must fire immediately for an already-LOADED base")
	assert.Equal(t, baseID, b2)
}

func TestSystem_AcquireFailsInvokesCallbackWithInvalidSentinel(t *testing.T) {
	s := newTestSystem(t, map[string][]byte{})

	var gotBaseID, gotInstanceID uint16
	called := false
	s.Acquire("missing", "pkg", func(b, i uint16) {
		called = true
		gotBaseID, gotInstanceID = b, i
	})

	waitFor(t, s, func() bool { return called })
	assert.Equal(t, handle.Invalid, gotBaseID)
	assert.Equal(t, handle.Invalid, gotInstanceID)
}

func TestSystem_AnimatedInstanceEvaluatesPoseEachUpdate(t *testing.T) {
	s := newTestSystem(t, map[string][]byte{"hero": skinnedBytes(t)})

	baseID, instanceID := s.Acquire("hero", "pkg", nil)
	waitFor(t, s, func() bool {
		state, _ := s.BaseState(baseID)
		return state == handle.BaseLoaded
	})

	require.NoError(t, s.SetAnimation(baseID, instanceID, "idle"))
	require.NoError(t, s.Play(baseID, instanceID))

	names, err := s.QueryAnimations(baseID)
	require.NoError(t, err)
	assert.Equal(t, []string{"idle"}, names)

	slot, err := s.AnimationSlotID(baseID, instanceID)
	require.NoError(t, err)
	assert.Less(t, slot, uint32(8))

	require.NoError(t, s.Update(1.0)) // 1s * 30 tps = 30 ticks, half the 60-tick duration

	// The root position key runs 0 -> 1 on X over 60 ticks, so at 30 ticks
	// the root bone's palette translation is 0.5.
	inst := s.bases[baseID].instances[instanceID]
	assert.InDelta(t, float32(0.5), inst.palette[0][12], 1e-5)
}

func TestSystem_ReleaseLastInstanceFreesBaseAndAllowsFreshAcquire(t *testing.T) {
	s := newTestSystem(t, map[string][]byte{"cube": staticCubeBytes(t)})

	baseID, instanceID := s.Acquire("cube", "pkg", nil)
	waitFor(t, s, func() bool {
		state, _ := s.BaseState(baseID)
		return state == handle.BaseLoaded
	})

	require.NoError(t, s.Release(baseID, instanceID))

	newBaseID, _ := s.Acquire("cube", "pkg", nil)
	waitFor(t, s, func() bool {
		state, _ := s.BaseState(newBaseID)
		return state == handle.BaseLoaded
	})

	state, err := s.BaseState(newBaseID)
	require.NoError(t, err)
	assert.Equal(t, handle.BaseLoaded, state)
}

func TestSystem_OperationsOnUnloadedBaseReturnStateViolation(t *testing.T) {
	s := newTestSystem(t, map[string][]byte{"cube": staticCubeBytes(t)})

	baseID, instanceID := s.Acquire("cube", "pkg", nil)
	// Deliberately do not wait for load to complete.
	_, err := s.SubmeshCount(baseID)
	assert.Error(t, err)

	err = s.Play(baseID, instanceID)
	assert.Error(t, err)
}
