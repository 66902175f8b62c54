package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PanicsOnZeroArgs(t *testing.T) {
	assert.Panics(t, func() { New(0, 4) })
	assert.Panics(t, func() { New(16, 0) })
}

func TestAllocator_AllocateFillsCapacity(t *testing.T) {
	a := New(4, 3)

	seen := map[uint32]bool{}
	for i := 0; i < 3; i++ {
		_, idx, err := a.Allocate()
		require.NoError(t, err)
		seen[idx] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, uint32(0), a.ElementsFree())

	_, _, err := a.Allocate()
	assert.Error(t, err)
}

func TestAllocator_FreeReturnsElementToList(t *testing.T) {
	a := New(8, 4)

	_, idx0, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), a.ElementsFree())

	a.Free(idx0)
	assert.Equal(t, uint32(4), a.ElementsFree())

	_, idx1, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, idx0, idx1)
}

func TestAllocator_FreeMaintainsOffsetAscendingOrder(t *testing.T) {
	a := New(8, 4)

	idxs := make([]uint32, 4)
	for i := range idxs {
		_, idx, err := a.Allocate()
		require.NoError(t, err)
		idxs[i] = idx
	}

	// Free out of order; reallocating must hand back slots in ascending
	// offset order regardless of free order.
	a.Free(idxs[2])
	a.Free(idxs[0])
	a.Free(idxs[3])
	a.Free(idxs[1])

	var reacquired []uint32
	for i := 0; i < 4; i++ {
		_, idx, err := a.Allocate()
		require.NoError(t, err)
		reacquired = append(reacquired, idx)
	}

	assert.Equal(t, []uint32{idxs[0], idxs[1], idxs[2], idxs[3]}, reacquired)
}

func TestAllocator_FreePanicsOnDoubleFreeOrBadIndex(t *testing.T) {
	a := New(4, 2)
	_, idx, err := a.Allocate()
	require.NoError(t, err)

	a.Free(idx)
	assert.Panics(t, func() { a.Free(idx) })
	assert.Panics(t, func() { a.Free(99) })
}

func TestAllocator_ElementAndBackingViewSameMemory(t *testing.T) {
	a := New(4, 2)
	elem, idx, err := a.Allocate()
	require.NoError(t, err)

	elem[0] = 0xAB
	assert.Equal(t, byte(0xAB), a.Element(idx)[0])

	off := uint64(idx) * a.ElementSize()
	assert.Equal(t, byte(0xAB), a.Backing()[off])
}

func TestAllocator_SpaceFreeTracksElementSize(t *testing.T) {
	a := New(16, 5)
	assert.Equal(t, uint64(16*5), a.SpaceFree())

	_, _, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint64(16*4), a.SpaceFree())
}

func TestAllocator_CapacityAndElementSizeAccessors(t *testing.T) {
	a := New(64, 10)
	assert.Equal(t, uint32(10), a.Capacity())
	assert.Equal(t, uint64(64), a.ElementSize())
}
