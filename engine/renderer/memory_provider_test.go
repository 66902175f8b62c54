package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CreateAllocateFreeRoundTrip(t *testing.T) {
	p := NewMemory()

	h, err := p.CreateRenderbuffer("vertices", BufferTypeVertex, 1024, 0)
	require.NoError(t, err)

	off0, err := p.Allocate(h, 256)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off0)

	off1, err := p.Allocate(h, 256)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), off1)

	require.NoError(t, p.Free(h, 256, off0))

	off2, err := p.Allocate(h, 256)
	require.NoError(t, err)
	assert.Equal(t, off0, off2, "freed range should be reused by a subsequent allocate")
}

func TestMemory_AllocateFailsWhenExhausted(t *testing.T) {
	p := NewMemory()
	h, _ := p.CreateRenderbuffer("small", BufferTypeIndex, 16, 0)

	_, err := p.Allocate(h, 16)
	require.NoError(t, err)

	_, err = p.Allocate(h, 1)
	assert.Error(t, err)
}

func TestMemory_FreeCoalescesAdjacentRanges(t *testing.T) {
	p := NewMemory()
	h, _ := p.CreateRenderbuffer("buf", BufferTypeStorage, 64, 0)

	offA, _ := p.Allocate(h, 16)
	offB, _ := p.Allocate(h, 16)
	offC, _ := p.Allocate(h, 16)

	require.NoError(t, p.Free(h, 16, offA))
	require.NoError(t, p.Free(h, 16, offC))
	require.NoError(t, p.Free(h, 16, offB))

	// All 48 bytes should now be free and contiguous, leaving room for a
	// single 48-byte allocation.
	off, err := p.Allocate(h, 48)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off)
}

func TestMemory_LoadRangeAndGetMappedMemory(t *testing.T) {
	p := NewMemory()
	h, err := p.CreateRenderbuffer("mapped", BufferTypeStorage, 8, FlagAutoMapped)
	require.NoError(t, err)

	require.NoError(t, p.LoadRange(h, 2, 4, []byte{1, 2, 3, 4}, false))

	mem, err := p.GetMappedMemory(h)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 1, 2, 3, 4, 0, 0}, mem)
}

func TestMemory_GetMappedMemoryFailsWithoutFlag(t *testing.T) {
	p := NewMemory()
	h, _ := p.CreateRenderbuffer("unmapped", BufferTypeVertex, 8, 0)

	_, err := p.GetMappedMemory(h)
	assert.Error(t, err)
}

func TestMemory_OperationsOnDestroyedHandleFail(t *testing.T) {
	p := NewMemory()
	h, _ := p.CreateRenderbuffer("buf", BufferTypeVertex, 8, 0)

	require.NoError(t, p.Destroy(h))

	_, err := p.Allocate(h, 1)
	assert.Error(t, err)

	err = p.Free(h, 1, 0)
	assert.Error(t, err)

	err = p.LoadRange(h, 0, 1, []byte{0}, false)
	assert.Error(t, err)
}

func TestMemory_LoadRangeRejectsSizeMismatchAndOverflow(t *testing.T) {
	p := NewMemory()
	h, _ := p.CreateRenderbuffer("buf", BufferTypeVertex, 8, 0)

	assert.Error(t, p.LoadRange(h, 0, 4, []byte{1, 2, 3}, false))
	assert.Error(t, p.LoadRange(h, 6, 4, []byte{1, 2, 3, 4}, false))
}
