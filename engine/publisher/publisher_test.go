package publisher

import (
	"testing"

	"github.com/kohi3d/kohi/engine/pool"
	"github.com/kohi3d/kohi/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesBufferSizedToCapacity(t *testing.T) {
	p := renderer.NewMemory()
	pub, err := New(p, "palettes", 64, 4)
	require.NoError(t, err)

	mem, err := p.GetMappedMemory(pub.Handle())
	require.NoError(t, err)
	assert.Len(t, mem, 64*4)
}

func TestPublish_CopiesBackingArrayIntoMappedBuffer(t *testing.T) {
	provider := renderer.NewMemory()
	const elementSize = 16
	const capacity = 3
	alloc := pool.New(elementSize, capacity)

	pub, err := New(provider, "palettes", elementSize, capacity)
	require.NoError(t, err)

	data, idx, err := alloc.Allocate()
	require.NoError(t, err)
	for i := range data {
		data[i] = byte(idx + 1)
	}

	require.NoError(t, pub.Publish(alloc))

	mapped, err := provider.GetMappedMemory(pub.Handle())
	require.NoError(t, err)
	assert.Equal(t, alloc.Backing(), mapped)
}

func TestPublish_FreedSlotsStillCopiedAsInertBytes(t *testing.T) {
	provider := renderer.NewMemory()
	const elementSize = 8
	const capacity = 2
	alloc := pool.New(elementSize, capacity)

	pub, err := New(provider, "palettes", elementSize, capacity)
	require.NoError(t, err)

	_, idx, err := alloc.Allocate()
	require.NoError(t, err)
	alloc.Free(idx)

	require.NoError(t, pub.Publish(alloc))

	mapped, err := provider.GetMappedMemory(pub.Handle())
	require.NoError(t, err)
	assert.Equal(t, alloc.Backing(), mapped, "publish must copy the full backing array regardless of free/live state")
}

func TestPublish_FailsWhenBackingSizeDoesNotMatchBufferCapacity(t *testing.T) {
	provider := renderer.NewMemory()
	pub, err := New(provider, "palettes", 64, 4)
	require.NoError(t, err)

	mismatched := pool.New(64, 2) // capacity 2, not 4
	err = pub.Publish(mismatched)
	assert.Error(t, err)
}

func TestDestroy_ReleasesUnderlyingBuffer(t *testing.T) {
	provider := renderer.NewMemory()
	pub, err := New(provider, "palettes", 16, 1)
	require.NoError(t, err)

	require.NoError(t, pub.Destroy())

	_, err = provider.GetMappedMemory(pub.Handle())
	assert.Error(t, err)
}
