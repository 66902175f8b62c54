// Package publisher implements the Frame Publisher: once per frame, after
// the Animator has updated every instance's bone palette, it bulk-copies
// the pool allocator's backing array into a renderer-mapped storage
// buffer the shader indexes by instance.
package publisher

import (
	"fmt"

	"github.com/kohi3d/kohi/engine/kerr"
	"github.com/kohi3d/kohi/engine/pool"
	"github.com/kohi3d/kohi/engine/renderer"
)

// Publisher owns the renderer-side storage buffer backing an instance
// pool's shader-visible palette data.
type Publisher struct {
	provider renderer.Provider
	buffer   renderer.Handle
	wgpu     *renderer.WGPU // non-nil only when provider is a WGPU backend
	capacity uint64
}

// New creates a storage renderbuffer sized to hold capacity instances'
// worth of pool elements and wraps it for per-frame publishing.
//
// Parameters:
//   - provider: the renderer surface to allocate the storage buffer on
//   - name: the renderbuffer's debug name
//   - elementSize: the byte size of one pool element (one instance's
//     bone palette)
//   - maxInstanceCount: the pool's fixed capacity
//
// Returns:
//   - *Publisher: the newly created publisher
//   - error: non-nil if the renderer surface failed to create the buffer
func New(provider renderer.Provider, name string, elementSize uint64, maxInstanceCount uint32) (*Publisher, error) {
	capacity := elementSize * uint64(maxInstanceCount)
	h, err := provider.CreateRenderbuffer(name, renderer.BufferTypeStorage, capacity, renderer.FlagAutoMapped)
	if err != nil {
		return nil, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("publisher: create storage buffer %q: %v", name, err))
	}

	w, _ := provider.(*renderer.WGPU)
	return &Publisher{provider: provider, buffer: h, wgpu: w, capacity: capacity}, nil
}

// Publish bulk-copies allocator's entire backing array into the mapped
// storage buffer. The copy is a single memcpy-equivalent operation: it
// does not distinguish live elements from free ones, matching the pool's
// invariant that a freed slot's contents are inert and a newly-allocated
// slot defaults to an identity palette.
//
// Parameters:
//   - allocator: the pool allocator owning the per-instance palette data
//
// Returns:
//   - error: non-nil if the backing array and mapped buffer sizes
//     disagree, or if the renderer surface's copy/flush failed
func (p *Publisher) Publish(allocator *pool.Allocator) error {
	backing := allocator.Backing()
	if uint64(len(backing)) != p.capacity {
		return kerr.Wrap(kerr.ErrInvalidAsset, fmt.Sprintf("publisher: pool backing size %d does not match buffer capacity %d", len(backing), p.capacity))
	}

	mapped, err := p.provider.GetMappedMemory(p.buffer)
	if err != nil {
		return kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("publisher: get mapped memory: %v", err))
	}
	copy(mapped, backing)

	if p.wgpu != nil {
		if err := p.wgpu.FlushMapped(p.buffer); err != nil {
			return kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("publisher: flush mapped memory: %v", err))
		}
	}
	return nil
}

// Handle returns the renderbuffer handle backing this publisher, for the
// draw stage to bind as a shader storage buffer.
func (p *Publisher) Handle() renderer.Handle { return p.buffer }

// Destroy releases the underlying storage buffer.
func (p *Publisher) Destroy() error { return p.provider.Destroy(p.buffer) }
