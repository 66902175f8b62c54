package renderer

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kohi3d/kohi/engine/kerr"
)

type wgpuBuffer struct {
	name    string
	bufType BufferType
	size    uint64
	flags   Flags
	buffer  *wgpu.Buffer
	// mirror holds a CPU-side copy of an auto-mapped buffer's contents.
	// wgpu has no notion of a persistently-mapped pointer outside of
	// MappedAtCreation/explicit MapAsync+Poll cycles, neither of which fit
	// the core's synchronous single-threaded frame model; the mirror plus
	// FlushMapped stands in for "host-visible pointer, stable for the
	// buffer's lifetime" from the consumer's point of view.
	mirror []byte
	free   []freeRange
}

// WGPU is the production Provider backend, built on cogentcore/webgpu. It
// expects a device and queue already configured by the application's
// surface/window bootstrap (out of this package's scope); this package
// only owns the buffers it creates on top of them.
type WGPU struct {
	mu      *sync.Mutex
	device  *wgpu.Device
	queue   *wgpu.Queue
	buffers map[Handle]*wgpuBuffer
	next    uint32
}

var _ Provider = (*WGPU)(nil)

// NewWGPU creates a Provider backed by an existing wgpu device and queue.
//
// Parameters:
//   - device: the wgpu device to allocate buffers from
//   - queue: the wgpu queue to submit uploads to
//
// Returns:
//   - *WGPU: the newly created provider
func NewWGPU(device *wgpu.Device, queue *wgpu.Queue) *WGPU {
	return &WGPU{
		mu:      &sync.Mutex{},
		device:  device,
		queue:   queue,
		buffers: make(map[Handle]*wgpuBuffer),
	}
}

func bufferUsage(bufType BufferType) wgpu.BufferUsage {
	switch bufType {
	case BufferTypeVertex:
		return wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	case BufferTypeIndex:
		return wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	default:
		return wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	}
}

func (w *WGPU) CreateRenderbuffer(name string, bufType BufferType, size uint64, flags Flags) (Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	created, err := w.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  size,
		Usage: bufferUsage(bufType),
	})
	if err != nil {
		return Invalid, fmt.Errorf("renderer: create buffer %q: %w", name, err)
	}

	w.next++
	h := Handle(w.next)
	buf := &wgpuBuffer{
		name:    name,
		bufType: bufType,
		size:    size,
		flags:   flags,
		buffer:  created,
		free:    []freeRange{{offset: 0, size: size}},
	}
	if flags&FlagAutoMapped != 0 {
		buf.mirror = make([]byte, size)
	}
	w.buffers[h] = buf
	return h, nil
}

func (w *WGPU) Allocate(h Handle, size uint64) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.buffers[h]
	if !ok {
		return 0, errInvalidHandle(h)
	}
	for i, r := range buf.free {
		if r.size < size {
			continue
		}
		offset := r.offset
		if r.size == size {
			buf.free = append(buf.free[:i], buf.free[i+1:]...)
		} else {
			buf.free[i] = freeRange{offset: r.offset + size, size: r.size - size}
		}
		return offset, nil
	}
	return 0, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("renderer: buffer %q has insufficient space for %d bytes", buf.name, size))
}

func (w *WGPU) Free(h Handle, size, offset uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.buffers[h]
	if !ok {
		return errInvalidHandle(h)
	}
	if offset+size > buf.size {
		return kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("renderer: free range [%d,%d) exceeds buffer %q size %d", offset, offset+size, buf.name, buf.size))
	}

	insertAt := len(buf.free)
	for i, r := range buf.free {
		if offset < r.offset {
			insertAt = i
			break
		}
	}
	buf.free = append(buf.free, freeRange{})
	copy(buf.free[insertAt+1:], buf.free[insertAt:])
	buf.free[insertAt] = freeRange{offset: offset, size: size}
	buf.free = coalesce(buf.free)
	return nil
}

func (w *WGPU) LoadRange(h Handle, offset, size uint64, data []byte, deferred bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.buffers[h]
	if !ok {
		return errInvalidHandle(h)
	}
	if uint64(len(data)) != size {
		return kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("renderer: load size %d does not match len(data) %d", size, len(data)))
	}
	if offset+size > buf.size {
		return kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("renderer: load range [%d,%d) exceeds buffer %q size %d", offset, offset+size, buf.name, buf.size))
	}

	if buf.mirror != nil {
		copy(buf.mirror[offset:offset+size], data)
	}

	// deferred batching is left to the driver's own command queue; wgpu's
	// WriteBuffer call is already safely reorderable with respect to other
	// queue submissions within a frame.
	w.queue.WriteBuffer(buf.buffer, offset, data)
	return nil
}

func (w *WGPU) GetMappedMemory(h Handle) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.buffers[h]
	if !ok {
		return nil, errInvalidHandle(h)
	}
	if buf.mirror == nil {
		return nil, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("renderer: buffer %q was not created with FlagAutoMapped", buf.name))
	}
	return buf.mirror, nil
}

// FlushMapped uploads the full contents of an auto-mapped buffer's CPU
// mirror to the GPU. Callers that write through the slice returned by
// GetMappedMemory must call FlushMapped once per frame, inside the
// frame_prepare/frame_submit window, for the write to become visible to
// the GPU — the Frame Publisher is this package's sole intended caller.
//
// Parameters:
//   - h: the buffer to flush
//
// Returns:
//   - error: non-nil if h is invalid or was not created with FlagAutoMapped
func (w *WGPU) FlushMapped(h Handle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.buffers[h]
	if !ok {
		return errInvalidHandle(h)
	}
	if buf.mirror == nil {
		return kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("renderer: buffer %q was not created with FlagAutoMapped", buf.name))
	}
	w.queue.WriteBuffer(buf.buffer, 0, buf.mirror)
	return nil
}

func (w *WGPU) Destroy(h Handle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.buffers[h]
	if !ok {
		return errInvalidHandle(h)
	}
	buf.buffer.Release()
	delete(w.buffers, h)
	return nil
}
