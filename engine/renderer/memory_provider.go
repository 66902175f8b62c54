package renderer

import (
	"fmt"
	"sync"

	"github.com/kohi3d/kohi/engine/kerr"
)

type freeRange struct {
	offset uint64
	size   uint64
}

type memBuffer struct {
	name    string
	bufType BufferType
	size    uint64
	flags   Flags
	data    []byte
	free    []freeRange // ascending by offset
}

// Memory is a pure in-memory, stdlib-only implementation of Provider. It
// reproduces the sub-allocation contract exactly (first-fit, offset-
// ascending free list, adjacent-range coalescing on free) without touching
// any GPU backend — used in tests and for headless operation.
type Memory struct {
	mu      sync.Mutex
	buffers map[Handle]*memBuffer
	next    uint32
}

var _ Provider = (*Memory)(nil)

// NewMemory creates an empty in-memory provider.
//
// Returns:
//   - *Memory: the newly created provider
func NewMemory() *Memory {
	return &Memory{buffers: make(map[Handle]*memBuffer)}
}

func (m *Memory) CreateRenderbuffer(name string, bufType BufferType, size uint64, flags Flags) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	h := Handle(m.next)
	m.buffers[h] = &memBuffer{
		name:    name,
		bufType: bufType,
		size:    size,
		flags:   flags,
		data:    make([]byte, size),
		free:    []freeRange{{offset: 0, size: size}},
	}
	return h, nil
}

func (m *Memory) Allocate(h Handle, size uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.buffers[h]
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

func (m *Memory) Free(h Handle, size, offset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.buffers[h]
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

func coalesce(ranges []freeRange) []freeRange {
	if len(ranges) < 2 {
		return ranges
	}
	out := ranges[:1]
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if last.offset+last.size == r.offset {
			last.size += r.size
		} else {
			out = append(out, r)
		}
	}
	return out
}

func (m *Memory) LoadRange(h Handle, offset, size uint64, data []byte, deferred bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.buffers[h]
	if !ok {
		return errInvalidHandle(h)
	}
	if uint64(len(data)) != size {
		return kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("renderer: load size %d does not match len(data) %d", size, len(data)))
	}
	if offset+size > buf.size {
		return kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("renderer: load range [%d,%d) exceeds buffer %q size %d", offset, offset+size, buf.name, buf.size))
	}
	copy(buf.data[offset:offset+size], data)
	return nil
}

func (m *Memory) GetMappedMemory(h Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.buffers[h]
	if !ok {
		return nil, errInvalidHandle(h)
	}
	if buf.flags&FlagAutoMapped == 0 {
		return nil, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("renderer: buffer %q was not created with FlagAutoMapped", buf.name))
	}
	return buf.data, nil
}

func (m *Memory) Destroy(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.buffers[h]; !ok {
		return errInvalidHandle(h)
	}
	delete(m.buffers, h)
	return nil
}
