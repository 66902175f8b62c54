// Package renderer specifies the narrow surface the model runtime consumes
// from a renderer backend: creating global vertex/index/storage buffers,
// sub-allocating ranges from them, uploading bytes, and exposing a
// host-visible pointer for buffers that are mapped for direct CPU writes.
//
// The model runtime is the consumer of this contract, not its owner —
// window/surface bootstrap, pipelines, shaders, and draw submission live
// outside this package's scope. Two implementations are provided: Memory,
// a pure in-memory reference used in tests and headless operation, and
// WGPU, a production backend built on cogentcore/webgpu.
package renderer

import "github.com/kohi3d/kohi/engine/kerr"

// BufferType identifies the usage a renderbuffer was created for.
type BufferType int

const (
	BufferTypeVertex BufferType = iota
	BufferTypeIndex
	BufferTypeStorage
)

// Flags configure renderbuffer creation.
type Flags uint32

const (
	// FlagAutoMapped requests a buffer whose memory is host-visible for the
	// buffer's entire lifetime, retrievable via GetMappedMemory.
	FlagAutoMapped Flags = 1 << iota
)

// Handle identifies a renderbuffer. The zero value, Invalid, never names a
// live buffer.
type Handle uint32

// Invalid is the sentinel handle returned on a failed create.
const Invalid Handle = 0

// Provider is the renderer-surface contract the model runtime consumes.
// Implementations need not be safe for concurrent use from multiple
// goroutines; the core's concurrency model confines all renderer
// interaction to the main thread between frame_prepare and frame_submit.
type Provider interface {
	// CreateRenderbuffer creates a named buffer of the given type, size, and
	// flags, returning a handle to it.
	//
	// Parameters:
	//   - name: a label for diagnostics
	//   - bufType: the buffer's usage class
	//   - size: the buffer's total byte capacity
	//   - flags: creation flags, e.g. FlagAutoMapped
	//
	// Returns:
	//   - Handle: the new buffer's handle
	//   - error: non-nil if the buffer could not be created
	CreateRenderbuffer(name string, bufType BufferType, size uint64, flags Flags) (Handle, error)

	// Allocate sub-allocates a contiguous range of size bytes from h.
	//
	// Parameters:
	//   - h: the buffer to allocate from
	//   - size: the number of bytes to allocate
	//
	// Returns:
	//   - uint64: the byte offset of the allocated range
	//   - error: non-nil if h is invalid or has insufficient free space
	Allocate(h Handle, size uint64) (uint64, error)

	// Free returns the range [offset, offset+size) to h's free pool. size
	// and offset must exactly match a previous Allocate call's result.
	//
	// Parameters:
	//   - h: the buffer the range belongs to
	//   - size: the range's size, as originally allocated
	//   - offset: the range's offset, as originally allocated
	//
	// Returns:
	//   - error: non-nil if h is invalid or the range extends past the end
	//     of the buffer; a size or offset that does not match an earlier
	//     Allocate is not detected
	Free(h Handle, size, offset uint64) error

	// LoadRange uploads data into h at [offset, offset+size). deferred
	// requests the upload be batched into the current frame's workload
	// rather than submitted immediately; backends without a batching
	// concept may treat this as a no-op distinction.
	//
	// Parameters:
	//   - h: the buffer to upload into
	//   - offset: the destination byte offset
	//   - size: the number of bytes to upload, must equal len(data)
	//   - data: the source bytes
	//   - deferred: true to batch the upload into the current frame
	//
	// Returns:
	//   - error: non-nil if h is invalid, the range is out of bounds, or
	//     len(data) != size
	LoadRange(h Handle, offset, size uint64, data []byte, deferred bool) error

	// GetMappedMemory returns a host-visible view of h's full extent.
	// Valid only for buffers created with FlagAutoMapped.
	//
	// Parameters:
	//   - h: the buffer to map
	//
	// Returns:
	//   - []byte: a view over the buffer's full byte range
	//   - error: non-nil if h is invalid or was not created with FlagAutoMapped
	GetMappedMemory(h Handle) ([]byte, error)

	// Destroy releases h and all of its sub-allocations.
	//
	// Parameters:
	//   - h: the buffer to release
	//
	// Returns:
	//   - error: non-nil if h is invalid
	Destroy(h Handle) error
}

func errInvalidHandle(h Handle) error {
	return kerr.Wrap(kerr.ErrBackendAllocationFailed, "renderer: invalid or destroyed handle")
}
