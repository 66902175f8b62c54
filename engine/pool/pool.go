// Package pool implements a fixed-capacity, fixed-element-size allocator
// with O(1) allocate/free and stable element offsets — the backing store
// for animation bone-palette shader data.
//
// A single block of capacity×elementSize bytes is preallocated up front,
// along with an array of capacity free-list nodes. Each node's position in
// that array never moves; only its place in the free list's linked order
// changes. This means the element index handed back by Allocate — the
// value published to the GPU as a shader-visible slot id — is stable for
// the lifetime of the allocator, regardless of allocate/free churn.
package pool

import "fmt"

// node is one entry in the allocator's free list. Its offset is fixed at
// creation time (node i always represents byte offset i*elementSize); only
// next changes as nodes are threaded in and out of the free list.
type node struct {
	next   int32 // index into Allocator.nodes, or -1 if this is the tail
	offset uint64
}

// Allocator is a fixed-capacity allocator for elements of a fixed byte size.
// The zero value is not usable; construct one with New.
type Allocator struct {
	elementSize uint64
	capacity    uint32

	memory []byte
	nodes  []node

	freeHead int32 // index into nodes, or -1 if the pool is exhausted
}

// New preallocates a block of capacity*elementSize bytes and its free-list
// bookkeeping. Panics if elementSize or capacity is zero, matching the
// fixed, known-at-construction-time sizing this allocator is meant for.
//
// Parameters:
//   - elementSize: the fixed size, in bytes, of each element
//   - capacity: the number of elements the pool can hold
//
// Returns:
//   - *Allocator: the newly created, fully-free allocator
func New(elementSize uint64, capacity uint32) *Allocator {
	if elementSize == 0 {
		panic("pool: elementSize must be nonzero")
	}
	if capacity == 0 {
		panic("pool: capacity must be nonzero")
	}

	a := &Allocator{
		elementSize: elementSize,
		capacity:    capacity,
		memory:      make([]byte, elementSize*uint64(capacity)),
		nodes:       make([]node, capacity),
		freeHead:    0,
	}

	for i := uint32(0); i < capacity; i++ {
		n := &a.nodes[i]
		n.offset = uint64(i) * elementSize
		if i+1 < capacity {
			n.next = int32(i + 1)
		} else {
			n.next = -1
		}
	}

	return a
}

// Capacity returns the total number of elements the pool can hold.
//
// Returns:
//   - uint32: the pool's element capacity
func (a *Allocator) Capacity() uint32 {
	return a.capacity
}

// ElementSize returns the fixed size, in bytes, of each element.
//
// Returns:
//   - uint64: the element size in bytes
func (a *Allocator) ElementSize() uint64 {
	return a.elementSize
}

// Allocate pops the head of the free list and returns a slice viewing the
// allocated element's bytes within the backing block, along with the
// element's stable integer index (the value exposed to shaders as a slot
// id). The returned slice is zero-valued only if the caller has not
// previously written to that offset — freed elements retain their prior
// contents, matching the spec's "free is not required to scrub memory"
// behavior; callers that need a clean slot (e.g. an identity bone palette)
// must initialize it themselves after allocating.
//
// Returns:
//   - []byte: a view into the backing block for this element
//   - uint32: the element's stable index
//   - error: non-nil if the pool is exhausted
func (a *Allocator) Allocate() ([]byte, uint32, error) {
	if a.freeHead < 0 {
		return nil, 0, fmt.Errorf("pool: exhausted, capacity %d", a.capacity)
	}

	idx := a.freeHead
	n := &a.nodes[idx]
	a.freeHead = n.next
	n.next = -2 // sentinel marking "allocated", used to catch double-free

	return a.memory[n.offset : n.offset+a.elementSize], uint32(idx), nil
}

// Free returns the element at index to the free list, re-threading it so
// that the free list remains offset-ascending. This keeps the indices
// returned by subsequent Allocate calls spatially clustered, which keeps
// bulk iteration over live elements (the frame publisher's per-frame copy)
// cache-friendly. Panics if index is out of range or the element is not
// currently allocated.
//
// Parameters:
//   - index: the element index to free, as returned by Allocate
func (a *Allocator) Free(index uint32) {
	if index >= a.capacity {
		panic(fmt.Sprintf("pool: free index %d out of range (capacity %d)", index, a.capacity))
	}
	n := &a.nodes[index]
	if n.next != -2 {
		panic(fmt.Sprintf("pool: double free or free of unallocated index %d", index))
	}

	if a.freeHead < 0 || a.nodes[a.freeHead].offset > n.offset {
		n.next = a.freeHead
		a.freeHead = int32(index)
		return
	}

	prev := a.freeHead
	for a.nodes[prev].next >= 0 && a.nodes[a.nodes[prev].next].offset < n.offset {
		prev = a.nodes[prev].next
	}
	n.next = a.nodes[prev].next
	a.nodes[prev].next = int32(index)
}

// Element returns a slice viewing the bytes of the element at index,
// without regard to whether it is currently allocated. Used by the frame
// publisher for bulk copies over the whole backing array.
//
// Parameters:
//   - index: the element index
//
// Returns:
//   - []byte: a view into the backing block for this element
func (a *Allocator) Element(index uint32) []byte {
	if index >= a.capacity {
		panic(fmt.Sprintf("pool: element index %d out of range (capacity %d)", index, a.capacity))
	}
	off := uint64(index) * a.elementSize
	return a.memory[off : off+a.elementSize]
}

// Backing returns the entire backing block, spanning all capacity elements
// whether allocated or free. Used by the frame publisher to bulk-copy the
// whole array into a mapped GPU buffer in one call.
//
// Returns:
//   - []byte: the full backing block, capacity*elementSize bytes long
func (a *Allocator) Backing() []byte {
	return a.memory
}

// ElementsFree traverses the free list and counts its nodes.
//
// Returns:
//   - uint32: the number of currently free elements
func (a *Allocator) ElementsFree() uint32 {
	count := uint32(0)
	for idx := a.freeHead; idx >= 0; idx = a.nodes[idx].next {
		count++
	}
	return count
}

// SpaceFree returns the total free byte capacity remaining in the pool.
//
// Returns:
//   - uint64: ElementsFree() * ElementSize()
func (a *Allocator) SpaceFree() uint64 {
	return uint64(a.ElementsFree()) * a.elementSize
}
