// Package stringtable implements a contiguous, appendable, index-addressed
// string store used as the embedded name table for the binary asset codec.
//
// A table holds a dense, insertion-ordered array of {offset, length} entries
// alongside a single contiguous blob of concatenated, unterminated string
// bytes. Append is the only mutation; there is no delete. The format favors
// serialization simplicity over runtime performance — reallocating the blob
// on every Add is by design, since this is an authoring/serialization aid,
// not a hot path.
package stringtable

import (
	"encoding/binary"
	"fmt"
)

// headerSize is the serialized size of a Table's header: entry_count (u32)
// followed by data_block_size (u32).
const headerSize = 8

// entrySize is the serialized size of a single Entry: offset (u32) followed
// by length (u32).
const entrySize = 8

// Entry records the location of one string within the data blob.
type Entry struct {
	// Offset is the byte offset of the string's first byte within the blob.
	Offset uint32
	// Length is the number of bytes the string occupies, excluding any
	// terminator (there is none stored).
	Length uint32
}

// Table is a contiguous, index-addressed string store. The zero value is not
// usable; construct one with New or FromBlock.
type Table struct {
	entries []Entry
	blob    []byte
}

// New creates an empty table with zero entries and an empty blob.
//
// Returns:
//   - *Table: the newly created, empty table
func New() *Table {
	return &Table{}
}

// Add appends bytes to the blob with no terminator and records a new entry
// for them. Reallocation of the blob on every call is expected and
// permitted — see the package doc.
//
// Parameters:
//   - data: the non-empty byte slice to store
//
// Returns:
//   - uint32: the index of the newly added entry, equal to the prior entry count
//   - error: non-nil if data is empty
func (t *Table) Add(data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("stringtable: add requires a non-empty byte slice")
	}

	entry := Entry{
		Offset: uint32(len(t.blob)),
		Length: uint32(len(data)),
	}

	newBlob := make([]byte, len(t.blob)+len(data))
	copy(newBlob, t.blob)
	copy(newBlob[entry.Offset:], data)
	t.blob = newBlob

	t.entries = append(t.entries, entry)
	return uint32(len(t.entries) - 1), nil
}

// AddString is a convenience wrapper over Add for string inputs.
//
// Parameters:
//   - s: the non-empty string to store
//
// Returns:
//   - uint32: the index of the newly added entry
//   - error: non-nil if s is empty
func (t *Table) AddString(s string) (uint32, error) {
	return t.Add([]byte(s))
}

// Count returns the number of entries currently stored.
//
// Returns:
//   - uint32: the entry count
func (t *Table) Count() uint32 {
	return uint32(len(t.entries))
}

// Length returns the stored length of the entry at index, excluding the
// terminator (there is none). Panics if index is out of range.
//
// Parameters:
//   - index: the entry index to query
//
// Returns:
//   - uint32: the entry's byte length
func (t *Table) Length(index uint32) uint32 {
	t.mustBeInRange(index)
	return t.entries[index].Length
}

// Get returns a freshly allocated, null-terminated copy of the string at
// index. The caller owns the returned slice. Panics if index is out of
// range.
//
// Parameters:
//   - index: the entry index to retrieve
//
// Returns:
//   - []byte: a null-terminated copy of the stored bytes
func (t *Table) Get(index uint32) []byte {
	t.mustBeInRange(index)
	e := t.entries[index]
	out := make([]byte, e.Length+1)
	copy(out, t.blob[e.Offset:e.Offset+e.Length])
	return out
}

// GetString returns the string at index without a terminator. Panics if
// index is out of range.
//
// Parameters:
//   - index: the entry index to retrieve
//
// Returns:
//   - string: the stored string
func (t *Table) GetString(index uint32) string {
	t.mustBeInRange(index)
	e := t.entries[index]
	return string(t.blob[e.Offset : e.Offset+e.Length])
}

// GetInto copies the raw bytes of the entry at index into buffer without
// appending a terminator. buffer must be at least Length(index) bytes.
// Panics if index is out of range.
//
// Parameters:
//   - index: the entry index to retrieve
//   - buffer: destination slice, must be large enough to hold the entry's bytes
func (t *Table) GetInto(index uint32, buffer []byte) {
	t.mustBeInRange(index)
	e := t.entries[index]
	copy(buffer, t.blob[e.Offset:e.Offset+e.Length])
}

// Serialize produces a single contiguous byte block laid out as
// header ‖ entries ‖ blob and returns it alongside its size.
//
// Returns:
//   - []byte: the serialized table
//   - int: the size of the serialized block, equal to len of the returned slice
func (t *Table) Serialize() ([]byte, int) {
	size := headerSize + entrySize*len(t.entries) + len(t.blob)
	out := make([]byte, size)

	binary.LittleEndian.PutUint32(out[0:4], uint32(len(t.entries)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(t.blob)))

	off := headerSize
	for _, e := range t.entries {
		binary.LittleEndian.PutUint32(out[off:off+4], e.Offset)
		binary.LittleEndian.PutUint32(out[off+4:off+8], e.Length)
		off += entrySize
	}

	copy(out[off:], t.blob)
	return out, size
}

// FromBlock constructs a table by reading the header at the start of block,
// then copying the entry array and data blob into owned storage. block is
// not retained after this call returns.
//
// Parameters:
//   - block: a byte slice previously produced by Serialize (or a prefix of a
//     larger buffer — only the table's own bytes are read)
//
// Returns:
//   - *Table: the reconstructed table
//   - int: the number of bytes of block consumed by the table
//   - error: non-nil if block is too short to contain a valid header or the
//     entries/blob it declares
func FromBlock(block []byte) (*Table, int, error) {
	if len(block) < headerSize {
		return nil, 0, fmt.Errorf("stringtable: block too short for header: have %d bytes, need %d", len(block), headerSize)
	}

	entryCount := binary.LittleEndian.Uint32(block[0:4])
	dataBlockSize := binary.LittleEndian.Uint32(block[4:8])

	entriesEnd := headerSize + entrySize*int(entryCount)
	blobEnd := entriesEnd + int(dataBlockSize)
	if len(block) < blobEnd {
		return nil, 0, fmt.Errorf("stringtable: block too short for declared entries+blob: have %d bytes, need %d", len(block), blobEnd)
	}

	t := &Table{
		entries: make([]Entry, entryCount),
		blob:    make([]byte, dataBlockSize),
	}

	off := headerSize
	for i := range t.entries {
		t.entries[i] = Entry{
			Offset: binary.LittleEndian.Uint32(block[off : off+4]),
			Length: binary.LittleEndian.Uint32(block[off+4 : off+8]),
		}
		off += entrySize
	}

	copy(t.blob, block[entriesEnd:blobEnd])

	return t, blobEnd, nil
}

func (t *Table) mustBeInRange(index uint32) {
	if index >= uint32(len(t.entries)) {
		panic(fmt.Sprintf("stringtable: index %d out of range (entry count %d)", index, len(t.entries)))
	}
}
