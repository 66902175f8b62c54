// Package kerr defines the sentinel error values shared across the model
// runtime and binary codec. Callers use errors.Is against these sentinels;
// wrapped context is added with Wrap at each call site.
package kerr

import "errors"

var (
	// ErrInvalidAsset covers magic mismatch, asset-type mismatch, or guard
	// mismatch encountered while deserializing a codec block.
	ErrInvalidAsset = errors.New("kohi: invalid asset")

	// ErrIndexOutOfRange covers string-table lookups with an unknown index
	// and submesh/bone/node/animation indices beyond a declared count.
	ErrIndexOutOfRange = errors.New("kohi: index out of range")

	// ErrCapacityExceeded covers pool allocator exhaustion and bone ids
	// that exceed the palette's fixed capacity.
	ErrCapacityExceeded = errors.New("kohi: capacity exceeded")

	// ErrBackendAllocationFailed covers a renderer-surface sub-allocation
	// or upload that returned failure.
	ErrBackendAllocationFailed = errors.New("kohi: backend allocation failed")

	// ErrStateViolation covers operating on an instance whose base is not
	// LOADED, outside of the queued-acquire path. This is a programming
	// error: callers running with Debug enabled will see it panic rather
	// than propagate, per the package's debug-assert convention.
	ErrStateViolation = errors.New("kohi: state violation")

	// ErrUnsupportedMeshType covers a submesh declaring a mesh_type outside
	// the supported set.
	ErrUnsupportedMeshType = errors.New("kohi: unsupported mesh type")
)

// Debug toggles whether ErrStateViolation is raised as a panic instead of
// returned as an error. Production builds should leave this false;
// development builds set it true to catch misuse at the call site instead
// of at a confusing distance.
var Debug = false

// StateViolation raises ErrStateViolation, wrapped with context, either as
// a panic (if Debug is true) or as a returned error.
//
// Parameters:
//   - context: a short description of the offending operation
//
// Returns:
//   - error: the wrapped ErrStateViolation, if Debug is false
func StateViolation(context string) error {
	err := wrap(ErrStateViolation, context)
	if Debug {
		panic(err)
	}
	return err
}

func wrap(sentinel error, context string) error {
	return &wrapped{sentinel: sentinel, context: context}
}

type wrapped struct {
	sentinel error
	context  string
}

func (w *wrapped) Error() string {
	return w.sentinel.Error() + ": " + w.context
}

func (w *wrapped) Unwrap() error {
	return w.sentinel
}

// Wrap attaches context to one of this package's sentinel errors so that
// errors.Is(result, sentinel) still holds while the message carries detail.
//
// Parameters:
//   - sentinel: one of this package's Err* values
//   - context: a short description of the offending operation
//
// Returns:
//   - error: the wrapped sentinel
func Wrap(sentinel error, context string) error {
	return wrap(sentinel, context)
}
