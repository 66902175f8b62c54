// Package handle implements the base-model and per-base-instance slot
// registries: growable, u16-indexed slot arrays with a parallel state
// enum, used so that every live base and instance has a stable id with no
// element indexed unless it is actually live.
package handle

import (
	"fmt"

	"github.com/kohi3d/kohi/engine/kerr"
)

// BaseState is the lifecycle state of a base-model slot.
type BaseState int

const (
	// BaseUninitialized marks a free slot, available for reuse.
	BaseUninitialized BaseState = iota
	// BaseAcquired marks a slot reserved for a base whose asset load has
	// not yet been dispatched.
	BaseAcquired
	// BaseLoading marks a slot whose asset load has been dispatched but
	// not yet completed.
	BaseLoading
	// BaseLoaded marks a slot whose codec load and geometry upload have
	// both completed; instances bound to it may be driven normally.
	BaseLoaded
)

// String implements fmt.Stringer for log-friendly output.
func (s BaseState) String() string {
	switch s {
	case BaseUninitialized:
		return "UNINITIALIZED"
	case BaseAcquired:
		return "ACQUIRED"
	case BaseLoading:
		return "LOADING"
	case BaseLoaded:
		return "LOADED"
	default:
		return fmt.Sprintf("BaseState(%d)", int(s))
	}
}

// InstanceState is the lifecycle state of a per-base instance slot.
type InstanceState int

const (
	// InstanceUninitialized marks a free instance slot.
	InstanceUninitialized InstanceState = iota
	// InstanceAcquired marks a live instance slot.
	InstanceAcquired
)

// String implements fmt.Stringer for log-friendly output.
func (s InstanceState) String() string {
	if s == InstanceAcquired {
		return "ACQUIRED"
	}
	return "UNINITIALIZED"
}

// Invalid is the sentinel id returned for a failed or nonexistent lookup,
// matching the collaborator boundary's INVALID_ID convention.
const Invalid uint16 = 0xFFFF

type baseSlot struct {
	state       BaseState
	assetName   string
	packageName string
	instances   []InstanceState
}

// Registry owns the base-model slot array and, per base, its instance slot
// array. The zero value is not usable; construct one with New.
type Registry struct {
	slots []baseSlot
}

// New creates an empty registry.
//
// Returns:
//   - *Registry: the newly created, empty registry
func New() *Registry {
	return &Registry{}
}

// GetBaseID returns the id of an existing base matching assetName and
// packageName in any non-UNINITIALIZED state, or reserves a new slot for
// one. A freshly reserved slot is marked ACQUIRED.
//
// Parameters:
//   - assetName: the asset's name
//   - packageName: the package the asset belongs to
//
// Returns:
//   - uint16: the base id
//   - bool: true if an existing base was found, false if a new slot was reserved
func (r *Registry) GetBaseID(assetName, packageName string) (uint16, bool) {
	for i := range r.slots {
		s := &r.slots[i]
		if s.state != BaseUninitialized && s.assetName == assetName && s.packageName == packageName {
			return uint16(i), true
		}
	}

	for i := range r.slots {
		s := &r.slots[i]
		if s.state == BaseUninitialized {
			s.state = BaseAcquired
			s.assetName = assetName
			s.packageName = packageName
			s.instances = nil
			return uint16(i), false
		}
	}

	r.slots = append(r.slots, baseSlot{
		state:       BaseAcquired,
		assetName:   assetName,
		packageName: packageName,
	})
	return uint16(len(r.slots) - 1), false
}

// BaseState returns the current state of baseID.
//
// Parameters:
//   - baseID: the base slot to query
//
// Returns:
//   - BaseState: the slot's current state
//   - error: non-nil if baseID is out of range
func (r *Registry) BaseState(baseID uint16) (BaseState, error) {
	if int(baseID) >= len(r.slots) {
		return BaseUninitialized, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("handle: base id %d out of range", baseID))
	}
	return r.slots[baseID].state, nil
}

// BaseNames returns the asset and package name baseID was acquired with.
//
// Parameters:
//   - baseID: the base slot to query
//
// Returns:
//   - string: the asset name
//   - string: the package name
//   - error: non-nil if baseID is out of range
func (r *Registry) BaseNames(baseID uint16) (string, string, error) {
	if int(baseID) >= len(r.slots) {
		return "", "", kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("handle: base id %d out of range", baseID))
	}
	s := &r.slots[baseID]
	return s.assetName, s.packageName, nil
}

// SetBaseState transitions baseID to state. Callers are responsible for
// only issuing valid lifecycle transitions (ACQUIRED -> LOADING -> LOADED,
// or any state -> UNINITIALIZED via ReleaseBase).
//
// Parameters:
//   - baseID: the base slot to transition
//   - state: the new state
//
// Returns:
//   - error: non-nil if baseID is out of range
func (r *Registry) SetBaseState(baseID uint16, state BaseState) error {
	if int(baseID) >= len(r.slots) {
		return kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("handle: base id %d out of range", baseID))
	}
	r.slots[baseID].state = state
	return nil
}

// GetNewInstanceID reserves the first UNINITIALIZED instance slot owned by
// baseID, growing the instance array by one if none is free, and marks it
// ACQUIRED.
//
// Parameters:
//   - baseID: the owning base
//
// Returns:
//   - uint16: the new instance id
//   - error: non-nil if baseID is out of range
func (r *Registry) GetNewInstanceID(baseID uint16) (uint16, error) {
	if int(baseID) >= len(r.slots) {
		return Invalid, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("handle: base id %d out of range", baseID))
	}
	s := &r.slots[baseID]

	for i := range s.instances {
		if s.instances[i] == InstanceUninitialized {
			s.instances[i] = InstanceAcquired
			return uint16(i), nil
		}
	}

	s.instances = append(s.instances, InstanceAcquired)
	return uint16(len(s.instances) - 1), nil
}

// InstanceState returns the current state of instanceID within baseID.
//
// Parameters:
//   - baseID: the owning base
//   - instanceID: the instance slot to query
//
// Returns:
//   - InstanceState: the slot's current state
//   - error: non-nil if baseID or instanceID is out of range
func (r *Registry) InstanceState(baseID, instanceID uint16) (InstanceState, error) {
	if int(baseID) >= len(r.slots) {
		return InstanceUninitialized, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("handle: base id %d out of range", baseID))
	}
	s := &r.slots[baseID]
	if int(instanceID) >= len(s.instances) {
		return InstanceUninitialized, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("handle: instance id %d out of range for base %d", instanceID, baseID))
	}
	return s.instances[instanceID], nil
}

// ReleaseInstance transitions instanceID to UNINITIALIZED and reports
// whether it was the base's last live instance.
//
// Parameters:
//   - baseID: the owning base
//   - instanceID: the instance slot to release
//
// Returns:
//   - bool: true if releasing this instance leaves the base with zero live instances
//   - error: non-nil if baseID or instanceID is out of range
func (r *Registry) ReleaseInstance(baseID, instanceID uint16) (bool, error) {
	if int(baseID) >= len(r.slots) {
		return false, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("handle: base id %d out of range", baseID))
	}
	s := &r.slots[baseID]
	if int(instanceID) >= len(s.instances) {
		return false, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("handle: instance id %d out of range for base %d", instanceID, baseID))
	}

	s.instances[instanceID] = InstanceUninitialized

	for _, st := range s.instances {
		if st == InstanceAcquired {
			return false, nil
		}
	}
	return true, nil
}

// ReleaseBase returns baseID to UNINITIALIZED and discards its instance
// array and names. A subsequent GetBaseID with the same names allocates a
// fresh ACQUIRED base, per the registry's release-is-idempotent contract —
// it never resurrects the old slot's LOADED state.
//
// Parameters:
//   - baseID: the base slot to release
//
// Returns:
//   - error: non-nil if baseID is out of range
func (r *Registry) ReleaseBase(baseID uint16) error {
	if int(baseID) >= len(r.slots) {
		return kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("handle: base id %d out of range", baseID))
	}
	r.slots[baseID] = baseSlot{}
	return nil
}
