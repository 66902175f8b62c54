package system

import (
	"fmt"

	"github.com/kohi3d/kohi/engine/handle"
	"github.com/kohi3d/kohi/engine/kerr"
)

func (s *System) loadedBase(baseID uint16) (*base, error) {
	b, ok := s.bases[baseID]
	if !ok {
		return nil, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("system: unknown base %d", baseID))
	}
	state, err := s.registry.BaseState(baseID)
	if err != nil {
		return nil, err
	}
	if state != handle.BaseLoaded {
		return nil, kerr.StateViolation(fmt.Sprintf("base %d is %s, not LOADED", baseID, state))
	}
	return b, nil
}

func (s *System) loadedInstance(baseID, instanceID uint16) (*base, *instance, error) {
	b, err := s.loadedBase(baseID)
	if err != nil {
		return nil, nil, err
	}
	inst, ok := b.instances[instanceID]
	if !ok {
		return nil, nil, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("system: unknown instance %d on base %d", instanceID, baseID))
	}
	return b, inst, nil
}

func (s *System) animatedInstance(baseID, instanceID uint16) (*instance, error) {
	_, inst, err := s.loadedInstance(baseID, instanceID)
	if err != nil {
		return nil, err
	}
	if !inst.animated {
		return nil, kerr.StateViolation(fmt.Sprintf("instance %d on base %d has no animator (static base)", instanceID, baseID))
	}
	return inst, nil
}

// BaseState reports a base's current lifecycle state, letting callers poll
// for LOADED without registering an onLoaded callback.
func (s *System) BaseState(baseID uint16) (handle.BaseState, error) {
	if _, ok := s.bases[baseID]; !ok {
		return 0, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("system: unknown base %d", baseID))
	}
	return s.registry.BaseState(baseID)
}

// SubmeshCount reports a LOADED base's submesh count.
func (s *System) SubmeshCount(baseID uint16) (uint16, error) {
	b, err := s.loadedBase(baseID)
	if err != nil {
		return 0, err
	}
	return uint16(len(b.geometries)), nil
}

// SubmeshGeometry returns submesh i's uploaded geometry descriptor.
func (s *System) SubmeshGeometry(baseID uint16, i int) (GeometryDescriptor, error) {
	b, err := s.loadedBase(baseID)
	if err != nil {
		return GeometryDescriptor{}, err
	}
	if i < 0 || i >= len(b.geometries) {
		return GeometryDescriptor{}, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("system: submesh index %d on base %d", i, baseID))
	}
	return b.geometries[i], nil
}

// Generation reports the number of submeshes that have completed both
// vertex and index upload for this base — a diagnostic for detecting
// partial loads without inspecting every submesh's upload result.
func (s *System) Generation(baseID uint16) (uint32, error) {
	b, ok := s.bases[baseID]
	if !ok {
		return 0, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("system: unknown base %d", baseID))
	}
	return b.generation, nil
}

// SubmeshMaterial returns the material handle bound to instance's submesh i.
func (s *System) SubmeshMaterial(baseID, instanceID uint16, i int) (MaterialHandle, error) {
	_, inst, err := s.loadedInstance(baseID, instanceID)
	if err != nil {
		return InvalidMaterial, err
	}
	if i < 0 || i >= len(inst.materials) {
		return InvalidMaterial, kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("system: submesh index %d on instance %d", i, instanceID))
	}
	return inst.materials[i], nil
}

// SetSubmeshMaterial binds a material handle to instance's submesh i.
func (s *System) SetSubmeshMaterial(baseID, instanceID uint16, i int, h MaterialHandle) error {
	_, inst, err := s.loadedInstance(baseID, instanceID)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(inst.materials) {
		return kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("system: submesh index %d on instance %d", i, instanceID))
	}
	inst.materials[i] = h
	return nil
}

// QueryAnimations lists a LOADED animated base's animation names, in
// declaration order.
func (s *System) QueryAnimations(baseID uint16) ([]string, error) {
	b, err := s.loadedBase(baseID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(b.model.Animations))
	for i, a := range b.model.Animations {
		names[i] = a.Name
	}
	return names, nil
}

// AnimationSlotID returns the bone-palette pool index published to the
// shader for this instance, for use as the draw call's animation slot id.
func (s *System) AnimationSlotID(baseID, instanceID uint16) (uint32, error) {
	inst, err := s.animatedInstance(baseID, instanceID)
	if err != nil {
		return 0, err
	}
	return inst.paletteIndex, nil
}

// SetAnimation selects instance's current animation by name.
func (s *System) SetAnimation(baseID, instanceID uint16, name string) error {
	inst, err := s.animatedInstance(baseID, instanceID)
	if err != nil {
		return err
	}
	inst.anim.SetAnimation(name)
	return nil
}

// Play starts or resumes instance's animation playback.
func (s *System) Play(baseID, instanceID uint16) error {
	inst, err := s.animatedInstance(baseID, instanceID)
	if err != nil {
		return err
	}
	inst.anim.Play()
	return nil
}

// Pause freezes instance's animation time, preserving its current palette.
func (s *System) Pause(baseID, instanceID uint16) error {
	inst, err := s.animatedInstance(baseID, instanceID)
	if err != nil {
		return err
	}
	inst.anim.Pause()
	return nil
}

// Stop halts instance's animation playback and resets its time to zero.
func (s *System) Stop(baseID, instanceID uint16) error {
	inst, err := s.animatedInstance(baseID, instanceID)
	if err != nil {
		return err
	}
	inst.anim.Stop()
	return nil
}

// SeekTime jumps instance's current animation to timeSeconds, wrapped into
// its duration.
func (s *System) SeekTime(baseID, instanceID uint16, timeSeconds float32) error {
	inst, err := s.animatedInstance(baseID, instanceID)
	if err != nil {
		return err
	}
	inst.anim.Seek(timeSeconds)
	return nil
}

// SeekPercent jumps instance's current animation to a fraction (0..1) of
// its duration.
func (s *System) SeekPercent(baseID, instanceID uint16, p float32) error {
	inst, err := s.animatedInstance(baseID, instanceID)
	if err != nil {
		return err
	}
	inst.anim.SeekPercent(p)
	return nil
}

// SetTimeScale sets instance's private animation playback speed multiplier.
func (s *System) SetTimeScale(baseID, instanceID uint16, scale float32) error {
	inst, err := s.animatedInstance(baseID, instanceID)
	if err != nil {
		return err
	}
	inst.anim.SetTimeScale(scale)
	return nil
}
