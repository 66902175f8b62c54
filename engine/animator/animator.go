// Package animator implements the per-instance animation state machine:
// play/pause/stop/seek, per-frame time advance, and dispatch into the
// Skeleton Evaluator to produce each frame's bone palette.
package animator

import (
	"log"
	"math"

	"github.com/kohi3d/kohi/engine/codec"
	"github.com/kohi3d/kohi/engine/skeleton"
)

// State is one of an Animator's three playback states.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Animator drives a single instance's animation time and delegates pose
// evaluation to a shared Skeleton. It owns no palette memory; callers pass
// in the slot to write each frame.
type Animator struct {
	model *codec.Model
	skel  *skeleton.Skeleton

	state             State
	currentAnimation  *codec.Animation
	currentIndex      int
	timeInTicks       float32
	instanceTimeScale float32
}

// New creates an Animator bound to model's animation library and skel's
// node tree, both owned by the model's base and shared across instances.
//
// Parameters:
//   - model: the decoded model providing the animation library
//   - skel: the skeleton evaluator for this model's node tree
//   - instanceTimeScale: this instance's private playback speed multiplier
//
// Returns:
//   - *Animator: the newly created animator, starting STOPPED with no
//     current animation
func New(model *codec.Model, skel *skeleton.Skeleton, instanceTimeScale float32) *Animator {
	return &Animator{
		model:             model,
		skel:              skel,
		state:             StateStopped,
		currentIndex:      -1,
		instanceTimeScale: instanceTimeScale,
	}
}

// State reports the animator's current playback state.
func (a *Animator) State() State { return a.state }

// TimeScale reports this instance's private playback speed multiplier.
func (a *Animator) TimeScale() float32 { return a.instanceTimeScale }

// SetTimeScale sets this instance's private playback speed multiplier,
// applied on top of the system-wide global time scale.
func (a *Animator) SetTimeScale(v float32) { a.instanceTimeScale = v }

// TimeInTicks reports the current playback position.
func (a *Animator) TimeInTicks() float32 { return a.timeInTicks }

// CurrentAnimationName reports the name of the active animation, or "" if
// none is selected.
func (a *Animator) CurrentAnimationName() string {
	if a.currentAnimation == nil {
		return ""
	}
	return a.currentAnimation.Name
}

// Play transitions STOPPED→PLAYING or PAUSED→PLAYING. From STOPPED, the
// transition only happens if a current animation is selected; otherwise
// the animator remains STOPPED. PLAYING→PLAYING is a no-op.
func (a *Animator) Play() {
	switch a.state {
	case StateStopped:
		if a.currentAnimation != nil {
			a.state = StatePlaying
		}
	case StatePaused:
		a.state = StatePlaying
	}
}

// Pause transitions STOPPED→PAUSED or PLAYING→PAUSED. From STOPPED, the
// transition only happens if a current animation is selected; otherwise
// the animator remains STOPPED. PAUSED→PAUSED is a no-op.
func (a *Animator) Pause() {
	switch a.state {
	case StateStopped:
		if a.currentAnimation != nil {
			a.state = StatePaused
		}
	case StatePlaying:
		a.state = StatePaused
	}
}

// Stop transitions PLAYING→STOPPED or PAUSED→STOPPED, resetting time to
// zero. STOPPED→STOPPED is a no-op.
func (a *Animator) Stop() {
	switch a.state {
	case StatePlaying, StatePaused:
		a.state = StateStopped
		a.timeInTicks = 0
	}
}

func wrap(x, duration float32) float32 {
	if duration <= 0 {
		return 0
	}
	r := float32(math.Mod(float64(x), float64(duration)))
	if r < 0 {
		r += duration
	}
	return r
}

// Seek jumps the current animation to timeSeconds, wrapped into
// [0, duration). A no-op if no animation is selected.
//
// Parameters:
//   - timeSeconds: the target time, in seconds, may exceed duration or be
//     negative
func (a *Animator) Seek(timeSeconds float32) {
	if a.currentAnimation == nil || a.currentAnimation.TicksPerSecond == 0 {
		return
	}
	durationSeconds := a.currentAnimation.DurationTicks / a.currentAnimation.TicksPerSecond
	a.timeInTicks = a.currentAnimation.TicksPerSecond * wrap(timeSeconds, durationSeconds)
}

// SeekPercent jumps the current animation to a fraction of its duration,
// clamped to [0, 1].
//
// Parameters:
//   - p: the fraction of the duration to seek to
func (a *Animator) SeekPercent(p float32) {
	if a.currentAnimation == nil || a.currentAnimation.TicksPerSecond == 0 {
		return
	}
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	durationSeconds := a.currentAnimation.DurationTicks / a.currentAnimation.TicksPerSecond
	a.Seek(durationSeconds * p)
}

// SetAnimation selects an animation by name, resetting time to zero on
// success. If no animation named name exists, it falls back to index 0
// when the library is non-empty, otherwise leaves the current animation
// unset and logs a warning.
//
// Parameters:
//   - name: the animation name to select
func (a *Animator) SetAnimation(name string) {
	for i := range a.model.Animations {
		if a.model.Animations[i].Name == name {
			a.currentAnimation = &a.model.Animations[i]
			a.currentIndex = i
			a.timeInTicks = 0
			return
		}
	}

	if len(a.model.Animations) > 0 {
		a.currentAnimation = &a.model.Animations[0]
		a.currentIndex = 0
		a.timeInTicks = 0
		log.Printf("animator: animation %q not found, falling back to %q", name, a.model.Animations[0].Name)
		return
	}

	a.currentAnimation = nil
	a.currentIndex = -1
	log.Printf("animator: animation %q not found and model has no animations", name)
}

// Update advances this instance's playback time by deltaSeconds (scaled by
// globalTimeScale and the instance's own time scale) if PLAYING, then
// writes this frame's pose into palette. STOPPED instances evaluate the
// rest/start pose at time zero every frame; PAUSED instances leave palette
// untouched, preserving the last computed pose.
//
// Parameters:
//   - deltaSeconds: elapsed time since the previous frame
//   - globalTimeScale: the system-wide playback speed multiplier
//   - palette: destination bone matrices for this instance
func (a *Animator) Update(deltaSeconds, globalTimeScale float32, palette *skeleton.Palette) {
	switch a.state {
	case StatePlaying:
		if a.currentAnimation != nil {
			deltaTicks := deltaSeconds * globalTimeScale * a.instanceTimeScale * a.currentAnimation.TicksPerSecond
			a.timeInTicks = wrap(a.timeInTicks+deltaTicks, a.currentAnimation.DurationTicks)
		}
		a.skel.Evaluate(a.currentAnimation, a.timeInTicks, palette)
	case StateStopped:
		a.skel.Evaluate(a.currentAnimation, 0, palette)
	case StatePaused:
		// time frozen, palette preserved: intentionally do nothing
	}
}
