package animator

import (
	"testing"

	"github.com/kohi3d/kohi/common"
	"github.com/kohi3d/kohi/engine/codec"
	"github.com/kohi3d/kohi/engine/skeleton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneAnimModel() *codec.Model {
	var identity [16]float32
	common.Identity(identity[:])

	return &codec.Model{
		InverseGlobalTransform: identity,
		Nodes: []codec.Node{
			{Name: "root", LocalTransform: identity, ParentIndex: codec.NoneIndex},
		},
		Animations: []codec.Animation{
			{Name: "walk", DurationTicks: 20, TicksPerSecond: 10, Channels: nil},
			{Name: "idle", DurationTicks: 10, TicksPerSecond: 5, Channels: nil},
		},
	}
}

func newTestAnimator(t *testing.T) *Animator {
	t.Helper()
	m := oneAnimModel()
	a := New(m, skeleton.New(m), 1.0)
	return a
}

func TestAnimator_StartsStoppedWithNoAnimation(t *testing.T) {
	a := newTestAnimator(t)
	assert.Equal(t, StateStopped, a.State())
	assert.Equal(t, "", a.CurrentAnimationName())
}

func TestAnimator_PlayFromStoppedWithNoAnimationStaysStopped(t *testing.T) {
	a := newTestAnimator(t)
	a.Play()
	assert.Equal(t, StateStopped, a.State())
}

func TestAnimator_PlayFromStoppedWithAnimationTransitionsToPlaying(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk")
	a.Play()
	assert.Equal(t, StatePlaying, a.State())
}

func TestAnimator_PauseFromStoppedWithAnimationTransitionsToPaused(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk")
	a.Pause()
	assert.Equal(t, StatePaused, a.State())
}

func TestAnimator_PauseFromStoppedWithNoAnimationStaysStopped(t *testing.T) {
	a := newTestAnimator(t)
	a.Pause()
	assert.Equal(t, StateStopped, a.State())
}

func TestAnimator_StopFromPlayingResetsTimeAndState(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk")
	a.Play()
	var palette skeleton.Palette
	a.Update(1.0, 1.0, &palette)
	require.Greater(t, a.TimeInTicks(), float32(0))

	a.Stop()
	assert.Equal(t, StateStopped, a.State())
	assert.Equal(t, float32(0), a.TimeInTicks())
}

func TestAnimator_StopFromPausedResetsTimeAndState(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk")
	a.Play()
	var palette skeleton.Palette
	a.Update(1.0, 1.0, &palette)
	require.Greater(t, a.TimeInTicks(), float32(0))

	a.Pause()
	a.Stop()
	assert.Equal(t, StateStopped, a.State())
	assert.Equal(t, float32(0), a.TimeInTicks())
}

func TestAnimator_PauseFromPlayingPreservesTimeAndPalette(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk")
	a.Play()

	var palette skeleton.Palette
	a.Update(0.5, 1.0, &palette)
	timeBeforePause := a.TimeInTicks()
	paletteBeforePause := palette

	a.Pause()
	a.Update(10.0, 1.0, &palette)

	assert.Equal(t, StatePaused, a.State())
	assert.Equal(t, timeBeforePause, a.TimeInTicks())
	assert.Equal(t, paletteBeforePause, palette)
}

func TestAnimator_PlayFromPausedResumesPlaying(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk")
	a.Play()
	a.Pause()
	a.Play()
	assert.Equal(t, StatePlaying, a.State())
}

func TestAnimator_UpdateAdvancesTimeByScaledDeltaTicks(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk") // ticks_per_second = 10, duration = 20
	a.Play()

	var palette skeleton.Palette
	a.Update(0.1, 2.0, &palette) // deltaTicks = 0.1 * 2.0 * 1.0 * 10 = 2
	assert.InDelta(t, float32(2), a.TimeInTicks(), 1e-5)
}

func TestAnimator_UpdateWrapsTimePastDuration(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk") // duration = 20 ticks, ticks_per_second = 10
	a.Play()

	var palette skeleton.Palette
	a.Update(2.5, 1.0, &palette) // deltaTicks = 25, wraps to 5
	assert.InDelta(t, float32(5), a.TimeInTicks(), 1e-5)
}

func TestAnimator_SetAnimationFallsBackToFirstOnMiss(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("does_not_exist")
	assert.Equal(t, "walk", a.CurrentAnimationName())
}

func TestAnimator_SetAnimationWithEmptyLibraryLeavesNoneSelected(t *testing.T) {
	m := oneAnimModel()
	m.Animations = nil
	a := New(m, skeleton.New(m), 1.0)
	a.SetAnimation("anything")
	assert.Equal(t, "", a.CurrentAnimationName())
}

func TestAnimator_SetAnimationResetsTimeToZero(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk")
	a.Play()
	var palette skeleton.Palette
	a.Update(1.0, 1.0, &palette)
	require.Greater(t, a.TimeInTicks(), float32(0))

	a.SetAnimation("idle")
	assert.Equal(t, float32(0), a.TimeInTicks())
}

func TestAnimator_SeekWrapsAndRebasesNegativeTimes(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk") // duration_seconds = 20/10 = 2s

	a.Seek(1.0)
	assert.InDelta(t, float32(10), a.TimeInTicks(), 1e-5)

	a.Seek(-0.5) // mod(-0.5, 2) rebased = 1.5s -> 15 ticks
	assert.InDelta(t, float32(15), a.TimeInTicks(), 1e-5)

	a.Seek(2.5) // mod(2.5, 2) = 0.5s -> 5 ticks
	assert.InDelta(t, float32(5), a.TimeInTicks(), 1e-5)
}

func TestAnimator_SeekPercentClampsAndScalesByDuration(t *testing.T) {
	a := newTestAnimator(t)
	a.SetAnimation("walk") // duration_seconds = 2s, ticks_per_second = 10

	a.SeekPercent(0.5)
	assert.InDelta(t, float32(10), a.TimeInTicks(), 1e-5)

	a.SeekPercent(-1)
	assert.InDelta(t, float32(0), a.TimeInTicks(), 1e-5)

	// p clamps to 1, landing exactly on the duration, which wraps to 0.
	a.SeekPercent(2)
	assert.InDelta(t, float32(0), a.TimeInTicks(), 1e-5)
}

func TestAnimator_SeekWithNoCurrentAnimationIsNoop(t *testing.T) {
	a := newTestAnimator(t)
	a.Seek(5)
	assert.Equal(t, float32(0), a.TimeInTicks())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "PLAYING", StatePlaying.String())
	assert.Equal(t, "PAUSED", StatePaused.String())
}
