package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxline/voxline/pkg/segment"
	"github.com/voxline/voxline/pkg/vad"
)

func speechFrame() vad.Decision  { return vad.Decision{Speech: true, Probability: 0.9} }
func silenceFrame() vad.Decision { return vad.Decision{Speech: false, Probability: 0.1} }

// bargeFrame makes a frame whose first sample tags its position, so window
// ordering can be checked.
func bargeFrame(tag float32) segment.Frame {
	return segment.Frame{Samples: []float32{tag, 0, 0, 0}, SampleRate: 16000}
}

func observe(b *BargeInController, d vad.Decision) bool {
	_, ok := b.Observe(d, bargeFrame(0))
	return ok
}

func TestBargeInTriggersAfterThreshold(t *testing.T) {
	b := NewBargeInController(5)

	for i := 0; i < 4; i++ {
		assert.False(t, observe(b, speechFrame()), "triggered early at frame %d", i+1)
	}
	assert.True(t, observe(b, speechFrame()))
}

func TestBargeInSilenceDecrementsCounter(t *testing.T) {
	b := NewBargeInController(5)

	// 3 speech, 2 silence, then 4 speech: counter 3→1→5.
	for i := 0; i < 3; i++ {
		assert.False(t, observe(b, speechFrame()))
	}
	for i := 0; i < 2; i++ {
		assert.False(t, observe(b, silenceFrame()))
	}
	for i := 0; i < 3; i++ {
		assert.False(t, observe(b, speechFrame()))
	}
	assert.True(t, observe(b, speechFrame()))
}

func TestBargeInCounterFlooredAtZero(t *testing.T) {
	b := NewBargeInController(3)

	// A run of silence must not bank negative credit.
	for i := 0; i < 10; i++ {
		assert.False(t, observe(b, silenceFrame()))
	}
	assert.False(t, observe(b, speechFrame()))
	assert.False(t, observe(b, speechFrame()))
	assert.True(t, observe(b, speechFrame()))
}

func TestBargeInResetsAfterTrigger(t *testing.T) {
	b := NewBargeInController(2)

	assert.False(t, observe(b, speechFrame()))
	assert.True(t, observe(b, speechFrame()))

	// Counter starts over after a trigger.
	assert.False(t, observe(b, speechFrame()))
	assert.True(t, observe(b, speechFrame()))
}

func TestBargeInManualReset(t *testing.T) {
	b := NewBargeInController(3)

	observe(b, speechFrame())
	observe(b, speechFrame())
	b.Reset()

	assert.False(t, observe(b, speechFrame()))
	assert.False(t, observe(b, speechFrame()))
	assert.True(t, observe(b, speechFrame()))
}

func TestBargeInReturnsWholeDebounceWindow(t *testing.T) {
	b := NewBargeInController(5)

	for i := 0; i < 4; i++ {
		window, ok := b.Observe(speechFrame(), bargeFrame(float32(i)))
		require.False(t, ok)
		require.Nil(t, window)
	}
	window, ok := b.Observe(speechFrame(), bargeFrame(4))

	// All five frames come back, oldest first.
	require.True(t, ok)
	require.Len(t, window, 5)
	for i, f := range window {
		assert.Equal(t, float32(i), f.Samples[0], "window frame %d out of order", i)
	}
}

func TestBargeInWindowKeepsMidRunSilence(t *testing.T) {
	b := NewBargeInController(4)

	// A silence frame in the middle of the run sits inside the utterance
	// and belongs in the window.
	b.Observe(speechFrame(), bargeFrame(0))
	b.Observe(speechFrame(), bargeFrame(1))
	b.Observe(silenceFrame(), bargeFrame(2))
	b.Observe(speechFrame(), bargeFrame(3))
	b.Observe(speechFrame(), bargeFrame(4))
	window, ok := b.Observe(speechFrame(), bargeFrame(5))

	require.True(t, ok)
	require.Len(t, window, 6)
	assert.Equal(t, float32(2), window[2].Samples[0])
}

func TestBargeInWindowClearedWhenCounterFallsToZero(t *testing.T) {
	b := NewBargeInController(3)

	// A two-frame flicker dies out; its frames must not leak into the
	// next window.
	b.Observe(speechFrame(), bargeFrame(100))
	b.Observe(speechFrame(), bargeFrame(101))
	b.Observe(silenceFrame(), bargeFrame(102))
	b.Observe(silenceFrame(), bargeFrame(103))

	b.Observe(speechFrame(), bargeFrame(0))
	b.Observe(speechFrame(), bargeFrame(1))
	window, ok := b.Observe(speechFrame(), bargeFrame(2))

	require.True(t, ok)
	require.Len(t, window, 3)
	assert.Equal(t, float32(0), window[0].Samples[0])
}
