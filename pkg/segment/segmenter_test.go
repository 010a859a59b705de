package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxline/voxline/pkg/vad"
)

func testFrame(n, rate int) Frame {
	return Frame{Samples: make([]float32, n), SampleRate: rate}
}

func speech() vad.Decision  { return vad.Decision{Speech: true, Probability: 0.9} }
func silence() vad.Decision { return vad.Decision{Speech: false, Probability: 0.1} }

func TestSegmenterIdleDiscardsSilence(t *testing.T) {
	s := NewSegmenter(DefaultSegmenterConfig())

	for i := 0; i < 100; i++ {
		turn, ok := s.Push(silence(), testFrame(512, 16000))
		assert.False(t, ok)
		assert.Nil(t, turn)
	}
	assert.False(t, s.Active())
}

func TestSegmenterSpeechOpensTurn(t *testing.T) {
	s := NewSegmenter(DefaultSegmenterConfig())

	_, ok := s.Push(speech(), testFrame(512, 16000))
	assert.False(t, ok)
	assert.True(t, s.Active())
}

func TestSegmenterClosesAfterSilenceThreshold(t *testing.T) {
	// 512 samples at 16kHz is 32ms, so 1000ms of trailing silence needs
	// ceil(1000/32) = 32 silence frames.
	s := NewSegmenter(SegmenterConfig{SilenceThresholdMs: 1000})
	frame := testFrame(512, 16000)

	speechFrames := 10
	for i := 0; i < speechFrames; i++ {
		_, ok := s.Push(speech(), frame)
		require.False(t, ok)
	}

	silenceFrames := 0
	var turn *Turn
	for {
		var ok bool
		turn, ok = s.Push(silence(), frame)
		silenceFrames++
		if ok {
			break
		}
		require.Less(t, silenceFrames, 100, "turn never closed")
	}

	assert.Equal(t, 32, silenceFrames)
	require.NotNil(t, turn)
	assert.Equal(t, (speechFrames+silenceFrames)*512, len(turn.Samples))
	assert.Equal(t, 16000, turn.SampleRate)
	assert.False(t, s.Active())
}

func TestSegmenterExactThresholdStaysOpen(t *testing.T) {
	// 30 frames of 32ms sum to exactly the 960ms threshold; the turn
	// closes only once trailing silence exceeds it.
	s := NewSegmenter(SegmenterConfig{SilenceThresholdMs: 960})
	frame := testFrame(512, 16000)

	s.Push(speech(), frame)
	for i := 0; i < 30; i++ {
		_, ok := s.Push(silence(), frame)
		require.False(t, ok, "closed at silence frame %d", i+1)
	}
	turn, ok := s.Push(silence(), frame)
	assert.True(t, ok)
	require.NotNil(t, turn)
	assert.Equal(t, 32*512, len(turn.Samples))
}

func TestSegmenterSpeechResetsSilenceCounter(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{SilenceThresholdMs: 1000})
	frame := testFrame(512, 16000)

	s.Push(speech(), frame)
	// 20 silence frames (640ms), under the threshold.
	for i := 0; i < 20; i++ {
		_, ok := s.Push(silence(), frame)
		require.False(t, ok)
	}
	// Speech resumes, counter must restart.
	_, ok := s.Push(speech(), frame)
	require.False(t, ok)

	for i := 0; i < 31; i++ {
		_, ok := s.Push(silence(), frame)
		require.False(t, ok, "closed at silence frame %d after reset", i+1)
	}
	turn, ok := s.Push(silence(), frame)
	assert.True(t, ok)
	require.NotNil(t, turn)
	// 1 speech + 20 silence + 1 speech + 32 silence frames.
	assert.Equal(t, 54*512, len(turn.Samples))
}

func TestSegmenterTwoSecondUtterance(t *testing.T) {
	// ~2s of speech then 1.2s of silence, 512-sample frames at 16kHz.
	s := NewSegmenter(DefaultSegmenterConfig())
	frame := testFrame(512, 16000)

	var turns []*Turn
	push := func(d vad.Decision, n int) {
		for i := 0; i < n; i++ {
			if turn, ok := s.Push(d, frame); ok {
				turns = append(turns, turn)
			}
		}
	}

	push(speech(), 63)   // ~2.016s
	push(silence(), 38)  // ~1.216s

	require.Len(t, turns, 1)
	d := turns[0].Duration().Seconds()
	assert.GreaterOrEqual(t, d, 2.0)
	assert.LessOrEqual(t, d, 3.1)
	assert.False(t, s.Active())
}

func TestSegmenterFrameToleranceMode(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{SilenceFrameTolerance: 4})
	frame := testFrame(512, 16000)

	s.Push(speech(), frame)
	for i := 0; i < 4; i++ {
		_, ok := s.Push(silence(), frame)
		require.False(t, ok)
	}
	turn, ok := s.Push(silence(), frame)
	assert.True(t, ok)
	require.NotNil(t, turn)
	assert.Equal(t, 6*512, len(turn.Samples))
}

func TestSegmenterSeedActive(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{SilenceFrameTolerance: 2})
	seed := Frame{Samples: []float32{0.5, 0.5}, SampleRate: 16000}

	s.SeedActive(seed)
	assert.True(t, s.Active())

	frame := testFrame(2, 16000)
	s.Push(silence(), frame)
	s.Push(silence(), frame)
	turn, ok := s.Push(silence(), frame)
	require.True(t, ok)
	// The seed frame leads the turn.
	assert.Equal(t, float32(0.5), turn.Samples[0])
	assert.Equal(t, 8, len(turn.Samples))
}

func TestSegmenterSeedActiveMultipleFrames(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{SilenceFrameTolerance: 2})
	seeds := []Frame{
		{Samples: []float32{0.1, 0.1}, SampleRate: 16000},
		{Samples: []float32{0.2, 0.2}, SampleRate: 16000},
		{Samples: []float32{0.3, 0.3}, SampleRate: 16000},
	}

	s.SeedActive(seeds...)
	assert.True(t, s.Active())

	frame := testFrame(2, 16000)
	s.Push(silence(), frame)
	s.Push(silence(), frame)
	turn, ok := s.Push(silence(), frame)
	require.True(t, ok)
	// Every seed frame opens the turn, in order.
	assert.Equal(t, 12, len(turn.Samples))
	assert.Equal(t, float32(0.1), turn.Samples[0])
	assert.Equal(t, float32(0.3), turn.Samples[4])
}

func TestSegmenterReset(t *testing.T) {
	s := NewSegmenter(DefaultSegmenterConfig())
	s.Push(speech(), testFrame(512, 16000))
	require.True(t, s.Active())

	s.Reset()
	assert.False(t, s.Active())

	// Silence after reset stays idle.
	_, ok := s.Push(silence(), testFrame(512, 16000))
	assert.False(t, ok)
	assert.False(t, s.Active())
}
