package segment

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm16Chunk(samples int, value int16) []byte {
	chunk := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(chunk[i*2:], uint16(value))
	}
	return chunk
}

func TestFrameAssemblerExactChunks(t *testing.T) {
	a, err := NewFrameAssembler(AssemblerConfig{FrameSize: 512})
	require.NoError(t, err)
	defer a.Close()

	frames, err := a.Push(pcm16Chunk(512, 16384))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].Samples, 512)
	assert.Equal(t, 16000, frames[0].SampleRate)
	assert.InDelta(t, 0.5, frames[0].Samples[0], 0.001)
	assert.Equal(t, 0, a.PendingSamples())
}

func TestFrameAssemblerCarriesPartialChunks(t *testing.T) {
	a, err := NewFrameAssembler(AssemblerConfig{FrameSize: 512})
	require.NoError(t, err)
	defer a.Close()

	// 300 samples: below one frame, nothing emitted yet.
	frames, err := a.Push(pcm16Chunk(300, 100))
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, 300, a.PendingSamples())

	// 300 more: one full frame plus 88 pending.
	frames, err = a.Push(pcm16Chunk(300, 100))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 88, a.PendingSamples())
}

func TestFrameAssemblerLargeChunk(t *testing.T) {
	a, err := NewFrameAssembler(AssemblerConfig{FrameSize: 512})
	require.NoError(t, err)
	defer a.Close()

	frames, err := a.Push(pcm16Chunk(512*3+17, 0))
	require.NoError(t, err)
	assert.Len(t, frames, 3)
	assert.Equal(t, 17, a.PendingSamples())
}

func TestFrameAssemblerEmptyChunk(t *testing.T) {
	a, err := NewFrameAssembler(AssemblerConfig{})
	require.NoError(t, err)
	defer a.Close()

	frames, err := a.Push(nil)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestFrameAssemblerMuLaw(t *testing.T) {
	a, err := NewFrameAssembler(AssemblerConfig{
		Encoding:         EncodingMuLaw,
		InputSampleRate:  8000,
		TargetSampleRate: 8000,
		FrameSize:        256,
	})
	require.NoError(t, err)
	defer a.Close()

	// One mulaw byte decodes to one 16-bit sample, so 256 bytes fill a
	// frame exactly.
	chunk := make([]byte, 256)
	for i := range chunk {
		chunk[i] = 0xff // near-zero amplitude in mulaw
	}
	frames, err := a.Push(chunk)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].Samples, 256)
	assert.Equal(t, 8000, frames[0].SampleRate)
	assert.InDelta(t, 0.0, frames[0].Samples[0], 0.01)
}

func TestFrameAssemblerRejectsUnknownEncoding(t *testing.T) {
	_, err := NewFrameAssembler(AssemblerConfig{Encoding: "flac"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestFrameDuration(t *testing.T) {
	f := Frame{Samples: make([]float32, 512), SampleRate: 16000}
	assert.InDelta(t, 32.0, f.DurationMs(), 0.001)
	assert.Equal(t, "32ms", f.Duration().String())
}
