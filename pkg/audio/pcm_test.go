package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToFloat32(t *testing.T) {
	t.Run("converts known values", func(t *testing.T) {
		data := make([]byte, 8)
		binary.LittleEndian.PutUint16(data[0:2], uint16(int16(0)))
		binary.LittleEndian.PutUint16(data[2:4], uint16(int16(16384)))
		binary.LittleEndian.PutUint16(data[4:6], uint16(int16(-16384)))
		binary.LittleEndian.PutUint16(data[6:8], uint16(int16(-32768)))

		samples := BytesToFloat32(data)
		require.Len(t, samples, 4)
		assert.InDelta(t, 0.0, samples[0], 1e-6)
		assert.InDelta(t, 0.5, samples[1], 1e-4)
		assert.InDelta(t, -0.5, samples[2], 1e-4)
		assert.InDelta(t, -1.0, samples[3], 1e-4)
	})

	t.Run("odd trailing byte is ignored", func(t *testing.T) {
		samples := BytesToFloat32([]byte{0x00, 0x40, 0xff})
		assert.Len(t, samples, 1)
	})
}

func TestFloat32ToBytes(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := []float32{0, 0.25, -0.25, 0.9}
		out := BytesToFloat32(Float32ToBytes(in))
		require.Len(t, out, len(in))
		for i := range in {
			assert.InDelta(t, in[i], out[i], 1e-3)
		}
	})

	t.Run("clips out of range samples", func(t *testing.T) {
		out := Float32ToBytes([]float32{2.0, -2.0})
		s0 := int16(binary.LittleEndian.Uint16(out[0:2]))
		s1 := int16(binary.LittleEndian.Uint16(out[2:4]))
		assert.Equal(t, int16(32767), s0)
		assert.Equal(t, int16(-32767), s1)
	})
}

func TestEncodeWAV(t *testing.T) {
	pcm := make([]byte, 3200) // 100ms at 16kHz mono
	wav, err := EncodeWAV(pcm, 16000, 1)
	require.NoError(t, err)

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Len(t, wav, 44+len(pcm))
}

func TestEncodeWAVInvalidConfig(t *testing.T) {
	_, err := EncodeWAV(nil, 0, 1)
	assert.Error(t, err)

	_, err = EncodeWAV(nil, 16000, 0)
	assert.Error(t, err)
}
