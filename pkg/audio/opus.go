package audio

import (
	"fmt"

	"github.com/hraban/opus"
)

// maxOpusFrameSamples covers a 120ms opus frame at 48kHz mono.
const maxOpusFrameSamples = 5760

// OpusDecoder decodes Opus packets to 16-bit PCM bytes.
type OpusDecoder struct {
	dec    *opus.Decoder
	pcmBuf []int16
}

// NewOpusDecoder creates a decoder for the given sample rate and channel count.
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		dec:    dec,
		pcmBuf: make([]int16, maxOpusFrameSamples*channels),
	}, nil
}

// Decode decodes a single Opus packet and returns little-endian PCM16 bytes.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	n, err := d.dec.Decode(packet, d.pcmBuf)
	if err != nil {
		return nil, fmt.Errorf("opus decode error: %w", err)
	}

	out := make([]byte, n*2)
	for i, s := range d.pcmBuf[:n] {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out, nil
}
