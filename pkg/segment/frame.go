// Package segment turns a continuous audio stream into discrete user
// utterances. The FrameAssembler normalizes arbitrary inbound chunks into
// fixed-size frames for voice activity classification, and the Segmenter
// runs the speech/silence state machine that decides where one utterance
// ends.
package segment

import (
	"fmt"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/voxline/voxline/pkg/audio"
)

// Audio encodings accepted on the ingestion path.
const (
	EncodingPCM16 = "pcm16"
	EncodingMuLaw = "mulaw"
	EncodingOpus  = "opus"
)

// Frame is a fixed-duration slice of mono audio samples normalized to
// [-1, 1]. Frames are immutable once produced: the assembler creates them,
// the segmenter consumes them, nobody retains them.
type Frame struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the frame's length in time.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

// DurationMs returns the frame's length in milliseconds.
func (f Frame) DurationMs() float64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return float64(len(f.Samples)) / float64(f.SampleRate) * 1000.0
}

// AssemblerConfig configures a FrameAssembler.
type AssemblerConfig struct {
	// Encoding of inbound chunks: pcm16, mulaw or opus. Default pcm16.
	Encoding string

	// InputSampleRate is the rate of inbound audio. Default 16000.
	InputSampleRate int

	// TargetSampleRate is the rate the VAD engine requires. Default 16000.
	TargetSampleRate int

	// FrameSize is the exact number of samples per emitted frame.
	// Must match the VAD engine's FrameSize. Default 512.
	FrameSize int
}

// DefaultAssemblerConfig returns the default assembler configuration.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		Encoding:         EncodingPCM16,
		InputSampleRate:  16000,
		TargetSampleRate: 16000,
		FrameSize:        512,
	}
}

// FrameAssembler buffers inbound audio chunks of arbitrary size and emits
// frames of exactly FrameSize samples. Partial frames are carried across
// chunks; the assembler never pads or truncates to force a frame out.
type FrameAssembler struct {
	cfg       AssemblerConfig
	resampler *audio.Resampler
	opusDec   *audio.OpusDecoder
	pending   []float32
}

// NewFrameAssembler creates an assembler, allocating a resampler when the
// input rate differs from the target rate and an opus decoder when needed.
func NewFrameAssembler(cfg AssemblerConfig) (*FrameAssembler, error) {
	def := DefaultAssemblerConfig()
	if cfg.Encoding == "" {
		cfg.Encoding = def.Encoding
	}
	if cfg.InputSampleRate == 0 {
		cfg.InputSampleRate = def.InputSampleRate
	}
	if cfg.TargetSampleRate == 0 {
		cfg.TargetSampleRate = def.TargetSampleRate
	}
	if cfg.FrameSize == 0 {
		cfg.FrameSize = def.FrameSize
	}

	switch cfg.Encoding {
	case EncodingPCM16, EncodingMuLaw, EncodingOpus:
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", cfg.Encoding)
	}

	a := &FrameAssembler{
		cfg:     cfg,
		pending: make([]float32, 0, cfg.FrameSize*4),
	}

	if cfg.InputSampleRate != cfg.TargetSampleRate {
		r, err := audio.NewResampler(cfg.InputSampleRate, cfg.TargetSampleRate,
			astiav.ChannelLayoutMono, astiav.ChannelLayoutMono)
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler: %w", err)
		}
		a.resampler = r
	}

	if cfg.Encoding == EncodingOpus {
		dec, err := audio.NewOpusDecoder(cfg.InputSampleRate, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to create opus decoder: %w", err)
		}
		a.opusDec = dec
	}

	return a, nil
}

// Push feeds one inbound chunk and returns all complete frames now
// available. The returned frames each contain exactly FrameSize samples.
func (a *FrameAssembler) Push(chunk []byte) ([]Frame, error) {
	if len(chunk) == 0 {
		return nil, nil
	}

	pcm := chunk
	switch a.cfg.Encoding {
	case EncodingMuLaw:
		pcm = audio.DecodeMuLaw(chunk)
	case EncodingOpus:
		decoded, err := a.opusDec.Decode(chunk)
		if err != nil {
			return nil, err
		}
		pcm = decoded
	}

	if a.resampler != nil {
		resampled, err := a.resampler.Resample(pcm)
		if err != nil {
			return nil, fmt.Errorf("resample failed: %w", err)
		}
		pcm = resampled
	}

	a.pending = append(a.pending, audio.BytesToFloat32(pcm)...)

	var frames []Frame
	for len(a.pending) >= a.cfg.FrameSize {
		samples := make([]float32, a.cfg.FrameSize)
		copy(samples, a.pending[:a.cfg.FrameSize])
		a.pending = a.pending[a.cfg.FrameSize:]

		frames = append(frames, Frame{
			Samples:    samples,
			SampleRate: a.cfg.TargetSampleRate,
		})
	}

	return frames, nil
}

// PendingSamples returns the number of buffered samples that have not yet
// filled a frame.
func (a *FrameAssembler) PendingSamples() int {
	return len(a.pending)
}

// Close releases decoder and resampler resources.
func (a *FrameAssembler) Close() {
	if a.resampler != nil {
		a.resampler.Free()
		a.resampler = nil
	}
	a.pending = nil
}
