package audio

import (
	"log"
	"sync"
)

const (
	pacerBytesPerSample = 2
	pacerFrameMs        = 20

	// warmupFrames is how many frames must accumulate after a Reset
	// before playback starts. Absorbs synthesis jitter at reply onset.
	warmupFrames = 10
)

// PacerConfig configures a Pacer.
type PacerConfig struct {
	// SampleRate of the PCM fed into the pacer. Default 24000.
	SampleRate int

	// Channels of the PCM. Default 1.
	Channels int
}

// DefaultPacerConfig returns the default pacer configuration.
func DefaultPacerConfig() PacerConfig {
	return PacerConfig{SampleRate: 24000, Channels: 1}
}

// Pacer turns bursty synthesized audio into a steady stream of fixed
// 20ms frames for a playback device. It buffers and slices only, no
// resampling. FlushWithFadeOut supports interruption: the tail of the
// buffered reply is faded to silence instead of cut mid-sample.
type Pacer struct {
	mu            sync.Mutex
	buffer        []byte
	warming       bool
	sampleRate    int
	channels      int
	bytesPerFrame int
}

// NewPacer creates a pacer. A zero config falls back to defaults.
func NewPacer(cfg PacerConfig) *Pacer {
	def := DefaultPacerConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}

	samplesPerFrame := cfg.SampleRate * pacerFrameMs / 1000
	bytesPerFrame := samplesPerFrame * pacerBytesPerSample * cfg.Channels

	return &Pacer{
		buffer:        make([]byte, 0, bytesPerFrame*100),
		sampleRate:    cfg.SampleRate,
		channels:      cfg.Channels,
		bytesPerFrame: bytesPerFrame,
	}
}

// Write appends PCM data to the playback buffer.
func (p *Pacer) Write(data []byte) {
	if len(data) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = append(p.buffer, data...)
}

// ReadFrame returns the next 20ms frame. Short or empty buffers are
// padded with silence so the playback clock never starves.
func (p *Pacer) ReadFrame() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := make([]byte, p.bytesPerFrame)

	if p.warming {
		if len(p.buffer) < p.bytesPerFrame*warmupFrames {
			return frame
		}
		p.warming = false
	}

	if len(p.buffer) >= p.bytesPerFrame {
		copy(frame, p.buffer[:p.bytesPerFrame])
		p.buffer = p.buffer[p.bytesPerFrame:]
	} else if len(p.buffer) > 0 {
		copy(frame, p.buffer)
		p.buffer = p.buffer[:0]
	}

	return frame
}

// Flush discards buffered audio and re-enters the warmup state.
func (p *Pacer) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = p.buffer[:0]
	p.warming = true
}

// FlushWithFadeOut keeps up to fadeOutMs of buffered audio, applies a
// linear fade to it and discards the rest. fadeOutMs of 0 flushes
// immediately.
func (p *Pacer) FlushWithFadeOut(fadeOutMs int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fadeOutMs > 0 && len(p.buffer) > 0 {
		fadeBytes := p.sampleRate * fadeOutMs / 1000 * pacerBytesPerSample * p.channels
		if fadeBytes > len(p.buffer) {
			fadeBytes = len(p.buffer)
		}

		samples := fadeBytes / pacerBytesPerSample
		for i := 0; i < samples; i++ {
			factor := float32(samples-i) / float32(samples)
			idx := i * pacerBytesPerSample
			sample := int16(p.buffer[idx]) | int16(p.buffer[idx+1])<<8
			sample = int16(float32(sample) * factor)
			p.buffer[idx] = byte(sample)
			p.buffer[idx+1] = byte(sample >> 8)
		}

		p.buffer = p.buffer[:fadeBytes]
		log.Printf("[Pacer] Faded out %d bytes, discarded rest", fadeBytes)
	} else {
		p.buffer = p.buffer[:0]
	}

	p.warming = true
}

// Available returns the buffered byte count.
func (p *Pacer) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// BytesPerFrame returns the size of one 20ms frame in bytes.
func (p *Pacer) BytesPerFrame() int {
	return p.bytesPerFrame
}

// SampleRate returns the configured sample rate.
func (p *Pacer) SampleRate() int {
	return p.sampleRate
}
