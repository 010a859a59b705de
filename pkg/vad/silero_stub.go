//go:build !vad

package vad

import "fmt"

// SileroConfig holds configuration for the Silero VAD engine.
type SileroConfig struct {
	// ModelPath is the path to the silero_vad.onnx model file.
	ModelPath string
	// SampleRate of the input audio. Supported values are 8000 and 16000.
	SampleRate int
	// Threshold above which a frame is classified as speech. Default 0.5.
	Threshold float32
}

// Silero is unavailable in this build.
type Silero struct{}

// NewSilero returns an error: this binary was built without VAD support.
func NewSilero(cfg SileroConfig) (*Silero, error) {
	return nil, fmt.Errorf("silero vad not available: rebuild with -tags vad")
}

// InitRuntime is a no-op without the vad build tag.
func InitRuntime(libraryPath string) error {
	return fmt.Errorf("silero vad not available: rebuild with -tags vad")
}

// DestroyRuntime is a no-op without the vad build tag.
func DestroyRuntime() error { return nil }

func (sd *Silero) Classify(frame []float32) (Decision, error) {
	return Decision{}, fmt.Errorf("silero vad not available: rebuild with -tags vad")
}

func (sd *Silero) FrameSize() int { return 512 }

func (sd *Silero) Reset() error { return nil }

func (sd *Silero) Close() error { return nil }

var _ Engine = (*Silero)(nil)
