// Package vad provides voice activity detection for the ingestion path.
//
// The production engine wraps the Silero VAD ONNX model; tests use the Mock
// engine. Engines classify one fixed-size frame at a time and must be fed
// frames of exactly FrameSize samples.
package vad

// Decision is the result of classifying a single audio frame.
type Decision struct {
	// Speech is true when the frame's probability exceeds the engine threshold.
	Speech bool

	// Probability is the raw speech probability in [0, 1].
	Probability float32
}

// Engine classifies fixed-size audio frames as speech or silence.
// Implementations keep internal model state across frames, so a single
// Engine instance must not be shared between sessions.
type Engine interface {
	// Classify runs inference on one frame of normalized float32 samples
	// in [-1, 1]. The frame must contain exactly FrameSize() samples.
	Classify(frame []float32) (Decision, error)

	// FrameSize returns the exact number of samples the engine requires
	// per classification call.
	FrameSize() int

	// Reset clears internal model state. Call when starting a new stream.
	Reset() error

	// Close releases resources held by the engine.
	Close() error
}
