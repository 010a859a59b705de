package vad

import "sync"

// DefaultMockFrameSize matches the Silero 16kHz window.
const DefaultMockFrameSize = 512

// Mock is a mock implementation of Engine for testing.
// It allows customizing the behavior of Classify through ClassifyFunc.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	// If nil, every frame is classified as silence with probability 0.
	ClassifyFunc func(frame []float32) (Decision, error)

	// Size is the frame size reported by FrameSize.
	// Zero means DefaultMockFrameSize.
	Size int

	// ClassifyCalls records all frames passed to Classify.
	ClassifyCalls [][]float32

	// ResetCalled tracks if Reset was called.
	ResetCalled bool

	// CloseCalled tracks if Close was called.
	CloseCalled bool

	mu sync.Mutex
}

// NewMock creates a Mock with default behavior (everything is silence).
func NewMock() *Mock {
	return &Mock{
		ClassifyCalls: make([][]float32, 0),
	}
}

// NewMockWithProbability creates a Mock that returns a fixed probability,
// classified against a 0.5 threshold.
func NewMockWithProbability(prob float32) *Mock {
	return &Mock{
		ClassifyFunc: func(frame []float32) (Decision, error) {
			return Decision{Speech: prob > 0.5, Probability: prob}, nil
		},
		ClassifyCalls: make([][]float32, 0),
	}
}

// NewMockWithSequence creates a Mock that returns probabilities in sequence,
// cycling back to the beginning once exhausted.
func NewMockWithSequence(probs []float32) *Mock {
	idx := 0
	return &Mock{
		ClassifyFunc: func(frame []float32) (Decision, error) {
			if len(probs) == 0 {
				return Decision{}, nil
			}
			prob := probs[idx]
			idx = (idx + 1) % len(probs)
			return Decision{Speech: prob > 0.5, Probability: prob}, nil
		},
		ClassifyCalls: make([][]float32, 0),
	}
}

// Classify implements Engine.
func (m *Mock) Classify(frame []float32) (Decision, error) {
	m.mu.Lock()
	frameCopy := make([]float32, len(frame))
	copy(frameCopy, frame)
	m.ClassifyCalls = append(m.ClassifyCalls, frameCopy)
	m.mu.Unlock()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(frame)
	}
	return Decision{}, nil
}

// FrameSize implements Engine.
func (m *Mock) FrameSize() int {
	if m.Size > 0 {
		return m.Size
	}
	return DefaultMockFrameSize
}

// Reset implements Engine.
func (m *Mock) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCalled = true
	return nil
}

// Close implements Engine.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return nil
}

// ClassifyCallCount returns the number of Classify invocations.
func (m *Mock) ClassifyCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ClassifyCalls)
}

var _ Engine = (*Mock)(nil)
