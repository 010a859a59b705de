package engine

import (
	"context"
	"sync"
	"time"
)

// MockSTT is a test double for STT.
type MockSTT struct {
	// TranscribeFunc overrides the default behavior when set.
	TranscribeFunc func(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error)

	// Text is returned when TranscribeFunc is nil.
	Text string

	// Err is returned when TranscribeFunc is nil.
	Err error

	mu    sync.Mutex
	calls int
}

func (m *MockSTT) Name() string { return "mock-stt" }

func (m *MockSTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, pcm, sampleRate, language)
	}
	return m.Text, m.Err
}

// CallCount returns how many times Transcribe was invoked.
func (m *MockSTT) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockLLM is a test double for LLM. By default it streams Fragments one at
// a time, waiting FragmentDelay between them.
type MockLLM struct {
	// GenerateFunc overrides the default behavior when set.
	GenerateFunc func(ctx context.Context, messages []Message) (FragmentStream, error)

	// Fragments are streamed in order when GenerateFunc is nil.
	Fragments []string

	// FragmentDelay is the pause before each fragment is handed out,
	// simulating model latency so cancellation races can be exercised.
	FragmentDelay time.Duration

	// Err is returned directly from Generate.
	Err error

	// StreamErr is surfaced by the stream's Err after FailAfter fragments.
	StreamErr error

	// FailAfter is the number of fragments delivered before StreamErr.
	FailAfter int

	mu    sync.Mutex
	calls [][]Message
}

func (m *MockLLM) Name() string { return "mock-llm" }

func (m *MockLLM) Generate(ctx context.Context, messages []Message) (FragmentStream, error) {
	m.mu.Lock()
	snapshot := make([]Message, len(messages))
	copy(snapshot, messages)
	m.calls = append(m.calls, snapshot)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	return &mockStream{
		ctx:       ctx,
		fragments: m.Fragments,
		delay:     m.FragmentDelay,
		streamErr: m.StreamErr,
		failAfter: m.FailAfter,
	}, nil
}

// Calls returns the message histories passed to Generate.
func (m *MockLLM) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockStream struct {
	ctx       context.Context
	fragments []string
	delay     time.Duration
	streamErr error
	failAfter int

	pos    int
	frag   string
	err    error
	closed bool
}

func (s *mockStream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if s.streamErr != nil && s.pos >= s.failAfter {
		s.err = s.streamErr
		return false
	}
	if s.pos >= len(s.fragments) {
		return false
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return false
		}
	} else if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}

	s.frag = s.fragments[s.pos]
	s.pos++
	return true
}

func (s *mockStream) Fragment() string { return s.frag }
func (s *mockStream) Err() error       { return s.err }
func (s *mockStream) Close() error {
	s.closed = true
	return nil
}

// MockTTS is a test double for TTS.
type MockTTS struct {
	// SynthesizeFunc overrides the default behavior when set.
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)

	// Audio is returned for every call when SynthesizeFunc is nil.
	Audio []byte

	// Delay simulates synthesis latency.
	Delay time.Duration

	// Err is returned when SynthesizeFunc is nil.
	Err error

	// Rate is the reported sample rate. Defaults to 24000.
	Rate int

	mu    sync.Mutex
	texts []string
}

func (m *MockTTS) Name() string { return "mock-tts" }

func (m *MockTTS) SampleRate() int {
	if m.Rate > 0 {
		return m.Rate
	}
	return 24000
}

func (m *MockTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Audio != nil {
		return m.Audio, nil
	}
	return []byte(text), nil
}

// Texts returns every text passed to Synthesize.
func (m *MockTTS) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}
