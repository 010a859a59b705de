// Package engine abstracts the external AI services the orchestrator calls:
// speech-to-text, large language models and text-to-speech. Each concern is
// a small interface with one or more provider implementations, so the dialog
// layer never depends on a vendor SDK directly.
package engine

import "context"

// Message roles for LLM conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of LLM conversation history.
type Message struct {
	Role    string
	Content string
}

// STT transcribes a complete audio segment to text.
type STT interface {
	// Name returns the provider name (e.g., "openai-whisper").
	Name() string

	// Transcribe converts a finished utterance to text. pcm is 16-bit
	// little-endian mono PCM at sampleRate. language is an ISO 639-1 code
	// or empty for auto-detection. The returned text is trimmed; it may
	// be empty when the audio contained no intelligible speech.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error)
}

// FragmentStream yields LLM response text incrementally. The consumer calls
// Next until it returns false, then checks Err. Close releases the
// underlying connection and may be called at any point to abandon the
// stream.
type FragmentStream interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

// LLM generates a streaming response to a conversation.
type LLM interface {
	// Name returns the provider name (e.g., "openai", "gemini").
	Name() string

	// Generate starts a streaming completion for the given messages.
	// Fragments arrive in model order; cancelling ctx aborts the stream.
	Generate(ctx context.Context, messages []Message) (FragmentStream, error)
}

// TTS synthesizes one unit of text to audio.
type TTS interface {
	// Name returns the provider name (e.g., "openai", "elevenlabs").
	Name() string

	// Synthesize converts text to audio and returns the complete clip.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// SampleRate returns the rate of the synthesized PCM audio.
	SampleRate() int
}

// Error wraps provider failures with a classification code.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInvalidConfig
	ErrCodeInvalidAudio
	ErrCodeAuthenticationFailed
	ErrCodeQuotaExceeded
	ErrCodeNetworkError
	ErrCodeProviderError
)
