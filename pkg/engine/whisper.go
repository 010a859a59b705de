package engine

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/voxline/voxline/pkg/audio"
)

// WhisperConfig configures the OpenAI Whisper transcription provider.
type WhisperConfig struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string

	// BaseURL overrides the API endpoint. Falls back to OPENAI_BASE_URL.
	BaseURL string

	// Model defaults to whisper-1.
	Model string

	// Temperature for sampling, 0.0-1.0. Zero uses the API default.
	Temperature float32
}

// WhisperSTT implements STT using OpenAI's Whisper transcription API.
// Whisper has no PCM upload path, so each utterance is wrapped in a WAV
// container before the request.
type WhisperSTT struct {
	client *openai.Client
	cfg    WhisperConfig
	mu     sync.RWMutex
}

// NewWhisperSTT creates a Whisper transcription provider.
func NewWhisperSTT(cfg WhisperConfig) (*WhisperSTT, error) {
	if cfg.APIKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "OpenAI API key is required",
		}
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
		log.Printf("[Whisper STT] Using BaseURL: %s", clientConfig.BaseURL)
	}

	return &WhisperSTT{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}, nil
}

// Name returns the provider name.
func (w *WhisperSTT) Name() string {
	return "openai-whisper"
}

// Transcribe sends one utterance to the Whisper API.
func (w *WhisperSTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(pcm) == 0 {
		return "", &Error{
			Code:    ErrCodeInvalidAudio,
			Message: "audio data is empty",
		}
	}

	wav, err := audio.EncodeWAV(pcm, sampleRate, 1)
	if err != nil {
		return "", &Error{
			Code:    ErrCodeInvalidAudio,
			Message: "failed to wrap PCM as WAV",
			Err:     err,
		}
	}

	req := openai.AudioRequest{
		Model:    w.cfg.Model,
		FilePath: "audio.wav", // filename hint for the multipart upload
		Reader:   bytes.NewReader(wav),
		Language: language,
	}
	if w.cfg.Temperature > 0 {
		req.Temperature = w.cfg.Temperature
	}

	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", &Error{
			Code:    ErrCodeProviderError,
			Message: "Whisper API request failed",
			Err:     err,
		}
	}

	return strings.TrimSpace(resp.Text), nil
}
