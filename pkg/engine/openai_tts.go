package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

const (
	speechDefaultEndpoint   = "https://api.openai.com/v1/audio/speech"
	speechDefaultModel      = "tts-1"
	speechDefaultVoice      = "alloy"
	speechDefaultFormat     = "pcm" // raw PCM for pipeline compatibility
	speechDefaultSampleRate = 24000
	speechDefaultSpeed      = 1.2
)

// OpenAI supported voices
var speechVoices = []string{
	"alloy",   // Neutral and balanced
	"echo",    // More expressive
	"fable",   // British accent
	"onyx",    // Deep and authoritative
	"nova",    // Energetic and lively
	"shimmer", // Soft and gentle
}

// SpeechConfig configures the OpenAI speech synthesis provider.
type SpeechConfig struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string

	// Endpoint overrides the API URL.
	Endpoint string

	// Model is "tts-1" or "tts-1-hd". Default tts-1.
	Model string

	// Voice defaults to alloy.
	Voice string

	// Speed is 0.25-4.0. Default 1.2, slightly faster than neutral to
	// keep spoken replies snappy.
	Speed float64

	// Format is the response format. Default pcm (24kHz mono).
	Format string
}

// SpeechTTS implements TTS using OpenAI's speech synthesis endpoint.
type SpeechTTS struct {
	cfg        SpeechConfig
	httpClient *http.Client
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// NewSpeechTTS creates an OpenAI speech synthesis provider.
func NewSpeechTTS(cfg SpeechConfig) (*SpeechTTS, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "OpenAI API key is required",
		}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = speechDefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = speechDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = speechDefaultVoice
	}
	if cfg.Speed == 0 {
		cfg.Speed = speechDefaultSpeed
	}
	if cfg.Format == "" {
		cfg.Format = speechDefaultFormat
	}

	return &SpeechTTS{
		cfg:        cfg,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider name.
func (p *SpeechTTS) Name() string {
	return "openai"
}

// SampleRate returns the rate of synthesized PCM audio.
func (p *SpeechTTS) SampleRate() int {
	return speechDefaultSampleRate
}

// SupportedVoices returns the list of OpenAI voices.
func (p *SpeechTTS) SupportedVoices() []string {
	return speechVoices
}

// Synthesize converts text to speech via the OpenAI speech API.
func (p *SpeechTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload := speechRequest{
		Model:          p.cfg.Model,
		Input:          text,
		Voice:          p.cfg.Voice,
		ResponseFormat: p.cfg.Format,
		Speed:          p.cfg.Speed,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.cfg.Endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeNetworkError,
			Message: "speech API request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &Error{
			Code:    ErrCodeProviderError,
			Message: fmt.Sprintf("speech API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return audioData, nil
}
