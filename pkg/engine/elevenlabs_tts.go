// ElevenLabs HTTP TTS provider.
//
// Uses the ElevenLabs HTTP streaming endpoint and collects the chunks into
// one clip. Outputs 16kHz mono PCM.
//
// Reference: https://elevenlabs.io/docs/api-reference/text-to-speech/stream

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	elevenLabsEndpoint        = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsDefaultModel    = "eleven_multilingual_v2"
	elevenLabsOutputFormat    = "pcm_16000" // 16kHz mono PCM
	elevenLabsSampleRate      = 16000
	elevenLabsLatencyOptimize = 3 // max latency optimizations
)

// ElevenLabsConfig configures the ElevenLabs TTS provider.
type ElevenLabsConfig struct {
	// APIKey is the ElevenLabs API key. Required.
	APIKey string

	// VoiceID selects the voice. Required.
	VoiceID string

	// Endpoint overrides the API URL.
	Endpoint string

	// Model defaults to eleven_multilingual_v2.
	Model string

	// Speed is 0.7-1.2. Default 1.0.
	Speed float64

	// Stability is 0-1. Default 0.5.
	Stability float64

	// SimilarityBoost is 0-1. Default 0.75.
	SimilarityBoost float64
}

// ElevenLabsTTS implements TTS using the ElevenLabs HTTP streaming API.
type ElevenLabsTTS struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSetting `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSetting struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// NewElevenLabsTTS creates an ElevenLabs TTS provider.
func NewElevenLabsTTS(cfg ElevenLabsConfig) (*ElevenLabsTTS, error) {
	if cfg.APIKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "ElevenLabs API key is required",
		}
	}
	if cfg.VoiceID == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "ElevenLabs voice ID is required",
		}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = elevenLabsEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = elevenLabsDefaultModel
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost == 0 {
		cfg.SimilarityBoost = 0.75
	}

	return &ElevenLabsTTS{
		cfg:        cfg,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider name.
func (p *ElevenLabsTTS) Name() string {
	return "elevenlabs"
}

// SampleRate returns the rate of synthesized PCM audio.
func (p *ElevenLabsTTS) SampleRate() int {
	return elevenLabsSampleRate
}

// Synthesize converts text to speech via the ElevenLabs streaming endpoint.
func (p *ElevenLabsTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{}
	params.Set("output_format", elevenLabsOutputFormat)
	params.Set("optimize_streaming_latency", fmt.Sprintf("%d", elevenLabsLatencyOptimize))

	requestURL := fmt.Sprintf("%s/%s/stream?%s", p.cfg.Endpoint, p.cfg.VoiceID, params.Encode())

	body := elevenLabsRequest{
		Text:    text,
		ModelID: p.cfg.Model,
		VoiceSettings: &elevenLabsVoiceSetting{
			Stability:       p.cfg.Stability,
			SimilarityBoost: p.cfg.SimilarityBoost,
			Speed:           p.cfg.Speed,
		},
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", requestURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", p.cfg.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeNetworkError,
			Message: "ElevenLabs API request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, &Error{
			Code:    ErrCodeProviderError,
			Message: fmt.Sprintf("ElevenLabs API returned status %d: %s", resp.StatusCode, string(errBody)),
		}
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return audioData, nil
}
