package engine

import (
	"context"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiConfig configures the Google Gemini provider.
type GeminiConfig struct {
	// APIKey is the Gemini API key. Required.
	APIKey string

	// Model defaults to gemini-2.0-flash.
	Model string
}

// GeminiLLM implements LLM using the Google Gemini streaming API.
type GeminiLLM struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiLLM creates a Gemini provider.
func NewGeminiLLM(ctx context.Context, cfg GeminiConfig) (*GeminiLLM, error) {
	if cfg.APIKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "Gemini API key is required",
		}
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGoogleAI,
	})
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeProviderError,
			Message: "failed to create Gemini client",
			Err:     err,
		}
	}

	return &GeminiLLM{client: client, cfg: cfg}, nil
}

// Name returns the provider name.
func (g *GeminiLLM) Name() string {
	return "gemini"
}

// Generate starts a streaming Gemini completion. The system message, if
// present, becomes the system instruction; the rest map to user/model turns.
func (g *GeminiLLM) Generate(ctx context.Context, messages []Message) (FragmentStream, error) {
	var genCfg *genai.GenerateContentConfig
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			genCfg = &genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{
					Parts: []*genai.Part{{Text: m.Content}},
				},
			}
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &geminiStream{
		frags:  make(chan string, 16),
		cancel: cancel,
	}

	// The genai stream is an iterator, not a pull API. Drain it in a
	// goroutine so FragmentStream consumers keep their pull loop.
	go func() {
		defer close(s.frags)
		stream := g.client.Models.GenerateContentStream(ctx, g.cfg.Model, contents, genCfg)
		for resp, err := range stream {
			if err != nil {
				s.setErr(&Error{
					Code:    ErrCodeProviderError,
					Message: "Gemini stream failed",
					Err:     err,
				})
				return
			}
			chunk := collectGeminiText(resp)
			if chunk == "" {
				continue
			}
			select {
			case s.frags <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return s, nil
}

type geminiStream struct {
	frags  chan string
	cancel context.CancelFunc
	frag   string

	mu  sync.Mutex
	err error
}

func (s *geminiStream) Next() bool {
	frag, ok := <-s.frags
	if !ok {
		return false
	}
	s.frag = frag
	return true
}

func (s *geminiStream) Fragment() string {
	return s.frag
}

func (s *geminiStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *geminiStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *geminiStream) Close() error {
	s.cancel()
	return nil
}

func collectGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
	}

	return builder.String()
}
