package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
)

// ChatConfig configures the OpenAI chat completion provider.
type ChatConfig struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string

	// BaseURL overrides the API endpoint. Falls back to OPENAI_BASE_URL.
	BaseURL string

	// Model defaults to gpt-4o-mini.
	Model string

	// MaxTokens caps the response length. Zero means no cap.
	MaxTokens int
}

// ChatLLM implements LLM using OpenAI chat completions with SSE streaming.
type ChatLLM struct {
	client *openai.Client
	cfg    ChatConfig
}

// NewChatLLM creates an OpenAI chat completion provider.
func NewChatLLM(cfg ChatConfig) (*ChatLLM, error) {
	if cfg.APIKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "OpenAI API key is required",
		}
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &ChatLLM{client: &client, cfg: cfg}, nil
}

// Name returns the provider name.
func (c *ChatLLM) Name() string {
	return "openai"
}

// Generate starts a streaming chat completion.
func (c *ChatLLM) Generate(ctx context.Context, messages []Message) (FragmentStream, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("empty message history")
	}

	params := openai.ChatCompletionNewParams{
		Messages: toChatMessages(messages),
		Model:    shared.ChatModel(c.cfg.Model),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxTokens))
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	return &chatStream{stream: stream}, nil
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// chatStream adapts the SSE stream to FragmentStream, skipping empty deltas.
type chatStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	frag   string
}

func (s *chatStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		s.frag = delta
		return true
	}
	return false
}

func (s *chatStream) Fragment() string {
	return s.frag
}

func (s *chatStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return &Error{
			Code:    ErrCodeProviderError,
			Message: "chat completion stream failed",
			Err:     err,
		}
	}
	return nil
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}
