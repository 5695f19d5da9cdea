package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultTimeout = 15 * time.Second

	emptyMessageReply = "Please provide a message so I can help."
	systemPrompt      = "You are the Patient 360 portal assistant. Answer briefly and do not give a diagnosis."
)

// Config configures the responder. An empty APIKey disables delegation.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Reply is the chatbot answer returned to the caller.
type Reply struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

// completer is the subset of *openai.Client used here.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Responder answers chat messages, delegating to Gemini's OpenAI-compatible
// endpoint when a key is configured and falling back to a deterministic
// echo reply otherwise or on any delegation failure.
type Responder struct {
	client  completer
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

func NewResponder(cfg Config, logger zerolog.Logger) *Responder {
	r := &Responder{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With().Str("component", "chatbot").Logger(),
	}
	if r.model == "" {
		r.model = DefaultModel
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = DefaultBaseURL
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		r.client = openai.NewClientWithConfig(clientConfig)
	}
	return r
}

// Model returns the configured model name.
func (r *Responder) Model() string { return r.model }

// Delegating reports whether replies are sent to the external model.
func (r *Responder) Delegating() bool { return r.client != nil }

// Respond never fails: delegation errors are logged and replaced by the
// fallback reply.
func (r *Responder) Respond(ctx context.Context, message string, extra map[string]interface{}) Reply {
	if strings.TrimSpace(message) == "" {
		return Reply{Reply: emptyMessageReply, Model: r.model}
	}
	if r.client == nil {
		return Reply{Reply: FallbackReply(message), Model: r.model}
	}

	text, err := r.delegate(ctx, message, extra)
	if err != nil {
		r.logger.Warn().Err(err).Msg("chat delegation failed; using fallback reply")
		return Reply{Reply: FallbackReply(message), Model: r.model}
	}
	return Reply{Reply: text, Model: r.model}
}

func (r *Responder) delegate(ctx context.Context, message string, extra map[string]interface{}) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if len(extra) > 0 {
		raw, err := json.Marshal(extra)
		if err != nil {
			return "", err
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Context: " + string(raw),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion returned empty content")
	}
	r.logger.Debug().Dur("latency", time.Since(start)).Int("total_tokens", resp.Usage.TotalTokens).Msg("chat completion")
	return text, nil
}

// FallbackReply is the deterministic reply used when no model answers.
func FallbackReply(message string) string {
	if strings.TrimSpace(message) == "" {
		return emptyMessageReply
	}
	return "[Demo Gemini] You said: " + message
}
