// Package genai generates free-form reflective replies with the OpenAI chat
// API. It is an optional layer: when disabled or failing, callers fall back
// to the configured quote pipeline, so no core path depends on it.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// systemPrompt frames the model as a brief, warm companion quoting ancient
// philosophy. Responses are spoken aloud, so brevity matters.
const systemPrompt = "You are Voiceback, a warm and brief voice companion. A caller has shared how " +
	"they feel. Respond in two or three short spoken sentences: acknowledge the feeling, then offer " +
	"one piece of perspective drawn from ancient philosophy, naming the philosopher. Never give " +
	"medical or professional advice. Do not use lists, markdown, or emoji."

// Client produces generative replies. Safe for concurrent use.
type Client struct {
	client      openai.Client
	model       openai.ChatModel
	maxTokens   int64
	temperature float64
	timeout     time.Duration
}

// Opts holds configuration options for the client.
type Opts struct {
	APIKey      string
	Model       openai.ChatModel
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
}

// Option defines a configuration option for the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the OPENAI_API_KEY
// environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout bounds each completion request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// NewClient creates a generative reply client. The API key falls back to
// OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       openai.ChatModelGPT4oMini,
		MaxTokens:   200,
		Temperature: 0.7,
		Timeout:     8 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required (set OPENAI_API_KEY)")
	}

	return &Client{
		client:      openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

// Reply generates a spoken reply for the caller's transcript. An empty model
// response is an error so callers can fall back.
func (c *Client) Reply(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", fmt.Errorf("transcript is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(transcript),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("chat completion returned empty content")
	}

	slog.Debug("Client.Reply: generated reply", "model", c.model, "elapsed", time.Since(start))
	return reply, nil
}
