package llm

import (
	"context"
	"time"

	"feedback_server/core/domain"
	"feedback_server/pkg/httputil"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.2
	DefaultTimeout     = 30 * time.Second
)

// Client talks to any OpenAI compatible chat completion endpoint.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	cb          *gobreaker.CircuitBreaker
}

type ClientConfig struct {
	APIKey      string
	BaseURL     string // empty means api.openai.com
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = httputil.NewClient(httputil.DefaultClientConfig())

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		timeout:     timeout,
		cb:          newBreaker("openai", log),
	}
}

func (c *Client) Name() string {
	return "openai:" + c.model
}

// Complete implements out.TextCompleter.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return guarded(ctx, c.cb, c.timeout, "openai.chat", func(ctx context.Context) (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", domain.ErrEmptyReply
		}
		return resp.Choices[0].Message.Content, nil
	})
}
