package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"feedback_server/core/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	DefaultBedrockRegion = "us-east-1"
	DefaultBedrockModel  = "anthropic.claude-3-haiku-20240307-v1:0"

	bedrockAnthropicVersion = "bedrock-2023-05-31"
)

// BedrockClient sends prompts to an Anthropic model hosted on AWS Bedrock.
type BedrockClient struct {
	client    *bedrockruntime.Client
	model     string
	maxTokens int
	timeout   time.Duration
	cb        *gobreaker.CircuitBreaker
}

type BedrockConfig struct {
	Region    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewBedrockClient loads AWS credentials from the environment or IAM role.
func NewBedrockClient(ctx context.Context, cfg BedrockConfig, log zerolog.Logger) (*BedrockClient, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultBedrockRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultBedrockModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockClient{
		client:    bedrockruntime.NewFromConfig(awsCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		cb:        newBreaker("bedrock", log),
	}, nil
}

func (b *BedrockClient) Name() string {
	return "bedrock:" + b.model
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete implements out.TextCompleter.
func (b *BedrockClient) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		System:           system,
		Messages:         []bedrockMessage{{Role: "user", Content: user}},
		MaxTokens:        b.maxTokens,
		Temperature:      DefaultTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	return guarded(ctx, b.cb, b.timeout, "bedrock.invoke", func(ctx context.Context) (string, error) {
		resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(b.model),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err != nil {
			return "", err
		}

		var out bedrockResponse
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}

		var sb strings.Builder
		for _, block := range out.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", domain.ErrEmptyReply
		}
		return sb.String(), nil
	})
}
