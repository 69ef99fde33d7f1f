package llm

import (
	"context"
	"fmt"

	"feedback_server/config"
	"feedback_server/core/port/out"

	"github.com/rs/zerolog"
)

// NewCompleter builds the text completer selected by LLM_PROVIDER.
func NewCompleter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (out.TextCompleter, error) {
	switch cfg.LLMProvider {
	case "openai":
		return NewClient(ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout(),
		}, log), nil
	case "bedrock":
		return NewBedrockClient(ctx, BedrockConfig{
			Region:    cfg.AWSRegion,
			Model:     cfg.BedrockModel,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   cfg.LLMTimeout(),
		}, log)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMProvider)
	}
}
