package out

import (
	"context"

	"feedback_server/core/domain"
)

// ClassificationCache remembers model verdicts per feedback text.
type ClassificationCache interface {
	Get(ctx context.Context, text string) (*domain.Classification, bool, error)
	Set(ctx context.Context, text string, c *domain.Classification) error
}
