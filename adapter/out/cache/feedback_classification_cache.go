package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"feedback_server/core/domain"
	"feedback_server/core/port/out"
	pkgcache "feedback_server/pkg/cache"
)

// KeyPrefix namespaces classification entries in Redis.
const KeyPrefix = "feedback:classify:"

// ClassificationCache keeps model verdicts keyed by a hash of the trimmed
// text, in Redis, in process memory, or both.
type ClassificationCache struct {
	cache pkgcache.JSONStore
	ttl   time.Duration
}

var _ out.ClassificationCache = (*ClassificationCache)(nil)

func NewClassificationCache(cache pkgcache.JSONStore, ttl time.Duration) *ClassificationCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ClassificationCache{cache: cache, ttl: ttl}
}

// TextKey hashes text into a cache key.
func TextKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func (c *ClassificationCache) Get(ctx context.Context, text string) (*domain.Classification, bool, error) {
	var cl domain.Classification
	found, err := c.cache.GetJSON(ctx, TextKey(text), &cl)
	if err != nil || !found {
		return nil, false, err
	}
	return &cl, true, nil
}

func (c *ClassificationCache) Set(ctx context.Context, text string, cl *domain.Classification) error {
	return c.cache.SetJSON(ctx, TextKey(text), cl, c.ttl)
}
