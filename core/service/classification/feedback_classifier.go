// Package classification turns feedback text into a category, summary,
// severity and sentiment, falling back to keyword rules when the model fails.
package classification

import (
	"context"

	"feedback_server/core/domain"
	"feedback_server/core/port/out"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Source tells where a classification came from.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Analyzer is the model side of classification.
type Analyzer interface {
	AnalyzeFeedback(ctx context.Context, text string) (*domain.Classification, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// Result is the outcome of Classify. Err holds the absorbed classifier error
// when Source is SourceFallback.
type Result struct {
	Classification *domain.Classification
	Source         Source
	Err            error
}

// Classifier never fails: transport and parse errors are absorbed by the
// keyword fallback.
type Classifier struct {
	analyzer Analyzer
	cache    out.ClassificationCache
	group    singleflight.Group
	log      zerolog.Logger
}

// NewClassifier creates a classifier. cache may be nil.
func NewClassifier(analyzer Analyzer, cache out.ClassificationCache, log zerolog.Logger) *Classifier {
	return &Classifier{
		analyzer: analyzer,
		cache:    cache,
		log:      log,
	}
}

type flightResult struct {
	c      *domain.Classification
	source Source
	err    error
}

// Classify returns a complete classification for text.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, text)
		if err != nil {
			c.log.Warn().Err(err).Msg("classification cache read failed")
		} else if ok {
			return Result{Classification: clone(cached), Source: SourceCache}
		}
	}

	v, _, _ := c.group.Do(text, func() (interface{}, error) {
		return c.classify(ctx, text), nil
	})
	fr := v.(flightResult)
	return Result{Classification: clone(fr.c), Source: fr.source, Err: fr.err}
}

func (c *Classifier) classify(ctx context.Context, text string) flightResult {
	verdict, err := c.analyzer.AnalyzeFeedback(ctx, text)
	if err != nil {
		c.log.Warn().Err(err).Msg("model classification failed, using keyword fallback")
		fb := FallbackClassification(text)
		fb.Summary = c.summarize(ctx, text)
		return flightResult{c: fb, source: SourceFallback, err: err}
	}

	if verdict.Summary == "" {
		verdict.Summary = c.summarize(ctx, text)
		return flightResult{c: verdict, source: SourceLLM}
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, text, verdict); err != nil {
			c.log.Warn().Err(err).Msg("classification cache write failed")
		}
	}
	return flightResult{c: verdict, source: SourceLLM}
}

// summarize asks the model for a summary and truncates the text when that
// fails or comes back empty. Model summaries are held to the same length.
func (c *Classifier) summarize(ctx context.Context, text string) string {
	s, err := c.analyzer.Summarize(ctx, text)
	if err != nil {
		c.log.Debug().Err(err).Msg("summary call failed, truncating")
		return TruncateSummary(text)
	}
	if s == "" {
		return TruncateSummary(text)
	}
	return TruncateSummary(s)
}

func clone(c *domain.Classification) *domain.Classification {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Entities = append([]string{}, c.Entities...)
	return &cp
}
