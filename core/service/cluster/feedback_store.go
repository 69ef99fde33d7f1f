// Package cluster merges classified feedback into problem clusters.
package cluster

import (
	"context"
	"errors"
	"time"

	"feedback_server/core/domain"
	"feedback_server/core/port/out"

	"github.com/rs/zerolog"
)

// Store is the only writer of Problem.FeedbackCount. Each MergeOrCreate runs
// as one transaction serialized per category.
type Store struct {
	tx      out.TxRunner
	matcher Matcher
	locks   *keyedMutex
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMatcher replaces the character overlap matcher.
func WithMatcher(m Matcher) Option {
	return func(s *Store) { s.matcher = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(tx out.TxRunner, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		tx:      tx,
		matcher: NewCharOverlapMatcher(DefaultMinShared),
		locks:   newKeyedMutex(),
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func lockKey(c domain.Category) string {
	return "problem:" + string(c)
}

// MergeOrCreate attaches fb to the first open problem of the same category
// whose summary matches, or seeds a new problem. created reports which.
// On error nothing was written and the error is a *domain.StoreTransactionError.
func (s *Store) MergeOrCreate(ctx context.Context, fb *domain.Feedback, c *domain.Classification) (*domain.Problem, bool, error) {
	if fb == nil || c == nil {
		return nil, false, &domain.StoreTransactionError{Step: "input", Err: errors.New("feedback and classification are required")}
	}

	key := lockKey(c.Category)
	unlock := s.locks.Lock(key)
	defer unlock()

	var (
		problem *domain.Problem
		created bool
	)

	err := s.tx.WithTx(ctx, func(tx out.TxScope) error {
		if err := tx.Lock(ctx, key); err != nil {
			return &domain.StoreTransactionError{Step: "lock", Err: err}
		}

		candidates, err := tx.Problems().ListOpenByCategory(ctx, c.Category)
		if err != nil {
			return &domain.StoreTransactionError{Step: "list candidates", Err: err}
		}

		now := s.now()
		if match := s.matcher.Resolve(c.Summary, candidates); match != nil {
			if err := tx.Problems().IncrementFeedbackCount(ctx, match.ID, now); err != nil {
				return &domain.StoreTransactionError{Step: "increment count", Err: err}
			}
			p := *match
			p.FeedbackCount++
			p.UpdateTime = now
			problem = &p
		} else {
			p := domain.NewProblem(fb.Content, c, now)
			if err := tx.Problems().Create(ctx, p); err != nil {
				return &domain.StoreTransactionError{Step: "create problem", Err: err}
			}
			problem = p
			created = true
		}

		example := &domain.FeedbackExample{
			ProblemID:  problem.ID,
			Content:    fb.Content,
			CreateTime: now,
		}
		if err := tx.Examples().Create(ctx, example); err != nil {
			return &domain.StoreTransactionError{Step: "create example", Err: err}
		}

		if err := tx.Feedback().LinkProblem(ctx, fb, problem.ID, now); err != nil {
			return &domain.StoreTransactionError{Step: "link feedback", Err: err}
		}
		return nil
	})
	if err != nil {
		var ste *domain.StoreTransactionError
		if !errors.As(err, &ste) {
			err = &domain.StoreTransactionError{Step: "commit", Err: err}
		}
		return nil, false, err
	}

	fb.ProblemID = &problem.ID
	fb.Status = domain.FeedbackProcessed
	fb.UpdateTime = problem.UpdateTime

	s.log.Debug().
		Int64("feedback_id", fb.ID).
		Int64("problem_id", problem.ID).
		Bool("created", created).
		Int("feedback_count", problem.FeedbackCount).
		Msg("feedback clustered")

	return problem, created, nil
}
