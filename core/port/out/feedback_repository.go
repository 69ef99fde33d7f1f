package out

import (
	"context"
	"time"

	"feedback_server/core/domain"
)

// FeedbackRepository persists raw feedback rows.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *domain.Feedback) error
	// LinkProblem attaches the feedback to a problem, marks it processed and
	// stores its sentiment and entities.
	LinkProblem(ctx context.Context, fb *domain.Feedback, problemID int64, at time.Time) error
	GetByID(ctx context.Context, id int64) (*domain.Feedback, error)
	CountByProblem(ctx context.Context, problemID int64) (int, error)
	Count(ctx context.Context) (int, error)
}

// ProblemRepository persists problem clusters.
type ProblemRepository interface {
	// ListOpenByCategory returns pending and processing problems of a category
	// ordered by ascending id. Merge candidates never cross categories.
	ListOpenByCategory(ctx context.Context, category domain.Category) ([]*domain.Problem, error)
	Create(ctx context.Context, p *domain.Problem) error
	// IncrementFeedbackCount fails with domain.ErrNotFound unless the problem
	// exists and is still open.
	IncrementFeedbackCount(ctx context.Context, id int64, at time.Time) error
	GetByID(ctx context.Context, id int64) (*domain.Problem, error)
	List(ctx context.Context, filter domain.ProblemFilter) ([]*domain.Problem, int, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ProblemStatus, at time.Time) error
	// CountByStatus returns the number of problems per status. Statuses with
	// no problems may be missing from the map.
	CountByStatus(ctx context.Context) (map[domain.ProblemStatus]int, error)
}

// ExampleRepository persists feedback examples attached to problems.
type ExampleRepository interface {
	Create(ctx context.Context, ex *domain.FeedbackExample) error
	// ListByProblem returns up to limit examples oldest first; limit <= 0 means all.
	ListByProblem(ctx context.Context, problemID int64, limit int) ([]*domain.FeedbackExample, error)
}

// TxScope exposes repositories bound to one open transaction.
type TxScope interface {
	Feedback() FeedbackRepository
	Problems() ProblemRepository
	Examples() ExampleRepository
	// Lock serializes writers on key until the transaction ends.
	Lock(ctx context.Context, key string) error
}

// TxRunner runs fn inside a transaction. A non-nil error from fn rolls back
// every write made through the scope.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx TxScope) error) error
}

// Store bundles the non-transactional repositories with the runner.
type Store interface {
	TxRunner
	Feedback() FeedbackRepository
	Problems() ProblemRepository
	Examples() ExampleRepository
}
