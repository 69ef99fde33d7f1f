package problem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedback_server/core/domain"
	"feedback_server/core/port/in"
	"feedback_server/core/port/out"
)

// listExamples is the number of example texts attached to each listed problem.
const listExamples = 5

// Service implements in.ProblemService
type Service struct {
	feedback out.FeedbackRepository
	problems out.ProblemRepository
	examples out.ExampleRepository
	now      func() time.Time
}

// NewService creates a new ProblemService
func NewService(store out.Store) *Service {
	return &Service{
		feedback: store.Feedback(),
		problems: store.Problems(),
		examples: store.Examples(),
		now:      time.Now,
	}
}

var _ in.ProblemService = (*Service)(nil)

// =============================================================================
// Queries
// =============================================================================

func (s *Service) List(ctx context.Context, filter domain.ProblemFilter) (*in.ProblemListResponse, error) {
	filter.Normalize()

	problems, total, err := s.problems.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}

	items := make([]*domain.ProblemDetail, 0, len(problems))
	for _, p := range problems {
		detail, err := s.withExamples(ctx, p, listExamples)
		if err != nil {
			return nil, err
		}
		items = append(items, detail)
	}

	return &in.ProblemListResponse{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.ProblemDetail, error) {
	p, err := s.problems.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get problem %d: %w", id, err)
	}
	return s.withExamples(ctx, p, 0)
}

// Stats returns the dashboard counters.
func (s *Service) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	feedback, err := s.feedback.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}
	byStatus, err := s.problems.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count problems: %w", err)
	}

	stats := &domain.DashboardStats{
		TotalFeedbacks:   feedback,
		PendingProblems:  byStatus[domain.ProblemPending],
		ResolvedProblems: byStatus[domain.ProblemResolved],
	}
	for _, n := range byStatus {
		stats.TotalProblems += n
	}
	return stats, nil
}

func (s *Service) withExamples(ctx context.Context, p *domain.Problem, limit int) (*domain.ProblemDetail, error) {
	examples, err := s.examples.ListByProblem(ctx, p.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list examples of problem %d: %w", p.ID, err)
	}
	texts := make([]string, 0, len(examples))
	for _, ex := range examples {
		texts = append(texts, ex.Content)
	}
	return &domain.ProblemDetail{Problem: p, Examples: texts}, nil
}

// =============================================================================
// Status
// =============================================================================

func (s *Service) Resolve(ctx context.Context, id int64) (*domain.Problem, error) {
	return s.UpdateStatus(ctx, id, domain.ProblemResolved)
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, status domain.ProblemStatus) (*domain.Problem, error) {
	if !status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Err: domain.ErrInvalidStatus}
	}

	if err := s.problems.UpdateStatus(ctx, id, status, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("problem %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update problem %d status: %w", id, err)
	}

	p, err := s.problems.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get problem %d: %w", id, err)
	}
	return p, nil
}
