// Package memory is an in-process implementation of the store ports, used by
// tests and the single-binary import mode when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"feedback_server/core/domain"
	"feedback_server/core/port/out"
)

// Operation names passed to a FaultFunc.
const (
	OpFeedbackCreate   = "feedback.create"
	OpFeedbackLink     = "feedback.link"
	OpProblemCreate    = "problem.create"
	OpProblemIncrement = "problem.increment"
	OpExampleCreate    = "example.create"
)

// FaultFunc lets tests fail a single write. content is the feedback text the
// write belongs to when known.
type FaultFunc func(op, content string) error

// Store keeps everything in maps. Writes made inside WithTx are undone when
// the callback fails.
type Store struct {
	mu        sync.Mutex
	nextID    int64
	feedback  map[int64]*domain.Feedback
	problems  map[int64]*domain.Problem
	examples  map[int64]*domain.FeedbackExample
	fault     FaultFunc
	keyLocks  map[string]*sync.Mutex
	keyLockMu sync.Mutex
}

var _ out.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		feedback: make(map[int64]*domain.Feedback),
		problems: make(map[int64]*domain.Problem),
		examples: make(map[int64]*domain.FeedbackExample),
		keyLocks: make(map[string]*sync.Mutex),
	}
}

// SetFault installs f. A nil f clears it.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

func (s *Store) checkFault(op, content string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, content)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Feedback() out.FeedbackRepository { return &feedbackRepo{s: s} }
func (s *Store) Problems() out.ProblemRepository  { return &problemRepo{s: s} }
func (s *Store) Examples() out.ExampleRepository  { return &exampleRepo{s: s} }

// =============================================================================
// Transactions
// =============================================================================

type txScope struct {
	s    *Store
	undo []func()
	held []*sync.Mutex
	mu   sync.Mutex
}

func (t *txScope) record(fn func()) {
	t.mu.Lock()
	t.undo = append(t.undo, fn)
	t.mu.Unlock()
}

func (t *txScope) Feedback() out.FeedbackRepository { return &feedbackRepo{s: t.s, tx: t} }
func (t *txScope) Problems() out.ProblemRepository  { return &problemRepo{s: t.s, tx: t} }
func (t *txScope) Examples() out.ExampleRepository  { return &exampleRepo{s: t.s, tx: t} }

// Lock holds a per-key mutex until the transaction ends.
func (t *txScope) Lock(ctx context.Context, key string) error {
	t.s.keyLockMu.Lock()
	m, ok := t.s.keyLocks[key]
	if !ok {
		m = &sync.Mutex{}
		t.s.keyLocks[key] = m
	}
	t.s.keyLockMu.Unlock()

	m.Lock()
	t.held = append(t.held, m)
	return nil
}

// WithTx implements out.TxRunner.
func (s *Store) WithTx(ctx context.Context, fn func(tx out.TxScope) error) (err error) {
	tx := &txScope{s: s}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			tx.release()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
		tx.release()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(tx)
}

func (t *txScope) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *txScope) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}

// =============================================================================
// Feedback
// =============================================================================

type feedbackRepo struct {
	s  *Store
	tx *txScope
}

func (r *feedbackRepo) Create(ctx context.Context, fb *domain.Feedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.checkFault(OpFeedbackCreate, fb.Content); err != nil {
		return err
	}
	fb.ID = r.s.id()
	cp := *fb
	r.s.feedback[fb.ID] = &cp

	if r.tx != nil {
		id := fb.ID
		r.tx.record(func() { delete(r.s.feedback, id) })
	}
	return nil
}

func (r *feedbackRepo) LinkProblem(ctx context.Context, in *domain.Feedback, problemID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	feedbackID := in.ID
	fb, ok := r.s.feedback[feedbackID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := r.s.checkFault(OpFeedbackLink, fb.Content); err != nil {
		return err
	}

	prev := *fb
	pid := problemID
	fb.ProblemID = &pid
	fb.Status = domain.FeedbackProcessed
	fb.Sentiment = in.Sentiment
	fb.Entities = append([]string(nil), in.Entities...)
	fb.UpdateTime = at

	if r.tx != nil {
		r.tx.record(func() { *r.s.feedback[feedbackID] = prev })
	}
	return nil
}

func (r *feedbackRepo) GetByID(ctx context.Context, id int64) (*domain.Feedback, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	fb, ok := r.s.feedback[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *fb
	return &cp, nil
}

func (r *feedbackRepo) CountByProblem(ctx context.Context, problemID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, fb := range r.s.feedback {
		if fb.ProblemID != nil && *fb.ProblemID == problemID {
			n++
		}
	}
	return n, nil
}

func (r *feedbackRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.feedback), nil
}

// =============================================================================
// Problems
// =============================================================================

type problemRepo struct {
	s  *Store
	tx *txScope
}

func (r *problemRepo) sorted(keep func(*domain.Problem) bool) []*domain.Problem {
	out := make([]*domain.Problem, 0)
	for _, p := range r.s.problems {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *problemRepo) ListOpenByCategory(ctx context.Context, category domain.Category) ([]*domain.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.sorted(func(p *domain.Problem) bool {
		return p.Category == category && p.Status.IsOpen()
	}), nil
}

func (r *problemRepo) Create(ctx context.Context, p *domain.Problem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.checkFault(OpProblemCreate, p.Description); err != nil {
		return err
	}
	p.ID = r.s.id()
	cp := *p
	r.s.problems[p.ID] = &cp

	if r.tx != nil {
		id := p.ID
		r.tx.record(func() { delete(r.s.problems, id) })
	}
	return nil
}

func (r *problemRepo) IncrementFeedbackCount(ctx context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.problems[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !p.Status.IsOpen() {
		return fmt.Errorf("problem %d is %s: %w", id, p.Status, domain.ErrNotFound)
	}
	if err := r.s.checkFault(OpProblemIncrement, p.Summary); err != nil {
		return err
	}

	prevUpdate := p.UpdateTime
	p.FeedbackCount++
	p.UpdateTime = at

	if r.tx != nil {
		r.tx.record(func() {
			if p, ok := r.s.problems[id]; ok {
				p.FeedbackCount--
				p.UpdateTime = prevUpdate
			}
		})
	}
	return nil
}

func (r *problemRepo) GetByID(ctx context.Context, id int64) (*domain.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.problems[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *problemRepo) List(ctx context.Context, f domain.ProblemFilter) ([]*domain.Problem, int, error) {
	f.Normalize()
	keyword := strings.ToLower(f.Keyword)

	r.s.mu.Lock()
	matched := r.sorted(func(p *domain.Problem) bool {
		if keyword != "" &&
			!strings.Contains(strings.ToLower(p.Summary), keyword) &&
			!strings.Contains(strings.ToLower(p.Description), keyword) {
			return false
		}
		if f.Category != "" && p.Category != f.Category {
			return false
		}
		if f.Severity != "" && p.Severity != f.Severity {
			return false
		}
		if f.Status != "" && p.Status != f.Status {
			return false
		}
		return true
	})
	r.s.mu.Unlock()

	total := len(matched)
	start := f.Offset()
	if start >= total {
		return []*domain.Problem{}, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *problemRepo) UpdateStatus(ctx context.Context, id int64, status domain.ProblemStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.problems[id]
	if !ok {
		return domain.ErrNotFound
	}
	prev := *p
	p.Status = status
	p.UpdateTime = at

	if r.tx != nil {
		r.tx.record(func() { *r.s.problems[id] = prev })
	}
	return nil
}

func (r *problemRepo) CountByStatus(ctx context.Context) (map[domain.ProblemStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := make(map[domain.ProblemStatus]int)
	for _, p := range r.s.problems {
		counts[p.Status]++
	}
	return counts, nil
}

// =============================================================================
// Examples
// =============================================================================

type exampleRepo struct {
	s  *Store
	tx *txScope
}

func (r *exampleRepo) Create(ctx context.Context, ex *domain.FeedbackExample) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.checkFault(OpExampleCreate, ex.Content); err != nil {
		return err
	}
	ex.ID = r.s.id()
	cp := *ex
	r.s.examples[ex.ID] = &cp

	if r.tx != nil {
		id := ex.ID
		r.tx.record(func() { delete(r.s.examples, id) })
	}
	return nil
}

func (r *exampleRepo) ListByProblem(ctx context.Context, problemID int64, limit int) ([]*domain.FeedbackExample, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*domain.FeedbackExample, 0)
	for _, ex := range r.s.examples {
		if ex.ProblemID == problemID {
			cp := *ex
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =============================================================================
// Inspection helpers
// =============================================================================

// Counts returns the number of stored feedback, problems and examples.
func (s *Store) Counts() (feedback, problems, examples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feedback), len(s.problems), len(s.examples)
}

// AllProblems returns every problem ordered by id.
func (s *Store) AllProblems() []*domain.Problem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&problemRepo{s: s}).sorted(func(*domain.Problem) bool { return true })
}
