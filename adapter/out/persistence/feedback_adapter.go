package persistence

import (
	"context"
	"database/sql"
	"time"

	"feedback_server/core/domain"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// IDGenerator hands out primary keys.
type IDGenerator interface {
	Next() (int64, error)
}

// =============================================================================
// Feedback Adapter
// =============================================================================

// FeedbackAdapter implements out.FeedbackRepository.
type FeedbackAdapter struct {
	db  sqlx.ExtContext
	ids IDGenerator
}

func NewFeedbackAdapter(db sqlx.ExtContext, ids IDGenerator) *FeedbackAdapter {
	return &FeedbackAdapter{db: db, ids: ids}
}

type feedbackRow struct {
	ID         int64          `db:"id"`
	Content    string         `db:"content"`
	Status     string         `db:"status"`
	ProblemID  sql.NullInt64  `db:"problem_id"`
	Sentiment  string         `db:"sentiment"`
	Entities   pq.StringArray `db:"entities"`
	CreateTime time.Time      `db:"create_time"`
	UpdateTime time.Time      `db:"update_time"`
}

func (r *feedbackRow) toEntity() *domain.Feedback {
	fb := &domain.Feedback{
		ID:         r.ID,
		Content:    r.Content,
		Status:     domain.FeedbackStatus(r.Status),
		Sentiment:  domain.Sentiment(r.Sentiment),
		Entities:   []string(r.Entities),
		CreateTime: r.CreateTime,
		UpdateTime: r.UpdateTime,
	}
	if r.ProblemID.Valid {
		id := r.ProblemID.Int64
		fb.ProblemID = &id
	}
	return fb
}

func (a *FeedbackAdapter) Create(ctx context.Context, fb *domain.Feedback) error {
	id, err := a.ids.Next()
	if err != nil {
		return translate("generate feedback id", err)
	}

	query := `
		INSERT INTO feedback (id, content, status, sentiment, entities, create_time, update_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := a.db.ExecContext(ctx, query,
		id, fb.Content, string(fb.Status), string(fb.Sentiment), pq.Array(entitiesOrEmpty(fb.Entities)),
		fb.CreateTime, fb.UpdateTime,
	); err != nil {
		return translate("create feedback", err)
	}

	fb.ID = id
	return nil
}

func (a *FeedbackAdapter) LinkProblem(ctx context.Context, fb *domain.Feedback, problemID int64, at time.Time) error {
	query := `
		UPDATE feedback
		SET problem_id = $2, status = $3, sentiment = $4, entities = $5, update_time = $6
		WHERE id = $1`
	res, err := a.db.ExecContext(ctx, query,
		fb.ID, problemID, string(domain.FeedbackProcessed), string(fb.Sentiment), pq.Array(entitiesOrEmpty(fb.Entities)), at,
	)
	if err != nil {
		return translate("link feedback", err)
	}
	return requireOneRow("link feedback", res)
}

func (a *FeedbackAdapter) GetByID(ctx context.Context, id int64) (*domain.Feedback, error) {
	var row feedbackRow
	query := `SELECT id, content, status, problem_id, sentiment, entities, create_time, update_time FROM feedback WHERE id = $1`

	if err := sqlx.GetContext(ctx, a.db, &row, query, id); err != nil {
		return nil, translate("get feedback", err)
	}
	return row.toEntity(), nil
}

func (a *FeedbackAdapter) CountByProblem(ctx context.Context, problemID int64) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, a.db, &n, `SELECT COUNT(*) FROM feedback WHERE problem_id = $1`, problemID); err != nil {
		return 0, translate("count feedback", err)
	}
	return n, nil
}

func (a *FeedbackAdapter) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, a.db, &n, `SELECT COUNT(*) FROM feedback`); err != nil {
		return 0, translate("count feedback", err)
	}
	return n, nil
}

func entitiesOrEmpty(e []string) []string {
	if e == nil {
		return []string{}
	}
	return e
}

// =============================================================================
// Example Adapter
// =============================================================================

// ExampleAdapter implements out.ExampleRepository.
type ExampleAdapter struct {
	db  sqlx.ExtContext
	ids IDGenerator
}

func NewExampleAdapter(db sqlx.ExtContext, ids IDGenerator) *ExampleAdapter {
	return &ExampleAdapter{db: db, ids: ids}
}

type exampleRow struct {
	ID         int64     `db:"id"`
	ProblemID  int64     `db:"problem_id"`
	Content    string    `db:"content"`
	CreateTime time.Time `db:"create_time"`
}

func (a *ExampleAdapter) Create(ctx context.Context, ex *domain.FeedbackExample) error {
	id, err := a.ids.Next()
	if err != nil {
		return translate("generate example id", err)
	}

	query := `INSERT INTO feedback_examples (id, problem_id, content, create_time) VALUES ($1, $2, $3, $4)`
	if _, err := a.db.ExecContext(ctx, query, id, ex.ProblemID, ex.Content, ex.CreateTime); err != nil {
		return translate("create example", err)
	}

	ex.ID = id
	return nil
}

func (a *ExampleAdapter) ListByProblem(ctx context.Context, problemID int64, limit int) ([]*domain.FeedbackExample, error) {
	var rows []exampleRow
	query := `SELECT id, problem_id, content, create_time FROM feedback_examples WHERE problem_id = $1 ORDER BY id`
	args := []any{problemID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	if err := sqlx.SelectContext(ctx, a.db, &rows, query, args...); err != nil {
		return nil, translate("list examples", err)
	}

	examples := make([]*domain.FeedbackExample, len(rows))
	for i, row := range rows {
		examples[i] = &domain.FeedbackExample{
			ID:         row.ID,
			ProblemID:  row.ProblemID,
			Content:    row.Content,
			CreateTime: row.CreateTime,
		}
	}
	return examples, nil
}
