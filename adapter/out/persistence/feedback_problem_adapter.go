package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"feedback_server/core/domain"

	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Problem Adapter
// =============================================================================

// ProblemAdapter implements out.ProblemRepository.
type ProblemAdapter struct {
	db  sqlx.ExtContext
	ids IDGenerator
}

func NewProblemAdapter(db sqlx.ExtContext, ids IDGenerator) *ProblemAdapter {
	return &ProblemAdapter{db: db, ids: ids}
}

const problemColumns = `id, summary, description, category, severity, feedback_count, status, create_time, update_time`

type problemRow struct {
	ID            int64     `db:"id"`
	Summary       string    `db:"summary"`
	Description   string    `db:"description"`
	Category      string    `db:"category"`
	Severity      string    `db:"severity"`
	FeedbackCount int       `db:"feedback_count"`
	Status        string    `db:"status"`
	CreateTime    time.Time `db:"create_time"`
	UpdateTime    time.Time `db:"update_time"`
}

func (r *problemRow) toEntity() *domain.Problem {
	return &domain.Problem{
		ID:            r.ID,
		Summary:       r.Summary,
		Description:   r.Description,
		Category:      domain.Category(r.Category),
		Severity:      domain.Severity(r.Severity),
		FeedbackCount: r.FeedbackCount,
		Status:        domain.ProblemStatus(r.Status),
		CreateTime:    r.CreateTime,
		UpdateTime:    r.UpdateTime,
	}
}

const incrementFeedbackCountSQL = `UPDATE problems
	SET feedback_count = feedback_count + 1, update_time = $2
	WHERE id = $1 AND status IN ($3, $4)`

func toProblems(rows []problemRow) []*domain.Problem {
	problems := make([]*domain.Problem, len(rows))
	for i := range rows {
		problems[i] = rows[i].toEntity()
	}
	return problems
}

// ListOpenByCategory only offers problems of the feedback's own category as
// merge candidates. Similar text filed under another category stays a
// separate problem.
func (a *ProblemAdapter) ListOpenByCategory(ctx context.Context, category domain.Category) ([]*domain.Problem, error) {
	var rows []problemRow
	query := `SELECT ` + problemColumns + ` FROM problems
		WHERE category = $1 AND status IN ($2, $3)
		ORDER BY id`

	if err := sqlx.SelectContext(ctx, a.db, &rows, query,
		string(category), string(domain.ProblemPending), string(domain.ProblemProcessing),
	); err != nil {
		return nil, translate("list open problems", err)
	}
	return toProblems(rows), nil
}

func (a *ProblemAdapter) Create(ctx context.Context, p *domain.Problem) error {
	id, err := a.ids.Next()
	if err != nil {
		return translate("generate problem id", err)
	}

	query := `
		INSERT INTO problems (` + problemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := a.db.ExecContext(ctx, query,
		id, p.Summary, p.Description, string(p.Category), string(p.Severity),
		p.FeedbackCount, string(p.Status), p.CreateTime, p.UpdateTime,
	); err != nil {
		return translate("create problem", err)
	}

	p.ID = id
	return nil
}

// IncrementFeedbackCount only touches open problems. A problem resolved after
// the candidate read affects no row and the merge fails with ErrNotFound.
func (a *ProblemAdapter) IncrementFeedbackCount(ctx context.Context, id int64, at time.Time) error {
	res, err := a.db.ExecContext(ctx, incrementFeedbackCountSQL,
		id, at, string(domain.ProblemPending), string(domain.ProblemProcessing))
	if err != nil {
		return translate("increment feedback count", err)
	}
	return requireOneRow("increment feedback count", res)
}

func (a *ProblemAdapter) GetByID(ctx context.Context, id int64) (*domain.Problem, error) {
	var row problemRow
	if err := sqlx.GetContext(ctx, a.db, &row, `SELECT `+problemColumns+` FROM problems WHERE id = $1`, id); err != nil {
		return nil, translate("get problem", err)
	}
	return row.toEntity(), nil
}

func (a *ProblemAdapter) List(ctx context.Context, filter domain.ProblemFilter) ([]*domain.Problem, int, error) {
	filter.Normalize()
	where, args := buildProblemWhere(filter)

	var total int
	if err := sqlx.GetContext(ctx, a.db, &total, `SELECT COUNT(*) FROM problems`+where, args...); err != nil {
		return nil, 0, translate("count problems", err)
	}
	if total == 0 {
		return []*domain.Problem{}, 0, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM problems%s ORDER BY id LIMIT $%d OFFSET $%d`,
		problemColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, filter.Offset())

	var rows []problemRow
	if err := sqlx.SelectContext(ctx, a.db, &rows, query, args...); err != nil {
		return nil, 0, translate("list problems", err)
	}
	return toProblems(rows), total, nil
}

func (a *ProblemAdapter) UpdateStatus(ctx context.Context, id int64, status domain.ProblemStatus, at time.Time) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE problems SET status = $2, update_time = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return translate("update problem status", err)
	}
	return requireOneRow("update problem status", res)
}

func (a *ProblemAdapter) CountByStatus(ctx context.Context) (map[domain.ProblemStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := sqlx.SelectContext(ctx, a.db, &rows,
		`SELECT status, COUNT(*) AS n FROM problems GROUP BY status`); err != nil {
		return nil, translate("count problems", err)
	}

	counts := make(map[domain.ProblemStatus]int, len(rows))
	for _, r := range rows {
		counts[domain.ProblemStatus(r.Status)] = r.N
	}
	return counts, nil
}

// buildProblemWhere renders the filter as a WHERE clause with positional args.
func buildProblemWhere(f domain.ProblemFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		add(`(summary ILIKE $%[1]d ESCAPE '\' OR description ILIKE $%[1]d ESCAPE '\')`, "%"+escapeLike(kw)+"%")
	}
	if f.Category != "" {
		add(`category = $%d`, string(f.Category))
	}
	if f.Severity != "" {
		add(`severity = $%d`, string(f.Severity))
	}
	if f.Status != "" {
		add(`status = $%d`, string(f.Status))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
