package in

import (
	"context"

	"feedback_server/core/domain"
)

// IngestService turns raw feedback text into clustered problems.
type IngestService interface {
	// Ingest processes one batch and reports per-item outcomes. It fails only
	// when the batch holds no non-empty line.
	Ingest(ctx context.Context, rawTexts []string) (domain.BatchReport, error)
	IngestOne(ctx context.Context, text string) (domain.BatchReport, error)
	// IngestSource is Ingest with the import source recorded on the report.
	IngestSource(ctx context.Context, source domain.ImportSource, rawTexts []string) (domain.BatchReport, error)
}

// ProblemService is the read/status side over clustered problems.
type ProblemService interface {
	List(ctx context.Context, filter domain.ProblemFilter) (*ProblemListResponse, error)
	Get(ctx context.Context, id int64) (*domain.ProblemDetail, error)
	Resolve(ctx context.Context, id int64) (*domain.Problem, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ProblemStatus) (*domain.Problem, error)
	Stats(ctx context.Context) (*domain.DashboardStats, error)
}

type ProblemListResponse struct {
	Items    []*domain.ProblemDetail `json:"items"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
}
