package out

import (
	"context"

	"feedback_server/core/domain"
)

// ImportProducer queues import jobs for background workers.
type ImportProducer interface {
	PublishImport(ctx context.Context, job *domain.ImportJob) (string, error)
}

// ReportArchive keeps the history of batch reports.
type ReportArchive interface {
	Save(ctx context.Context, report domain.ReportView) error
	ListRecent(ctx context.Context, limit int) ([]domain.ReportView, error)
}
