package worker

import (
	"context"
	"fmt"

	"feedback_server/core/port/in"
	"feedback_server/pkg/logger"

	"github.com/rs/zerolog"
)

// Processor handles one message.
type Processor interface {
	Process(ctx context.Context, msg *Message) error
}

// ImportProcessor ingests the lines of a queued import.
type ImportProcessor struct {
	ingest in.IngestService
	log    zerolog.Logger
}

// NewImportProcessor creates an ImportProcessor.
func NewImportProcessor(ingest in.IngestService, log zerolog.Logger) *ImportProcessor {
	return &ImportProcessor{
		ingest: ingest,
		log:    log.With().Str("component", "import_processor").Logger(),
	}
}

// Process runs the batch. Per-item failures are part of the report, so only
// a batch that cannot start is returned as an error.
func (p *ImportProcessor) Process(ctx context.Context, msg *Message) error {
	if msg == nil || msg.Job == nil {
		return fmt.Errorf("empty import message")
	}

	if msg.Job.RequestID != "" {
		ctx = logger.ContextWithRequestID(ctx, msg.Job.RequestID)
	}

	report, err := p.ingest.IngestSource(ctx, msg.Source(), msg.Job.Lines)
	if err != nil {
		return fmt.Errorf("import %s: %w", msg.Job.ID, err)
	}

	p.log.Info().
		Str("job_id", msg.Job.ID).
		Str("batch_id", report.BatchID()).
		Int("total", report.Total()).
		Int("failed", report.Failed()).
		Dur("queued", report.StartedAt().Sub(msg.Job.CreatedAt)).
		Msg(report.Message())
	return nil
}
