// Package ingest runs batches of raw feedback through classification and
// clustering and reports per-item outcomes.
package ingest

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"feedback_server/core/domain"
	"feedback_server/core/port/in"
	"feedback_server/core/port/out"
	"feedback_server/core/service/classification"
	"feedback_server/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// FeedbackClassifier classifies one text and never fails.
type FeedbackClassifier interface {
	Classify(ctx context.Context, text string) classification.Result
}

// ClusterMerger attaches classified feedback to a problem atomically.
type ClusterMerger interface {
	MergeOrCreate(ctx context.Context, fb *domain.Feedback, c *domain.Classification) (*domain.Problem, bool, error)
}

// Config holds the pipeline's collaborators. Archive is optional.
type Config struct {
	Feedback    out.FeedbackRepository
	Classifier  FeedbackClassifier
	Merger      ClusterMerger
	Archive     out.ReportArchive
	Concurrency int
	Logger      zerolog.Logger
}

type Pipeline struct {
	feedback    out.FeedbackRepository
	classifier  FeedbackClassifier
	merger      ClusterMerger
	archive     out.ReportArchive
	concurrency int
	now         func() time.Time
	log         zerolog.Logger
}

var _ in.IngestService = (*Pipeline)(nil)

func NewPipeline(cfg Config) *Pipeline {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		feedback:    cfg.Feedback,
		classifier:  cfg.Classifier,
		merger:      cfg.Merger,
		archive:     cfg.Archive,
		concurrency: concurrency,
		now:         time.Now,
		log:         cfg.Logger,
	}
}

// SplitLines splits imported content into candidate feedback lines.
func SplitLines(content string) []string {
	return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
}

func nonEmpty(rawTexts []string) []string {
	lines := make([]string, 0, len(rawTexts))
	for _, raw := range rawTexts {
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Ingest processes a batch tagged as a text import.
func (p *Pipeline) Ingest(ctx context.Context, rawTexts []string) (domain.BatchReport, error) {
	return p.IngestSource(ctx, domain.SourceText, rawTexts)
}

// IngestOne processes a single text such as recognized image content.
func (p *Pipeline) IngestOne(ctx context.Context, text string) (domain.BatchReport, error) {
	if strings.TrimSpace(text) == "" {
		return domain.BatchReport{}, &domain.ValidationError{Field: "text", Err: domain.ErrEmptyFeedback}
	}
	return p.IngestSource(ctx, domain.SourceImage, []string{text})
}

// IngestSource trims every line, drops empty ones and processes the rest.
// It fails only when nothing is left. Per-item failures are counted in the
// report. When ctx is cancelled no further items start and the unstarted
// ones count as failed.
func (p *Pipeline) IngestSource(ctx context.Context, source domain.ImportSource, rawTexts []string) (domain.BatchReport, error) {
	lines := nonEmpty(rawTexts)
	if len(lines) == 0 {
		return domain.BatchReport{}, &domain.ValidationError{Field: "content", Err: domain.ErrEmptyBatch}
	}

	batchID := uuid.NewString()
	lc := p.log.With().Str("batch_id", batchID).Str("source", string(source))
	if rid := logger.RequestIDFromContext(ctx); rid != "" {
		lc = lc.Str("request_id", rid)
	}
	log := lc.Logger()
	started := p.now()

	var succeeded atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	scheduled := 0
	for i, line := range lines {
		if ctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			// the batch may be cancelled while this item waited for a slot
			if err := ctx.Err(); err != nil {
				log.Debug().Err(err).Int("item", i).Msg("feedback item not started")
				return nil
			}
			if err := p.process(ctx, line); err != nil {
				log.Warn().Err(err).Int("item", i).Msg("feedback item failed")
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if skipped := len(lines) - scheduled; skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("batch cancelled before all items started")
	}

	report := domain.NewBatchReport(batchID, len(lines), int(succeeded.Load()), started, p.now())
	log.Info().
		Int("total", report.Total()).
		Int("succeeded", report.Succeeded()).
		Int("failed", report.Failed()).
		Dur("elapsed", report.FinishedAt().Sub(started)).
		Msg("batch finished")

	p.archiveReport(ctx, source, report)
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, text string) error {
	fb := domain.NewFeedback(text, p.now())
	if err := p.feedback.Create(ctx, fb); err != nil {
		return err
	}

	res := p.classifier.Classify(ctx, text)
	if res.Err != nil {
		p.log.Debug().Err(res.Err).Int64("feedback_id", fb.ID).Msg("classified by fallback")
	}
	fb.Sentiment = res.Classification.Sentiment
	fb.Entities = res.Classification.Entities

	// a merge that has started must not be aborted by the batch cancel
	_, _, err := p.merger.MergeOrCreate(context.WithoutCancel(ctx), fb, res.Classification)
	return err
}

func (p *Pipeline) archiveReport(ctx context.Context, source domain.ImportSource, report domain.BatchReport) {
	if p.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	view := report.View()
	view.Source = string(source)
	if err := p.archive.Save(ctx, view); err != nil {
		p.log.Warn().Err(err).Str("batch_id", report.BatchID()).Msg("failed to archive batch report")
	}
}
