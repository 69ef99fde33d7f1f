package domain

import (
	"fmt"
	"time"
)

// BatchReport is the immutable outcome of one ingestion batch.
type BatchReport struct {
	batchID    string
	total      int
	succeeded  int
	failed     int
	startedAt  time.Time
	finishedAt time.Time
}

// NewBatchReport builds a report. Failed is derived from total and succeeded.
func NewBatchReport(batchID string, total, succeeded int, startedAt, finishedAt time.Time) BatchReport {
	return BatchReport{
		batchID:    batchID,
		total:      total,
		succeeded:  succeeded,
		failed:     total - succeeded,
		startedAt:  startedAt,
		finishedAt: finishedAt,
	}
}

func (r BatchReport) BatchID() string       { return r.batchID }
func (r BatchReport) Total() int            { return r.total }
func (r BatchReport) Succeeded() int        { return r.succeeded }
func (r BatchReport) Failed() int           { return r.failed }
func (r BatchReport) StartedAt() time.Time  { return r.startedAt }
func (r BatchReport) FinishedAt() time.Time { return r.finishedAt }

// Message is the human readable outcome.
func (r BatchReport) Message() string {
	if r.failed == 0 {
		return fmt.Sprintf("成功导入 %d 条反馈", r.succeeded)
	}
	return fmt.Sprintf("成功导入 %d 条反馈，%d 条失败", r.succeeded, r.failed)
}

// ReportView is the serializable form of a BatchReport.
type ReportView struct {
	BatchID    string    `json:"batch_id"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Message    string    `json:"message"`
	Source     string    `json:"source,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// View flattens the report for transport and archival.
func (r BatchReport) View() ReportView {
	return ReportView{
		BatchID:    r.batchID,
		Total:      r.total,
		Succeeded:  r.succeeded,
		Failed:     r.failed,
		Message:    r.Message(),
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
	}
}

// ImportSource tags where a batch came from.
type ImportSource string

const (
	SourceText  ImportSource = "text"
	SourceFile  ImportSource = "file"
	SourceImage ImportSource = "image"
	SourceAsync ImportSource = "async"
	SourceCLI   ImportSource = "cli"
)

// ImportJob is an import request queued for a background worker.
type ImportJob struct {
	ID        string       `json:"id"`
	RequestID string       `json:"request_id,omitempty"`
	Source    ImportSource `json:"source"`
	Lines     []string     `json:"lines"`
	CreatedAt time.Time    `json:"created_at"`
}
