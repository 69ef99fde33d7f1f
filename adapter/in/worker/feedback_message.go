// Package worker runs queued imports on a go-pkgz/pool worker group.
package worker

import (
	"time"

	"feedback_server/core/domain"
)

// Message is one queued import handed to the pool.
type Message struct {
	Stream     string
	Job        *domain.ImportJob
	ReceivedAt time.Time
}

// NewMessage wraps a decoded job.
func NewMessage(stream string, job *domain.ImportJob) *Message {
	return &Message{
		Stream:     stream,
		Job:        job,
		ReceivedAt: time.Now(),
	}
}

// Source is the job's source, defaulting to async.
func (m *Message) Source() domain.ImportSource {
	if m.Job == nil || m.Job.Source == "" {
		return domain.SourceAsync
	}
	return m.Job.Source
}
