package worker

import (
	"context"
	"fmt"

	"feedback_server/adapter/out/messaging"
)

// Submitter accepts messages for asynchronous processing.
type Submitter interface {
	Submit(msg *Message) error
}

// Dispatcher decodes stream payloads and hands them to the pool. It
// implements messaging.JobHandler; a payload that cannot be decoded stays
// unacknowledged and ends up in the dead letter stream.
type Dispatcher struct {
	pool Submitter
}

var _ messaging.JobHandler = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher.
func NewDispatcher(pool Submitter) *Dispatcher {
	return &Dispatcher{pool: pool}
}

// Handle implements messaging.JobHandler.
func (d *Dispatcher) Handle(ctx context.Context, stream string, data []byte) error {
	job, err := messaging.DecodeJob(data)
	if err != nil {
		return err
	}
	if err := d.pool.Submit(NewMessage(stream, job)); err != nil {
		return fmt.Errorf("submit job %s: %w", job.ID, err)
	}
	return nil
}
