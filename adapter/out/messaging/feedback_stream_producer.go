// Package messaging moves import jobs through Redis Streams.
package messaging

import (
	"context"
	"fmt"

	"feedback_server/core/domain"
	"feedback_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// StreamImport is the default stream for queued imports.
const StreamImport = "feedback:import"

// maxStreamLen caps the stream so acknowledged jobs do not pile up.
const maxStreamLen = 10000

// RedisProducer implements out.ImportProducer using Redis Streams.
type RedisProducer struct {
	client redis.Cmdable
	stream string
}

var _ out.ImportProducer = (*RedisProducer)(nil)

// NewRedisProducer creates a producer writing to stream.
func NewRedisProducer(client redis.Cmdable, stream string) *RedisProducer {
	if stream == "" {
		stream = StreamImport
	}
	return &RedisProducer{client: client, stream: stream}
}

// PublishImport appends the job and returns the stream entry id.
func (p *RedisProducer) PublishImport(ctx context.Context, job *domain.ImportJob) (string, error) {
	data, err := EncodeJob(job)
	if err != nil {
		return "", err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": data,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return id, nil
}

// EncodeJob renders a job as the stream payload.
func EncodeJob(job *domain.ImportJob) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}
	return string(data), nil
}

// DecodeJob parses a stream payload.
func DecodeJob(data []byte) (*domain.ImportJob, error) {
	var job domain.ImportJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("job has no id")
	}
	return &job, nil
}
