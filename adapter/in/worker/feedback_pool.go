package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"feedback_server/pkg/metrics"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// ErrPoolStopped is returned by Submit when the pool is not running.
var ErrPoolStopped = errors.New("worker pool is not running")

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers        int
	WorkerChanSize int
	JobTimeout     time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        4,
		WorkerChanSize: 100,
		JobTimeout:     10 * time.Minute,
	}
}

// PoolMetrics holds pool counters.
type PoolMetrics struct {
	JobsProcessed int64
	JobsFailed    int64
	InFlight      int32
}

// Pool runs messages through a Processor on a go-pkgz/pool worker group.
// Failed imports are not retried: ingestion is not idempotent, and the
// batch report already records which items failed.
type Pool struct {
	processor Processor
	config    *PoolConfig
	latency   *metrics.LatencyTracker
	log       zerolog.Logger

	group   *pool.WorkerGroup[*Message]
	ctx     context.Context
	cancel  context.CancelFunc
	metrics PoolMetrics

	mu      sync.Mutex
	started bool
}

type messageWorker struct {
	pool *Pool
}

// Do implements pool.Worker.
func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

// NewPool creates a pool. latency may be nil.
func NewPool(processor Processor, config *PoolConfig, latency *metrics.LatencyTracker, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if latency == nil {
		latency = metrics.NewLatencyTracker(0)
	}
	return &Pool{
		processor: processor,
		config:    config,
		latency:   latency,
		log:       log.With().Str("component", "worker_pool").Logger(),
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	group := pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()
	if err := group.Go(p.ctx); err != nil {
		p.cancel()
		return err
	}

	p.group = group
	p.started = true
	p.log.Info().Int("workers", p.config.Workers).Msg("worker pool started")
	return nil
}

// Submit queues a message.
func (p *Pool) Submit(msg *Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrPoolStopped
	}
	atomic.AddInt32(&p.metrics.InFlight, 1)
	p.group.Submit(msg)
	return nil
}

// Stop drains submitted messages and stops the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	group := p.group
	p.mu.Unlock()

	p.log.Info().Msg("stopping worker pool...")

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := group.Close(closeCtx); err != nil {
		p.log.Warn().Err(err).Msg("error closing worker pool")
	}
	p.cancel()

	m := p.Metrics()
	p.log.Info().
		Int64("processed", m.JobsProcessed).
		Int64("failed", m.JobsFailed).
		Msg("worker pool stopped")
}

func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()
	defer atomic.AddInt32(&p.metrics.InFlight, -1)

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	err := p.processor.Process(jobCtx, msg)
	p.latency.Record(time.Since(start))

	if err != nil {
		atomic.AddInt64(&p.metrics.JobsFailed, 1)
		ev := p.log.Error().Err(err).Str("stream", msg.Stream)
		if msg.Job != nil {
			ev = ev.Str("job_id", msg.Job.ID)
		}
		ev.Msg("import job failed")
		return err
	}

	atomic.AddInt64(&p.metrics.JobsProcessed, 1)
	return nil
}

// Metrics returns a snapshot of the counters.
func (p *Pool) Metrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed: atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:    atomic.LoadInt64(&p.metrics.JobsFailed),
		InFlight:      atomic.LoadInt32(&p.metrics.InFlight),
	}
}
