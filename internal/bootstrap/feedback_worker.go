package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"feedback_server/adapter/in/worker"
	"feedback_server/adapter/out/messaging"
	"feedback_server/config"
	"feedback_server/pkg/logger"

	"github.com/rs/zerolog"
)

// Worker consumes queued imports from the Redis stream.
type Worker struct {
	pool     *worker.Pool
	consumer *messaging.Consumer
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	zlog     zerolog.Logger
}

// NewWorker builds a worker over deps. The caller owns deps and releases
// them after Stop.
func NewWorker(ctx context.Context, cfg *config.Config, deps *Dependencies) (*Worker, error) {
	if deps.Redis == nil {
		return nil, errors.New("worker mode requires REDIS_URL")
	}

	zlog := logger.Component("worker")

	processor := worker.NewImportProcessor(deps.Pipeline, zlog)
	pool := worker.NewPool(processor, &worker.PoolConfig{
		Workers:        cfg.WorkerMax,
		WorkerChanSize: cfg.WorkerQueueSize,
		JobTimeout:     worker.DefaultPoolConfig().JobTimeout,
	}, deps.Latency.Tracker("worker.import"), zlog)

	wctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		pool:   pool,
		ctx:    wctx,
		cancel: cancel,
		zlog:   zlog,
	}

	w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
		Group:                cfg.ConsumerGroup,
		Consumer:             cfg.WorkerID,
		Streams:              []string{cfg.ImportStream},
		Handler:              worker.NewDispatcher(pool),
		Logger:               zlog,
		BatchSize:            cfg.ConsumerBatchSize,
		Block:                time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
		PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
		MaxRetries:           cfg.ConsumerMaxRetries,
	})

	return w, nil
}

// Start runs until Stop is called or the parent context ends.
func (w *Worker) Start() error {
	if err := w.pool.Start(w.ctx); err != nil {
		return fmt.Errorf("start pool: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.zlog.Info().Msg("starting import stream consumer")
		if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.zlog.Error().Err(err).Msg("import stream consumer stopped")
		}
	}()

	<-w.ctx.Done()
	return nil
}

// Stop halts consumption, then drains jobs already handed to the pool.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.pool.Stop()
}

func (w *Worker) Metrics() worker.PoolMetrics {
	return w.pool.Metrics()
}
