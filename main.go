package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"feedback_server/config"
	"feedback_server/internal/bootstrap"
	"feedback_server/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api, worker, all, import")
	file := flag.String("file", "", "UTF-8 text file to ingest in import mode, one feedback per line")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "feedback-" + *mode,
		Console: cfg.IsDevelopment(),
	})
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *mode == "import" {
		runImport(ctx, cfg, *file)
		return
	}

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	switch *mode {
	case "api":
		runAPI(ctx, cfg, deps)
	case "worker":
		w, err := bootstrap.NewWorker(ctx, cfg, deps)
		if err != nil {
			logger.Fatal("Failed to initialize worker: %v", err)
		}
		runWorker(w)
	case "all":
		// API and worker share one set of dependencies so queued imports land
		// in the same store the API reads.
		var wg sync.WaitGroup
		if w, err := bootstrap.NewWorker(ctx, cfg, deps); err != nil {
			logger.Warn("Worker disabled: %v", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				runWorker(w)
			}()
		}
		runAPI(ctx, cfg, deps)
		wg.Wait()
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, deps *bootstrap.Dependencies) {
	app, err := bootstrap.NewApp(cfg, deps)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
			return
		}
		logger.Info("API server shut down gracefully")
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

// runWorker blocks until the worker's context ends, then drains the pool.
func runWorker(w *bootstrap.Worker) {
	logger.Info("Starting worker...")
	if err := w.Start(); err != nil {
		logger.Fatal("Worker failed: %v", err)
	}

	logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		m := w.Metrics()
		logger.Info("Worker shut down gracefully (processed %d, failed %d)", m.JobsProcessed, m.JobsFailed)
	case <-time.After(shutdownTimeout):
		logger.Warn("Worker shutdown timed out, forcing exit")
		os.Exit(1)
	}
}

func runImport(ctx context.Context, cfg *config.Config, path string) {
	if path == "" {
		logger.Fatal("import mode needs -file")
	}

	report, err := bootstrap.RunImport(ctx, cfg, path)
	if err != nil {
		logger.Fatal("Import failed: %v", err)
	}

	fmt.Println(report.Message())
	fmt.Printf("batch=%s total=%d succeeded=%d failed=%d elapsed=%s\n",
		report.BatchID(), report.Total(), report.Succeeded(), report.Failed(),
		report.FinishedAt().Sub(report.StartedAt()).Round(time.Millisecond))
	if report.Failed() > 0 {
		os.Exit(2)
	}
}
