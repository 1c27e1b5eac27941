package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doctriage/doctriage/internal/bootstrap"
	"github.com/doctriage/doctriage/internal/config"
	"github.com/doctriage/doctriage/internal/observability/logging"
	"github.com/doctriage/doctriage/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")

	app, err := bootstrap.New(ctx, cfg, workerMetrics, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	go app.Reaper.Run(ctx, cfg.ReaperInterval)

	// The queue runs each message's handler on its own goroutine; the
	// semaphore caps concurrent pipeline runs at WORKER_CONCURRENCY.
	concurrency := cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	slots := make(chan struct{}, concurrency)

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "concurrency", concurrency)
	err = app.Queue.SubscribeJobQueued(ctx, func(handlerCtx context.Context, jobID string) error {
		select {
		case slots <- struct{}{}:
		case <-handlerCtx.Done():
			return handlerCtx.Err()
		}
		defer func() { <-slots }()

		workerMetrics.StartJob()
		defer workerMetrics.FinishJob()

		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.JobRunningTimeout)
		defer cancel()
		return app.Process.ProcessByID(processCtx, jobID)
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
