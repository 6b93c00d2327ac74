package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emalabs/ask-ema/internal/bootstrap"
	"github.com/emalabs/ask-ema/internal/config"
	"github.com/emalabs/ask-ema/internal/core/domain"
	"github.com/emalabs/ask-ema/internal/observability/logging"
	"github.com/emalabs/ask-ema/internal/observability/metrics"
)

const serviceName = "ask-ema-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeAuditRecords(ctx, func(handlerCtx context.Context, record domain.AuditRecord) error {
		writeCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Second)
		defer cancel()

		writeErr := app.AuditRepo.Append(writeCtx, record)
		workerMetrics.RecordAuditWrite(serviceName, writeErr)
		return writeErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
