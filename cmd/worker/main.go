package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tablero-sucursales/tablero/internal/app"
	jobmetrics "github.com/tablero-sucursales/tablero/internal/jobs"
	"github.com/tablero-sucursales/tablero/internal/reports"
	"github.com/tablero-sucursales/tablero/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open report backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	exec := reports.NewExecutor(backend.Store, logger, reports.WithQueryTimeout(cfg.ReportQueryTimeout))
	probe := jobs.NewBranchProbeJob(
		backend.Registry,
		backend.Catalog,
		backend.Store,
		backend.Window,
		reports.NewMerger(exec, cfg.ReportFanoutConcurrency),
		logger,
		metrics,
	)

	probeTask, err := jobs.NewBranchProbeTask(jobs.BranchProbePayload{})
	if err != nil {
		logger.Error("build probe task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBranchProbe, Handler: probe.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ProbeCron, Task: probeTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("probe_cron", cfg.ProbeCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
