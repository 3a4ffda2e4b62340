package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tablero-sucursales/tablero/internal/app"
	"github.com/tablero-sucursales/tablero/internal/observability"
	"github.com/tablero-sucursales/tablero/internal/platform/cache"
	reporthttp "github.com/tablero-sucursales/tablero/internal/reports/http"
	"github.com/tablero-sucursales/tablero/internal/shared"
	"github.com/tablero-sucursales/tablero/internal/wallet"
	"github.com/tablero-sucursales/tablero/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "tablero_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	workspaces := reporthttp.NewWorkspaces(cfg.SessionTTL)
	go workspaces.Run(ctx, time.Minute)
	reportHandler := reporthttp.NewHandler(logger, reporthttp.Config{
		Catalog:      backend.Catalog,
		Registry:     backend.Registry,
		Store:        backend.Store,
		Window:       backend.Window,
		PageSize:     cfg.ReportPageSize,
		Fanout:       cfg.ReportFanoutConcurrency,
		QueryTimeout: cfg.ReportQueryTimeout,
		Metrics:      metrics,
	}, workspaces)

	walletHandler, err := newWalletHandler(cfg, backend, logger)
	if err != nil {
		logger.Error("init wallet", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		ReportHandler:  reportHandler,
		WalletHandler:  walletHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Any("branches", backend.Catalog.Branches()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func newWalletHandler(cfg *app.Config, backend *app.Backend, logger *slog.Logger) (*wallet.Handler, error) {
	var cards wallet.CardSource
	if backend.Pool != nil {
		cards = wallet.NewPGCardSource(backend.Pool, cfg.WalletCardTable)
	} else {
		cards = wallet.NewStaticCards(wallet.Card{ID: "0001", Name: "CLIENTE DEMO", Points: 120, Branch: string(backend.Catalog.Branches()[0])})
	}
	opts := wallet.Options{TeamIdentifier: cfg.WalletTeamID, OrganizationName: cfg.WalletOrganization}
	if !cfg.WalletEnabled() {
		logger.Warn("wallet signing material not configured, pass issuance will fail")
		return wallet.NewHandler(logger, cards, wallet.NewBuilder(nil, nil, opts)), nil
	}
	tmpl, err := wallet.LoadTemplate(os.DirFS(cfg.WalletTemplateDir))
	if err != nil {
		return nil, err
	}
	signer, err := wallet.LoadSigner(cfg.WalletCertP12, cfg.WalletCertPassword, cfg.WalletWWDRCert)
	if err != nil {
		return nil, err
	}
	return wallet.NewHandler(logger, cards, wallet.NewBuilder(tmpl, signer, opts)), nil
}
