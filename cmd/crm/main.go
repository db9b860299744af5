package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/SGK112/CRM-sub002/internal/app"
	"github.com/SGK112/CRM-sub002/internal/billing/conversion"
	"github.com/SGK112/CRM-sub002/internal/billing/estimates"
	"github.com/SGK112/CRM-sub002/internal/billing/invoices"
	"github.com/SGK112/CRM-sub002/internal/billing/numbering"
	"github.com/SGK112/CRM-sub002/internal/billing/share"
	"github.com/SGK112/CRM-sub002/internal/catalog"
	"github.com/SGK112/CRM-sub002/internal/clients"
	"github.com/SGK112/CRM-sub002/internal/documents"
	"github.com/SGK112/CRM-sub002/internal/notify"
	"github.com/SGK112/CRM-sub002/internal/observability"
	"github.com/SGK112/CRM-sub002/internal/platform/cache"
	"github.com/SGK112/CRM-sub002/internal/platform/db"
	"github.com/SGK112/CRM-sub002/jobs"
	"github.com/SGK112/CRM-sub002/migrations"
	"github.com/SGK112/CRM-sub002/report"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(pool, migrations.FS); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	// The share PDF cache is optional; without redis every request renders.
	var pdfCache redis.Cmdable
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, share pdf cache disabled", slog.Any("error", err))
	} else {
		pdfCache = redisClient
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	reportClient := report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
	renderer, err := documents.NewPDFRenderer(reportClient, documents.Options{CompanyName: cfg.CompanyName})
	if err != nil {
		logger.Error("init document renderer", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewQueueNotifier(jobClient, logger, metrics)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	numberingCfg := numbering.Config{
		ProbeLimit:    cfg.NumberingProbeLimit,
		InsertRetries: cfg.NumberingInsertRetries,
	}
	clientDirectory := clients.NewRepository(pool)
	estimateRepo := estimates.NewRepository(pool)

	estimateService := estimates.NewService(estimates.Dependencies{
		Repo:        estimateRepo,
		Catalog:     catalog.NewRepository(pool),
		Clients:     clientDirectory,
		Renderer:    renderer,
		Notifier:    notifier,
		Numbering:   numberingCfg,
		Recorder:    metrics,
		Logger:      logger,
		CompanyName: cfg.CompanyName,
	})
	invoiceService := invoices.NewService(invoices.Dependencies{
		Repo:        invoices.NewRepository(pool),
		Clients:     clientDirectory,
		Renderer:    renderer,
		Notifier:    notifier,
		Numbering:   numberingCfg,
		Recorder:    metrics,
		Payments:    metrics,
		Logger:      logger,
		CompanyName: cfg.CompanyName,
	})
	conversionService := conversion.NewService(estimateService, invoiceService, metrics, logger)
	gateway := share.NewGateway(share.Options{
		Store:    estimateRepo,
		Clients:  clientDirectory,
		Renderer: renderer,
		Cache:    pdfCache,
		CacheTTL: cfg.SharePDFCacheTTL,
		Recorder: metrics,
		Logger:   logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		EstimatesHandler:  estimates.NewHandler(logger, estimateService),
		ConversionHandler: conversion.NewHandler(logger, conversionService),
		InvoicesHandler:   invoices.NewHandler(logger, invoiceService),
		ShareHandler:      share.NewHandler(logger, gateway, cfg.PublicRateLimit),
		ReportHandler:     report.NewHandler(reportClient, logger),
		JobHandler:        jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
