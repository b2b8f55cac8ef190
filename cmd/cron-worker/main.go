package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clearledger/reconcile-backend/internal/alerts"
	"github.com/clearledger/reconcile-backend/internal/commissions"
	"github.com/clearledger/reconcile-backend/internal/cron"
	"github.com/clearledger/reconcile-backend/internal/erpsync"
	"github.com/clearledger/reconcile-backend/internal/orders"
	"github.com/clearledger/reconcile-backend/internal/payments"
	"github.com/clearledger/reconcile-backend/internal/reporting"
	"github.com/clearledger/reconcile-backend/internal/retry"
	"github.com/clearledger/reconcile-backend/pkg/config"
	"github.com/clearledger/reconcile-backend/pkg/db"
	"github.com/clearledger/reconcile-backend/pkg/erp"
	"github.com/clearledger/reconcile-backend/pkg/logger"
	"github.com/clearledger/reconcile-backend/pkg/metrics"
	"github.com/clearledger/reconcile-backend/pkg/migrate"
	"github.com/clearledger/reconcile-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	cronMetrics := metrics.NewCronJobMetrics(registry)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	erpClient, err := erp.NewClient(context.Background(), cfg.ERP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create erp client", err)
		os.Exit(1)
	}

	eventRepo := payments.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	commissionRepo := commissions.NewRepository(dbClient.DB())

	commissionSvc, err := commissions.NewService(commissions.ServiceParams{
		Repo:              commissionRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
		DefaultRate:       cfg.Commission.Rate(),
		HoldPeriod:        cfg.Commission.HoldPeriod(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
		os.Exit(1)
	}

	erpSyncSvc, err := erpsync.NewService(erpsync.ServiceParams{
		Repo:   erpsync.NewRepository(dbClient.DB()),
		Orders: orderRepo,
		ERP:    erpClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create erp sync service", err)
		os.Exit(1)
	}

	notifier := alerts.New(cfg.Alerts, logg)

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Events:            eventRepo,
		Orders:            orderRepo,
		Commissions:       commissionSvc,
		CommissionsRepo:   commissionRepo,
		ERPSync:           erpSyncSvc,
		TransactionRunner: dbClient,
		Policy:            retry.NewPolicy(cfg.Retry),
		Alerts:            notifier,
		Metrics:           webhookMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	retrySvc, err := retry.NewService(retry.ServiceParams{
		Events:     eventRepo,
		Processor:  paymentSvc,
		Logger:     logg,
		Metrics:    webhookMetrics,
		BatchLimit: cfg.Retry.BatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retry service", err)
		os.Exit(1)
	}

	releaseJob, err := cron.NewCommissionReleaseJob(cron.CommissionReleaseJobParams{
		Logger:      logg,
		Commissions: commissionSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commission release job", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewRetrySweepJob(cron.RetrySweepJobParams{
		Logger:         logg,
		Retry:          retrySvc,
		Alerts:         notifier,
		AlertThreshold: cfg.Cron.AlertThreshold,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retry sweep job", err)
		os.Exit(1)
	}

	syncJob, err := cron.NewERPSyncJob(cron.ERPSyncJobParams{
		Logger:     logg,
		Sync:       erpSyncSvc,
		BatchLimit: cfg.Cron.SyncBatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create erp sync job", err)
		os.Exit(1)
	}

	reportSvc, err := reporting.NewService(reporting.ServiceParams{
		Repo:   reporting.NewRepository(dbClient.DB()),
		Alerts: notifier,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create report service", err)
		os.Exit(1)
	}

	reportJob, err := cron.NewReconciliationReportJob(cron.ReconciliationReportJobParams{
		Logger:  logg,
		Reports: reportSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation report job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, releaseJob, syncJob, reportJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
