package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clearledger/reconcile-backend/api/routes"
	"github.com/clearledger/reconcile-backend/internal/alerts"
	"github.com/clearledger/reconcile-backend/internal/commissions"
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
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	reportSvc, err := reporting.NewService(reporting.ServiceParams{
		Repo:   reporting.NewRepository(dbClient.DB()),
		Alerts: notifier,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create report service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Payments:    paymentSvc,
			Verifier:    payments.NewSignatureVerifier(cfg.Webhook.Secret),
			Commissions: commissionSvc,
			Retry:       retrySvc,
			ERPSync:     erpSyncSvc,
			Reports:     reportSvc,
			Gatherer:    registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
