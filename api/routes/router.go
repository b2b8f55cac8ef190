package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clearledger/reconcile-backend/api/controllers"
	webhookcontrollers "github.com/clearledger/reconcile-backend/api/controllers/webhooks"
	"github.com/clearledger/reconcile-backend/api/middleware"
	"github.com/clearledger/reconcile-backend/internal/commissions"
	"github.com/clearledger/reconcile-backend/internal/erpsync"
	"github.com/clearledger/reconcile-backend/internal/reporting"
	"github.com/clearledger/reconcile-backend/internal/retry"
	"github.com/clearledger/reconcile-backend/pkg/config"
	"github.com/clearledger/reconcile-backend/pkg/db"
	"github.com/clearledger/reconcile-backend/pkg/logger"
	"github.com/clearledger/reconcile-backend/pkg/redis"
)

// RouterParams collect everything the HTTP surface needs.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       redis.Pinger
	Payments    webhookcontrollers.PaymentService
	Verifier    webhookcontrollers.SignatureVerifier
	Commissions *commissions.Service
	Retry       *retry.Service
	ERPSync     *erpsync.Service
	Reports     *reporting.Service
	Gatherer    prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	if params.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(params.Payments, params.Verifier, logg))
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.CronAuth(cfg.Cron, logg))

		r.Route("/cron", func(r chi.Router) {
			r.Post("/release-commissions", controllers.TriggerCommissionRelease(params.Commissions, logg))
			r.Post("/retry-sweeps", controllers.TriggerRetrySweep(params.Retry, logg))
			r.Post("/erp-syncs", controllers.TriggerERPSyncSweep(params.ERPSync, cfg.Cron.SyncBatchLimit, logg))
			r.Post("/reconciliation-reports", controllers.TriggerReconciliationReport(params.Reports, logg))
		})

		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", controllers.ListDeadLetters(params.Retry, logg))
			r.Post("/commands", controllers.CommandDeadLetters(params.Retry, logg))
		})
	})

	return r
}
