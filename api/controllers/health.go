package controllers

import (
	"net/http"

	"go.uber.org/multierr"

	"github.com/clearledger/reconcile-backend/api/responses"
	"github.com/clearledger/reconcile-backend/pkg/config"
	"github.com/clearledger/reconcile-backend/pkg/db"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
	"github.com/clearledger/reconcile-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ClearLedger-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the backing stores. A nil pinger is treated as not wired
// and skipped so the cron worker can reuse the handler without a database.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ClearLedger-Env", cfg.App.Env)
		ctx := r.Context()

		var err error
		checks := map[string]string{}
		if dbP != nil {
			if pingErr := dbP.Ping(ctx); pingErr != nil {
				checks["postgres"] = "down"
				err = multierr.Append(err, pingErr)
			} else {
				checks["postgres"] = "up"
			}
		}
		if redisP != nil {
			if pingErr := redisP.Ping(ctx); pingErr != nil {
				checks["redis"] = "down"
				err = multierr.Append(err, pingErr)
			} else {
				checks["redis"] = "up"
			}
		}

		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "readiness check"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
