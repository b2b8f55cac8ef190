package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/clearledger/reconcile-backend/api/responses"
	"github.com/clearledger/reconcile-backend/pkg/config"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

// CronAuth guards the manual sweep trigger and dead-letter admin endpoints
// with a shared bearer secret. An empty configured secret fails closed.
func CronAuth(cfg config.CronConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Secret == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator access not configured"))
				return
			}

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Secret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
