package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/clearledger/reconcile-backend/api/responses"
	"github.com/clearledger/reconcile-backend/internal/commissions"
	"github.com/clearledger/reconcile-backend/internal/erpsync"
	"github.com/clearledger/reconcile-backend/internal/reporting"
	"github.com/clearledger/reconcile-backend/internal/retry"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

type commissionReleaser interface {
	ReleaseMatured(ctx context.Context, now time.Time) (*commissions.ReleaseResult, error)
}

type retrySweeper interface {
	ProcessPendingRetries(ctx context.Context, now time.Time) (*retry.SweepResult, error)
}

type erpSyncSweeper interface {
	RetryFailedSyncs(ctx context.Context, limit int) (*erpsync.SweepResult, error)
}

type reportGenerator interface {
	GenerateDaily(ctx context.Context, now time.Time) (*reporting.Report, error)
}

// TriggerCommissionRelease runs the commission maturity sweep on demand.
// The scheduled worker covers the steady state; this exists for operators.
func TriggerCommissionRelease(svc commissionReleaser, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		result, err := svc.ReleaseMatured(ctx, time.Now().UTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TriggerRetrySweep replays payment events whose retry window has elapsed.
func TriggerRetrySweep(svc retrySweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "retry service unavailable"))
			return
		}
		result, err := svc.ProcessPendingRetries(ctx, time.Now().UTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TriggerReconciliationReport builds yesterday's reconciliation report on
// demand and returns it to the caller.
func TriggerReconciliationReport(svc reportGenerator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "report service unavailable"))
			return
		}
		report, err := svc.GenerateDaily(ctx, time.Now().UTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// TriggerERPSyncSweep resumes stalled ERP syncs on demand.
func TriggerERPSyncSweep(svc erpSyncSweeper, batchLimit int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "erp sync service unavailable"))
			return
		}
		result, err := svc.RetryFailedSyncs(ctx, batchLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
