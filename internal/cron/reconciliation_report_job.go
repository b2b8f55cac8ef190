package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/clearledger/reconcile-backend/internal/reporting"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

// reportGenerator builds the daily payment/order reconciliation report.
type reportGenerator interface {
	GenerateDaily(ctx context.Context, now time.Time) (*reporting.Report, error)
}

// ReconciliationReportJobParams configure the daily reconciliation report.
type ReconciliationReportJobParams struct {
	Logger  *logger.Logger
	Reports reportGenerator
}

// NewReconciliationReportJob builds the cron job that reconciles yesterday's
// payments against orders and the ERP sync ledger.
func NewReconciliationReportJob(params ReconciliationReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reports == nil {
		return nil, fmt.Errorf("report service required")
	}
	return &reconciliationReportJob{
		logg:    params.Logger,
		reports: params.Reports,
		now:     time.Now,
	}, nil
}

type reconciliationReportJob struct {
	logg    *logger.Logger
	reports reportGenerator
	now     func() time.Time
}

func (j *reconciliationReportJob) Name() string { return "reconciliation-report" }

func (j *reconciliationReportJob) Run(ctx context.Context) error {
	report, err := j.reports.GenerateDaily(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("generate reconciliation report: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"date":           report.Date,
		"payments":       report.Payments.Total,
		"matched":        report.Reconciliation.Matched,
		"mismatches":     report.Reconciliation.Mismatches,
		"missing_orders": report.Reconciliation.MissingOrders,
	})
	j.logg.Info(logCtx, "reconciliation report complete")
	return nil
}
