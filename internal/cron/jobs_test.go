package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/internal/alerts"
	"github.com/clearledger/reconcile-backend/internal/commissions"
	"github.com/clearledger/reconcile-backend/internal/erpsync"
	"github.com/clearledger/reconcile-backend/internal/reporting"
	"github.com/clearledger/reconcile-backend/internal/retry"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

type fakeReleaser struct {
	result *commissions.ReleaseResult
	err    error
	calls  int
	seen   time.Time
}

func (f *fakeReleaser) ReleaseMatured(ctx context.Context, now time.Time) (*commissions.ReleaseResult, error) {
	f.calls++
	f.seen = now
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestCommissionReleaseJob(t *testing.T) {
	releaser := &fakeReleaser{result: &commissions.ReleaseResult{
		OrdersReleased: 3,
		AgentsCredited: 2,
		TotalReleased:  decimal.NewFromInt(150),
	}}
	job, err := NewCommissionReleaseJob(CommissionReleaseJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test"}),
		Commissions: releaser,
	})
	if err != nil {
		t.Fatalf("NewCommissionReleaseJob: %v", err)
	}
	if job.Name() != "commission-release" {
		t.Fatalf("unexpected name: %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if releaser.calls != 1 {
		t.Fatalf("expected one release call, got %d", releaser.calls)
	}
	if releaser.seen.Location() != time.UTC {
		t.Fatalf("sweep must use UTC")
	}
}

func TestCommissionReleaseJobPropagatesError(t *testing.T) {
	releaser := &fakeReleaser{err: errors.New("boom")}
	job, err := NewCommissionReleaseJob(CommissionReleaseJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test"}),
		Commissions: releaser,
	})
	if err != nil {
		t.Fatalf("NewCommissionReleaseJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeRetrySweeper struct {
	result *retry.SweepResult
	err    error
	calls  int
}

func (f *fakeRetrySweeper) ProcessPendingRetries(ctx context.Context, now time.Time) (*retry.SweepResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestRetrySweepJob(t *testing.T) {
	sweeper := &fakeRetrySweeper{result: &retry.SweepResult{
		Processed:         4,
		Succeeded:         2,
		Failed:            1,
		MovedToDeadLetter: 1,
	}}
	job, err := NewRetrySweepJob(RetrySweepJobParams{
		Logger:         logger.New(logger.Options{ServiceName: "cron-test"}),
		Retry:          sweeper,
		AlertThreshold: 5,
	})
	if err != nil {
		t.Fatalf("NewRetrySweepJob: %v", err)
	}
	if job.Name() != "retry-sweep" {
		t.Fatalf("unexpected name: %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
}

type fakeSweepNotifier struct {
	sweeps []alerts.SweepAlert
}

func (f *fakeSweepNotifier) NotifyDeadLetter(ctx context.Context, alert alerts.DeadLetterAlert) error {
	return nil
}

func (f *fakeSweepNotifier) NotifySweepFailure(ctx context.Context, alert alerts.SweepAlert) error {
	f.sweeps = append(f.sweeps, alert)
	return nil
}

func (f *fakeSweepNotifier) NotifyReconciliationIssues(ctx context.Context, alert alerts.ReconciliationAlert) error {
	return nil
}

func TestRetrySweepJobAlertsAboveThreshold(t *testing.T) {
	sweeper := &fakeRetrySweeper{result: &retry.SweepResult{
		Processed:         8,
		MovedToDeadLetter: 6,
	}}
	notifier := &fakeSweepNotifier{}
	job, err := NewRetrySweepJob(RetrySweepJobParams{
		Logger:         logger.New(logger.Options{ServiceName: "cron-test"}),
		Retry:          sweeper,
		Alerts:         notifier,
		AlertThreshold: 5,
	})
	if err != nil {
		t.Fatalf("NewRetrySweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.sweeps) != 1 {
		t.Fatalf("expected one sweep alert, got %d", len(notifier.sweeps))
	}
	if notifier.sweeps[0].MovedToDeadLetter != 6 {
		t.Fatalf("alert must carry the dead-letter count")
	}
}

func TestRetrySweepJobPropagatesError(t *testing.T) {
	sweeper := &fakeRetrySweeper{err: errors.New("db down")}
	job, err := NewRetrySweepJob(RetrySweepJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Retry:  sweeper,
	})
	if err != nil {
		t.Fatalf("NewRetrySweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeERPSweeper struct {
	result *erpsync.SweepResult
	limit  int
	calls  int
}

func (f *fakeERPSweeper) RetryFailedSyncs(ctx context.Context, limit int) (*erpsync.SweepResult, error) {
	f.calls++
	f.limit = limit
	return f.result, nil
}

func TestERPSyncJob(t *testing.T) {
	sweeper := &fakeERPSweeper{result: &erpsync.SweepResult{Attempted: 2, Synced: 1, Failed: 1}}
	job, err := NewERPSyncJob(ERPSyncJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Sync:       sweeper,
		BatchLimit: 25,
	})
	if err != nil {
		t.Fatalf("NewERPSyncJob: %v", err)
	}
	if job.Name() != "erp-sync" {
		t.Fatalf("unexpected name: %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 1 || sweeper.limit != 25 {
		t.Fatalf("expected one sweep with limit 25, got %d/%d", sweeper.calls, sweeper.limit)
	}
}

type fakeReportGenerator struct {
	report *reporting.Report
	err    error
	calls  int
	seen   time.Time
}

func (f *fakeReportGenerator) GenerateDaily(ctx context.Context, now time.Time) (*reporting.Report, error) {
	f.calls++
	f.seen = now
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func TestReconciliationReportJob(t *testing.T) {
	gen := &fakeReportGenerator{report: &reporting.Report{
		Date:     "2026-08-29",
		Payments: reporting.Totals{Total: 3, TotalAmount: decimal.NewFromInt(250)},
		Reconciliation: reporting.Summary{
			Matched:       2,
			Mismatches:    1,
			MissingOrders: 0,
		},
	}}
	job, err := NewReconciliationReportJob(ReconciliationReportJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Reports: gen,
	})
	if err != nil {
		t.Fatalf("NewReconciliationReportJob: %v", err)
	}
	if job.Name() != "reconciliation-report" {
		t.Fatalf("unexpected name: %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one report, got %d", gen.calls)
	}
	if gen.seen.Location() != time.UTC {
		t.Fatalf("report must use UTC")
	}
}

func TestReconciliationReportJobPropagatesError(t *testing.T) {
	gen := &fakeReportGenerator{err: errors.New("db down")}
	job, err := NewReconciliationReportJob(ReconciliationReportJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Reports: gen,
	})
	if err != nil {
		t.Fatalf("NewReconciliationReportJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestJobConstructorsRequireDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	if _, err := NewCommissionReleaseJob(CommissionReleaseJobParams{Logger: logg}); err == nil {
		t.Fatal("expected commission service requirement")
	}
	if _, err := NewRetrySweepJob(RetrySweepJobParams{Logger: logg}); err == nil {
		t.Fatal("expected retry service requirement")
	}
	if _, err := NewERPSyncJob(ERPSyncJobParams{Logger: logg}); err == nil {
		t.Fatal("expected sync service requirement")
	}
	if _, err := NewReconciliationReportJob(ReconciliationReportJobParams{Logger: logg}); err == nil {
		t.Fatal("expected report service requirement")
	}
	if _, err := NewCommissionReleaseJob(CommissionReleaseJobParams{Commissions: &fakeReleaser{}}); err == nil {
		t.Fatal("expected logger requirement")
	}
}
