package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/clearledger/reconcile-backend/internal/alerts"
	"github.com/clearledger/reconcile-backend/internal/retry"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

// retrySweeper reprocesses payment events whose retry window has elapsed.
type retrySweeper interface {
	ProcessPendingRetries(ctx context.Context, now time.Time) (*retry.SweepResult, error)
}

// RetrySweepJobParams configure the payment event retry sweep.
type RetrySweepJobParams struct {
	Logger *logger.Logger
	Retry  retrySweeper
	Alerts alerts.Notifier

	// AlertThreshold alerts when a single sweep dead-letters at least this
	// many events. Zero disables the check.
	AlertThreshold int
}

// NewRetrySweepJob builds the cron job that replays due payment events.
func NewRetrySweepJob(params RetrySweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Retry == nil {
		return nil, fmt.Errorf("retry service required")
	}
	return &retrySweepJob{
		logg:           params.Logger,
		retry:          params.Retry,
		alerts:         params.Alerts,
		alertThreshold: params.AlertThreshold,
		now:            time.Now,
	}, nil
}

type retrySweepJob struct {
	logg           *logger.Logger
	retry          retrySweeper
	alerts         alerts.Notifier
	alertThreshold int
	now            func() time.Time
}

func (j *retrySweepJob) Name() string { return "retry-sweep" }

func (j *retrySweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	result, err := j.retry.ProcessPendingRetries(ctx, now)
	if err != nil {
		return fmt.Errorf("process pending retries: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed":   result.Processed,
		"succeeded":   result.Succeeded,
		"failed":      result.Failed,
		"dead_letter": result.MovedToDeadLetter,
	})
	if j.alertThreshold > 0 && result.MovedToDeadLetter >= j.alertThreshold {
		j.logg.Warn(logCtx, "retry sweep dead-lettered an unusual number of events")
		if j.alerts != nil {
			alert := alerts.SweepAlert{
				Job:               j.Name(),
				Processed:         result.Processed,
				Failed:            result.Failed,
				MovedToDeadLetter: result.MovedToDeadLetter,
				At:                now,
			}
			if err := j.alerts.NotifySweepFailure(ctx, alert); err != nil {
				j.logg.Error(logCtx, "sweep alert delivery failed", err)
			}
		}
	}
	j.logg.Info(logCtx, "retry sweep complete")
	return nil
}
