package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/clearledger/reconcile-backend/internal/commissions"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

// commissionReleaser matures held commissions into agent balances.
type commissionReleaser interface {
	ReleaseMatured(ctx context.Context, now time.Time) (*commissions.ReleaseResult, error)
}

// CommissionReleaseJobParams configure the commission release sweep.
type CommissionReleaseJobParams struct {
	Logger      *logger.Logger
	Commissions commissionReleaser
}

// NewCommissionReleaseJob builds the cron job that flips matured commissions
// from pending to available and credits the owning agents.
func NewCommissionReleaseJob(params CommissionReleaseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Commissions == nil {
		return nil, fmt.Errorf("commission service required")
	}
	return &commissionReleaseJob{
		logg:        params.Logger,
		commissions: params.Commissions,
		now:         time.Now,
	}, nil
}

type commissionReleaseJob struct {
	logg        *logger.Logger
	commissions commissionReleaser
	now         func() time.Time
}

func (j *commissionReleaseJob) Name() string { return "commission-release" }

func (j *commissionReleaseJob) Run(ctx context.Context) error {
	result, err := j.commissions.ReleaseMatured(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("release matured commissions: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"orders_released": result.OrdersReleased,
		"agents_credited": result.AgentsCredited,
		"total_released":  result.TotalReleased.String(),
	})
	j.logg.Info(logCtx, "commission release sweep complete")
	return nil
}
