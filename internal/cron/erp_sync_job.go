package cron

import (
	"context"
	"fmt"

	"github.com/clearledger/reconcile-backend/internal/erpsync"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

// erpSyncSweeper resumes sales order syncs that stalled mid-pipeline.
type erpSyncSweeper interface {
	RetryFailedSyncs(ctx context.Context, limit int) (*erpsync.SweepResult, error)
}

// ERPSyncJobParams configure the ERP sync retry sweep.
type ERPSyncJobParams struct {
	Logger     *logger.Logger
	Sync       erpSyncSweeper
	BatchLimit int
}

// NewERPSyncJob builds the cron job that retries partial and failed ERP syncs.
func NewERPSyncJob(params ERPSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sync == nil {
		return nil, fmt.Errorf("erp sync service required")
	}
	return &erpSyncJob{
		logg:       params.Logger,
		sync:       params.Sync,
		batchLimit: params.BatchLimit,
	}, nil
}

type erpSyncJob struct {
	logg       *logger.Logger
	sync       erpSyncSweeper
	batchLimit int
}

func (j *erpSyncJob) Name() string { return "erp-sync" }

func (j *erpSyncJob) Run(ctx context.Context) error {
	result, err := j.sync.RetryFailedSyncs(ctx, j.batchLimit)
	if err != nil {
		return fmt.Errorf("retry failed syncs: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"attempted": result.Attempted,
		"synced":    result.Synced,
		"failed":    result.Failed,
	})
	j.logg.Info(logCtx, "erp sync sweep complete")
	return nil
}
