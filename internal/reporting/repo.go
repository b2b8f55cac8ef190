package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
)

// Repository reads the cross-table slices the reconciliation report needs.
type Repository interface {
	ListProcessedPayments(ctx context.Context, from, to time.Time) ([]models.PaymentEvent, error)
	FindOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	CountSyncStatuses(ctx context.Context, from, to time.Time) (map[enums.SyncStatus]int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a report repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ListProcessedPayments returns the success events settled inside the window.
func (r *repository) ListProcessedPayments(ctx context.Context, from, to time.Time) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	if err := r.db.WithContext(ctx).
		Where("type = ?", enums.PaymentEventSuccess).
		Where("status = ?", enums.EventStatusProcessed).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) FindOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) CountSyncStatuses(ctx context.Context, from, to time.Time) (map[enums.SyncStatus]int, error) {
	type row struct {
		SyncStatus enums.SyncStatus
		Count      int
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.IntegrationSyncMap{}).
		Select("sync_status, COUNT(*) AS count").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("sync_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[enums.SyncStatus]int, len(rows))
	for _, r := range rows {
		counts[r.SyncStatus] = r.Count
	}
	return counts, nil
}
