package erpsync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
)

// Repository manages persistence for integration sync maps.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.IntegrationSyncMap, error)
	Create(ctx context.Context, syncMap *models.IntegrationSyncMap) error
	Update(ctx context.Context, syncMap *models.IntegrationSyncMap) error
	ListOrdersNeedingSync(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sync map repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.IntegrationSyncMap, error) {
	var syncMap models.IntegrationSyncMap
	if err := r.db.WithContext(ctx).First(&syncMap, "order_id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &syncMap, nil
}

func (r *repository) Create(ctx context.Context, syncMap *models.IntegrationSyncMap) error {
	return r.db.WithContext(ctx).Create(syncMap).Error
}

func (r *repository) Update(ctx context.Context, syncMap *models.IntegrationSyncMap) error {
	return r.db.WithContext(ctx).Save(syncMap).Error
}

// ListOrdersNeedingSync returns orders whose ERP push is absent or stuck
// short of synced, stalest attempt first. Discovery is order-driven: a
// settled order that never reached SyncOrder has no map row yet and still
// shows up here.
func (r *repository) ListOrdersNeedingSync(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Table("orders").
		Select("orders.id").
		Joins("LEFT JOIN integration_sync_maps ON integration_sync_maps.order_id = orders.id").
		Where(
			"(orders.payment_status = ? AND integration_sync_maps.id IS NULL) OR integration_sync_maps.sync_status IN ?",
			enums.PaymentStatusSuccess,
			[]enums.SyncStatus{enums.SyncStatusPending, enums.SyncStatusPartial, enums.SyncStatusFailed},
		).
		Order("integration_sync_maps.last_sync_attempt ASC NULLS FIRST").
		Limit(limit).
		Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
