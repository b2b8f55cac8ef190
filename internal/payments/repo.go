package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
	"github.com/clearledger/reconcile-backend/pkg/pagination"
)

// Repository manages persistence for payment events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.PaymentEvent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentEvent, error)
	FindByEventID(ctx context.Context, eventID string) (*models.PaymentEvent, error)
	Update(ctx context.Context, event *models.PaymentEvent) error
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.PaymentEvent, error)
	ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]models.PaymentEvent, error)
	ListDeadLettered(ctx context.Context, params pagination.Params) ([]models.PaymentEvent, error)
	ListDeadLetteredIDs(ctx context.Context) ([]uuid.UUID, error)
	ResetDeadLettered(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)
	ClearDeadLettered(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentEvent, error) {
	var event models.PaymentEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindByEventID(ctx context.Context, eventID string) (*models.PaymentEvent, error) {
	var event models.PaymentEvent
	if err := r.db.WithContext(ctx).First(&event, "event_id = ?", eventID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) Update(ctx context.Context, event *models.PaymentEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}

// ClaimForProcessing moves an event into processing with a guarded update.
// Two deliveries of the same event racing toward processing resolve here:
// only one flips the row and gets to apply the business effects.
func (r *repository) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("id = ?", id).
		Where("status IN ?", []enums.PaymentEventStatus{enums.EventStatusReceived, enums.EventStatusRetrying}).
		Where("in_dead_letter = ?", false).
		Update("status", enums.EventStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.PaymentEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var events []models.PaymentEvent
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListDueForRetry returns retrying events whose backoff window has elapsed,
// oldest first so starved events drain before fresh failures.
func (r *repository) ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.EventStatusRetrying).
		Where("in_dead_letter = ?", false).
		Where("next_retry_at IS NOT NULL AND next_retry_at <= ?", now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListDeadLettered(ctx context.Context, params pagination.Params) ([]models.PaymentEvent, error) {
	query := r.db.WithContext(ctx).
		Where("in_dead_letter = ?", true).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var events []models.PaymentEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListDeadLetteredIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("in_dead_letter = ?", true).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ResetDeadLettered requeues dead-lettered events with a fresh attempt budget.
// An empty id list targets the whole queue.
func (r *repository) ResetDeadLettered(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("in_dead_letter = ?", true)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	result := query.Updates(map[string]any{
		"status":             enums.EventStatusRetrying,
		"in_dead_letter":     false,
		"dead_letter_reason": nil,
		"dead_letter_at":     nil,
		"attempts":           0,
		"next_retry_at":      now,
		"updated_at":         now,
	})
	return result.RowsAffected, result.Error
}

// ClearDeadLettered permanently discards dead-lettered events by marking them
// ignored. An empty id list targets the whole queue.
func (r *repository) ClearDeadLettered(ctx context.Context, ids []uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("in_dead_letter = ?", true)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	result := query.Updates(map[string]any{
		"status":         enums.EventStatusIgnored,
		"in_dead_letter": false,
		"next_retry_at":  nil,
	})
	return result.RowsAffected, result.Error
}
