package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
)

// Repository manages agent balances and the commission fields on orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	ListMatured(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	ReleaseOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	CreditAgent(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error
	DebitAgent(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error
	AddAgentSales(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// ListMatured returns orders whose pending commission hold has elapsed,
// oldest maturation first.
func (r *repository) ListMatured(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var matured []models.Order
	if err := r.db.WithContext(ctx).
		Where("commission_status = ?", enums.CommissionStatusPending).
		Where("commission_amount > 0").
		Where("commission_available_at IS NOT NULL AND commission_available_at <= ?", now).
		Order("commission_available_at ASC").
		Limit(limit).
		Find(&matured).Error; err != nil {
		return nil, err
	}
	return matured, nil
}

// ReleaseOrder flips a single pending commission to available. The guarded
// update makes the flip first-writer-wins: a sweep racing another sweep over
// the same order sees zero rows affected and must not credit the agent.
func (r *repository) ReleaseOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("commission_status = ?", enums.CommissionStatusPending).
		Where("commission_amount > 0").
		Update("commission_status", enums.CommissionStatusAvailable)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) UpdateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// CreditAgent adds to the withdrawable balance with a relative update so
// concurrent releases never lose increments.
func (r *repository) CreditAgent(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", agentID).
		Update("commission_balance", gorm.Expr("commission_balance + ?", amount)).Error
}

func (r *repository) DebitAgent(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", agentID).
		Update("commission_balance", gorm.Expr("commission_balance - ?", amount)).Error
}

func (r *repository) AddAgentSales(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", agentID).
		Update("total_sales", gorm.Expr("total_sales + ?", amount)).Error
}
