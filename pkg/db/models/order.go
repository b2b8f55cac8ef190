package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/pkg/enums"
)

// Order carries the subset of the commerce order this pipeline owns or reads.
// The commission fields are mutated only by the reconciliation pipeline.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      *uuid.UUID          `gorm:"column:tenant_id;type:uuid;index"`
	Status        enums.OrderStatus   `gorm:"column:status;not null;default:'new'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency      string              `gorm:"column:currency;not null;default:'USD'"`

	CustomerEmail string `gorm:"column:customer_email;not null"`
	CustomerName  string `gorm:"column:customer_name;not null"`

	AgentID    *uuid.UUID `gorm:"column:agent_id;type:uuid;index"`
	RefAgentID *uuid.UUID `gorm:"column:ref_agent_id;type:uuid;index"`

	CommissionAmount      decimal.Decimal        `gorm:"column:commission_amount;type:numeric(12,2);not null;default:0"`
	CommissionStatus      enums.CommissionStatus `gorm:"column:commission_status;not null;default:'pending';index:ix_orders_commission_release,priority:1"`
	CommissionAvailableAt *time.Time             `gorm:"column:commission_available_at;index:ix_orders_commission_release,priority:2"`

	PaidAt     *time.Time `gorm:"column:paid_at"`
	CanceledAt *time.Time `gorm:"column:canceled_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CommissionAgentID returns the agent credited for this order, preferring the
// direct assignment over the referral attribution.
func (o *Order) CommissionAgentID() *uuid.UUID {
	if o.AgentID != nil {
		return o.AgentID
	}
	return o.RefAgentID
}
