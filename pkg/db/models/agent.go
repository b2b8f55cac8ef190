package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Agent is the sales agent credited with commissions. CommissionBalance is
// the withdrawable amount; CommissionOnHold is reserved by pending withdrawal
// requests and never touched by the webhook path.
type Agent struct {
	ID    uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email string    `gorm:"column:email;not null;uniqueIndex"`
	Name  string    `gorm:"column:name;not null"`

	CommissionRate    decimal.NullDecimal `gorm:"column:commission_rate;type:numeric(5,4)"`
	CommissionBalance decimal.Decimal     `gorm:"column:commission_balance;type:numeric(12,2);not null;default:0"`
	CommissionOnHold  decimal.Decimal     `gorm:"column:commission_on_hold;type:numeric(12,2);not null;default:0"`
	TotalSales        decimal.Decimal     `gorm:"column:total_sales;type:numeric(14,2);not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// RateOrDefault returns the agent-specific commission rate when set.
func (a *Agent) RateOrDefault(fallback decimal.Decimal) decimal.Decimal {
	if a != nil && a.CommissionRate.Valid {
		return a.CommissionRate.Decimal
	}
	return fallback
}
