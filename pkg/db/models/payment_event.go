package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/pkg/db/types"
	"github.com/clearledger/reconcile-backend/pkg/enums"
)

// PaymentEvent is one inbound webhook delivery from the payment provider.
// EventID is the provider-supplied idempotency key; the unique index on it is
// what makes concurrent duplicate deliveries safe.
type PaymentEvent struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID        string                   `gorm:"column:event_id;not null;uniqueIndex:ux_payment_events_event_id"`
	OrderID        uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	Type           enums.PaymentEventType   `gorm:"column:type;not null"`
	Status         enums.PaymentEventStatus `gorm:"column:status;not null;default:'received';index:ix_payment_events_status_retry,priority:1"`
	Amount         decimal.Decimal          `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency       string                   `gorm:"column:currency;not null;default:'USD'"`
	RawPayload     json.RawMessage          `gorm:"column:raw_payload;type:jsonb;not null"`
	Signature      *string                  `gorm:"column:signature"`
	SignatureValid bool                     `gorm:"column:signature_valid;not null;default:false"`

	Attempts    int        `gorm:"column:attempts;not null;default:0"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at;index:ix_payment_events_status_retry,priority:2"`

	InDeadLetter     bool       `gorm:"column:in_dead_letter;not null;default:false"`
	DeadLetterReason *string    `gorm:"column:dead_letter_reason"`
	DeadLetterAt     *time.Time `gorm:"column:dead_letter_at"`

	ErrorLog    types.ErrorLog `gorm:"column:error_log;type:jsonb"`
	ProcessedAt *time.Time     `gorm:"column:processed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
