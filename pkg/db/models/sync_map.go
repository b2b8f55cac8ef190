package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clearledger/reconcile-backend/pkg/db/types"
	"github.com/clearledger/reconcile-backend/pkg/enums"
)

// IntegrationSyncMap tracks the resumable three-step ERP synchronization of
// one order. Each populated id marks a completed step that is never re-sent.
type IntegrationSyncMap struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_sync_maps_order_id"`

	SyncStatus enums.SyncStatus `gorm:"column:sync_status;not null;default:'pending';index"`

	ERPCustomerID   *string `gorm:"column:erp_customer_id"`
	ERPSalesOrderID *string `gorm:"column:erp_sales_order_id"`
	ERPInvoiceID    *string `gorm:"column:erp_invoice_id"`
	ERPCreditNoteID *string `gorm:"column:erp_credit_note_id"`
	InvoiceNumber   *string `gorm:"column:invoice_number"`

	LastSyncAttempt *time.Time     `gorm:"column:last_sync_attempt"`
	ErrorLog        types.ErrorLog `gorm:"column:error_log;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// StepsComplete reports whether all three sync steps are done.
func (m *IntegrationSyncMap) StepsComplete() bool {
	return m.ERPCustomerID != nil && m.ERPSalesOrderID != nil && m.ERPInvoiceID != nil
}
