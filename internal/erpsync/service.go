package erpsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/internal/orders"
	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
	"github.com/clearledger/reconcile-backend/pkg/erp"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

const defaultSweepLimit = 50

// ServiceParams wires the sync orchestrator dependencies.
type ServiceParams struct {
	Repo   Repository
	Orders orders.Repository
	ERP    erp.API
	Logger *logger.Logger
}

// Service pushes settled orders into the ERP in three resumable steps:
// customer, sales order, invoice. Progress persists after every step, so a
// retry never repeats a completed step.
type Service struct {
	repo      Repository
	orders    orders.Repository
	erpClient erp.API
	logger    *logger.Logger
}

// NewService validates dependencies and returns the sync orchestrator.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sync repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repo required")
	}
	if params.ERP == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "erp client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:      params.Repo,
		orders:    params.Orders,
		erpClient: params.ERP,
		logger:    params.Logger,
	}, nil
}

// SyncOrder runs the pipeline for one order, picking up wherever the last
// attempt stopped. It stops at the first failing step and records the error
// on the sync map.
func (s *Service) SyncOrder(ctx context.Context, orderID uuid.UUID) (*models.IntegrationSyncMap, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	ctx = s.logger.WithOrderID(ctx, orderID.String())

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	syncMap, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sync map")
	}
	if syncMap == nil {
		syncMap = &models.IntegrationSyncMap{
			OrderID:    orderID,
			SyncStatus: enums.SyncStatusPending,
		}
		if err := s.repo.Create(ctx, syncMap); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sync map")
		}
	}
	if syncMap.SyncStatus == enums.SyncStatusSynced {
		return syncMap, nil
	}

	now := time.Now().UTC()
	syncMap.LastSyncAttempt = &now

	if syncMap.ERPCustomerID == nil {
		customer, err := s.erpClient.UpsertCustomer(ctx, erp.CustomerParams{
			Email: order.CustomerEmail,
			Name:  order.CustomerName,
		})
		if err != nil {
			return syncMap, s.recordStepFailure(ctx, syncMap, "upsert customer", err)
		}
		syncMap.ERPCustomerID = &customer.ID
		if err := s.saveProgress(ctx, syncMap); err != nil {
			return syncMap, err
		}
	}

	if syncMap.ERPSalesOrderID == nil {
		salesOrder, err := s.erpClient.CreateSalesOrder(ctx, erp.SalesOrderParams{
			CustomerID: *syncMap.ERPCustomerID,
			OrderRef:   order.ID.String(),
			Amount:     order.TotalAmount,
			Currency:   order.Currency,
		})
		if err != nil {
			return syncMap, s.recordStepFailure(ctx, syncMap, "create sales order", err)
		}
		syncMap.ERPSalesOrderID = &salesOrder.ID
		if err := s.saveProgress(ctx, syncMap); err != nil {
			return syncMap, err
		}
	}

	if syncMap.ERPInvoiceID == nil {
		invoice, err := s.erpClient.CreateInvoice(ctx, erp.InvoiceParams{
			SalesOrderID: *syncMap.ERPSalesOrderID,
		})
		if err != nil {
			return syncMap, s.recordStepFailure(ctx, syncMap, "create invoice", err)
		}
		syncMap.ERPInvoiceID = &invoice.ID
		syncMap.InvoiceNumber = &invoice.Number
	}

	syncMap.SyncStatus = enums.SyncStatusSynced
	if err := s.repo.Update(ctx, syncMap); err != nil {
		return syncMap, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save sync map")
	}

	s.logger.Info(ctx, "order synced to erp")
	return syncMap, nil
}

// IssueCreditNote reverses the synced invoice after a refund. Orders that
// never reached the invoice step have nothing to reverse.
func (s *Service) IssueCreditNote(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reason string) error {
	syncMap, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sync map")
	}
	if syncMap == nil || syncMap.ERPInvoiceID == nil {
		return nil
	}
	if syncMap.ERPCreditNoteID != nil {
		return nil
	}

	note, err := s.erpClient.CreateCreditNote(ctx, erp.CreditNoteParams{
		InvoiceID: *syncMap.ERPInvoiceID,
		Amount:    amount,
		Reason:    reason,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create credit note")
	}

	syncMap.ERPCreditNoteID = &note.ID
	if err := s.repo.Update(ctx, syncMap); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save sync map")
	}
	return nil
}

// SweepResult summarizes one sync retry sweep.
type SweepResult struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}

// RetryFailedSyncs re-runs the pipeline for every order whose ERP push is
// absent or stuck short of synced. Discovery goes through the orders table,
// so a settled order that crashed before its first SyncOrder call is picked
// up even though no sync map exists for it yet.
func (s *Service) RetryFailedSyncs(ctx context.Context, limit int) (*SweepResult, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	stuck, err := s.repo.ListOrdersNeedingSync(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stuck syncs")
	}

	result := &SweepResult{}
	for _, orderID := range stuck {
		result.Attempted++
		synced, err := s.SyncOrder(ctx, orderID)
		if err != nil {
			result.Failed++
			continue
		}
		if synced != nil && synced.SyncStatus == enums.SyncStatusSynced {
			result.Synced++
		} else {
			result.Failed++
		}
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"attempted": result.Attempted,
		"synced":    result.Synced,
		"failed":    result.Failed,
	})
	s.logger.Info(ctx, "erp sync sweep completed")
	return result, nil
}

func (s *Service) saveProgress(ctx context.Context, syncMap *models.IntegrationSyncMap) error {
	syncMap.SyncStatus = enums.SyncStatusPartial
	if err := s.repo.Update(ctx, syncMap); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save sync progress")
	}
	return nil
}

func (s *Service) recordStepFailure(ctx context.Context, syncMap *models.IntegrationSyncMap, step string, cause error) error {
	if syncMap.ERPCustomerID == nil && syncMap.ERPSalesOrderID == nil && syncMap.ERPInvoiceID == nil {
		syncMap.SyncStatus = enums.SyncStatusFailed
	} else {
		syncMap.SyncStatus = enums.SyncStatusPartial
	}
	syncMap.ErrorLog = syncMap.ErrorLog.Append(time.Now().UTC(), fmt.Sprintf("%s: %v", step, cause))

	if err := s.repo.Update(ctx, syncMap); err != nil {
		s.logger.Error(ctx, "could not persist sync failure", err)
	}
	s.logger.Error(ctx, fmt.Sprintf("erp sync step failed: %s", step), cause)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, fmt.Sprintf("erp %s", step))
}
