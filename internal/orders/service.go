package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearledger/reconcile-backend/internal/commissions"
	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the order service dependencies. Commission deps are
// optional; without them a settlement transition skips commission math.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Commissions       *commissions.Service
	CommissionRepo    commissions.Repository
}

// Service owns order status transitions. Payment-driven mutations go through
// the transition guard the same way operator updates do.
type Service struct {
	repo           Repository
	txRunner       txRunner
	commissions    *commissions.Service
	commissionRepo commissions.Repository
}

// NewService validates dependencies and returns the order service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:           params.Repo,
		txRunner:       params.TransactionRunner,
		commissions:    params.Commissions,
		commissionRepo: params.CommissionRepo,
	}, nil
}

// StatusUpdateInput carries an operator or pipeline driven status change.
type StatusUpdateInput struct {
	OrderID       uuid.UUID
	Status        enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Actor         string
	Reason        string
}

// StatusChange records the before and after of one applied update for the
// audit trail.
type StatusChange struct {
	Order       *models.Order
	From        enums.OrderStatus
	To          enums.OrderStatus
	PaymentFrom enums.PaymentStatus
	PaymentTo   enums.PaymentStatus
	Actor       string
	Reason      string
	ChangedAt   time.Time
}

// ApplyStatusUpdate moves an order through the status machine, rejecting
// transitions the machine does not allow. A transition that settles the
// order computes its commission in the same transaction, at most once.
func (s *Service) ApplyStatusUpdate(ctx context.Context, input StatusUpdateInput) (*StatusChange, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.Status))
	}
	if input.PaymentStatus != nil && !input.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", *input.PaymentStatus))
	}

	var change *StatusChange
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		now := time.Now().UTC()
		change = &StatusChange{
			From:        order.Status,
			PaymentFrom: order.PaymentStatus,
			Actor:       input.Actor,
			Reason:      input.Reason,
			ChangedAt:   now,
		}

		if err := Transition(order, input.Status, now); err != nil {
			return err
		}
		if input.PaymentStatus != nil {
			order.PaymentStatus = *input.PaymentStatus
		}
		if order.Status == enums.OrderStatusPaid && order.PaymentStatus == enums.PaymentStatusSuccess && order.PaidAt == nil {
			at := now
			order.PaidAt = &at
		}

		if err := s.settleCommission(ctx, tx, order, now); err != nil {
			return err
		}

		if err := repo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		change.Order = order
		change.To = order.Status
		change.PaymentTo = order.PaymentStatus
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// settleCommission computes the commission for a settled order once; a
// positive commission amount marks it already computed.
func (s *Service) settleCommission(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) error {
	if s.commissions == nil || s.commissionRepo == nil {
		return nil
	}
	if order.Status != enums.OrderStatusPaid || order.PaymentStatus != enums.PaymentStatusSuccess {
		return nil
	}
	if order.CommissionAmount.IsPositive() {
		return nil
	}
	agentID := order.CommissionAgentID()
	if agentID == nil {
		return nil
	}

	repo := s.commissionRepo.WithTx(tx)
	agent, err := repo.FindAgent(ctx, *agentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent")
	}
	s.commissions.ComputeAtSettlement(order, agent, now)
	if agent != nil {
		if err := repo.AddAgentSales(ctx, agent.ID, order.TotalAmount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record agent sales")
		}
	}
	return nil
}

// Transition mutates the order status in place after checking the machine.
// Callers already holding a transaction use this directly.
func Transition(order *models.Order, next enums.OrderStatus, now time.Time) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order is required")
	}
	if order.Status == next {
		return nil
	}
	if !order.Status.CanTransitionTo(next) {
		return pkgerrors.New(
			pkgerrors.CodeStateConflict,
			fmt.Sprintf("order cannot move from %s to %s", order.Status, next),
		)
	}
	order.Status = next
	if next == enums.OrderStatusCanceled {
		canceledAt := now
		order.CanceledAt = &canceledAt
	}
	return nil
}

// MarkPaid records a successful settlement on the order. Idempotent for
// redelivered success events.
func MarkPaid(order *models.Order, paidAt time.Time) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order is required")
	}
	if order.PaymentStatus == enums.PaymentStatusSuccess {
		return nil
	}
	if order.Status == enums.OrderStatusCanceled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "canceled order cannot settle")
	}

	// Settlement implies qualification, so a new order hops through qualified.
	if order.Status == enums.OrderStatusNew {
		order.Status = enums.OrderStatusQualified
	}
	if order.Status.CanTransitionTo(enums.OrderStatusPaid) {
		order.Status = enums.OrderStatusPaid
	}
	order.PaymentStatus = enums.PaymentStatusSuccess
	at := paidAt
	order.PaidAt = &at
	return nil
}

// MarkPaymentFailed records a failed charge without changing the order status.
func MarkPaymentFailed(order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order is required")
	}
	if order.PaymentStatus == enums.PaymentStatusSuccess || order.PaymentStatus == enums.PaymentStatusRefunded {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "settled order cannot fail payment")
	}
	order.PaymentStatus = enums.PaymentStatusFailed
	return nil
}

// MarkRefunded records a refund against a settled order.
func MarkRefunded(order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order is required")
	}
	if order.PaymentStatus == enums.PaymentStatusRefunded {
		return nil
	}
	if order.PaymentStatus != enums.PaymentStatusSuccess {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only settled orders can refund")
	}
	order.PaymentStatus = enums.PaymentStatusRefunded
	return nil
}
