package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

const releaseBatchLimit = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the commission service dependencies.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
	DefaultRate       decimal.Decimal
	HoldPeriod        time.Duration
}

// Service computes commissions at settlement and releases matured holds.
type Service struct {
	repo        Repository
	txRunner    txRunner
	logger      *logger.Logger
	defaultRate decimal.Decimal
	holdPeriod  time.Duration
}

// NewService validates dependencies and returns the commission service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.DefaultRate.IsNegative() || params.DefaultRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "default rate out of range")
	}
	if params.HoldPeriod < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "hold period must be >= 0")
	}
	return &Service{
		repo:        params.Repo,
		txRunner:    params.TransactionRunner,
		logger:      params.Logger,
		defaultRate: params.DefaultRate,
		holdPeriod:  params.HoldPeriod,
	}, nil
}

// ComputeAtSettlement writes the commission fields on a freshly settled
// order. Orders without an attributed agent earn nothing. The hold window
// starts at settlement, not at delivery.
func (s *Service) ComputeAtSettlement(order *models.Order, agent *models.Agent, paidAt time.Time) {
	if order == nil {
		return
	}
	if order.CommissionAgentID() == nil || agent == nil {
		order.CommissionAmount = decimal.Zero
		order.CommissionStatus = enums.CommissionStatusPending
		order.CommissionAvailableAt = nil
		return
	}

	rate := agent.RateOrDefault(s.defaultRate)
	order.CommissionAmount = order.TotalAmount.Mul(rate).Round(2)
	order.CommissionStatus = enums.CommissionStatusPending
	availableAt := paidAt.Add(s.holdPeriod)
	order.CommissionAvailableAt = &availableAt
}

// RevokeAtRefund undoes the commission for a refunded order. A hold that has
// not matured is simply zeroed; an already released commission is clawed back
// from the agent balance. Callers must run this inside the refund transaction.
func (s *Service) RevokeAtRefund(ctx context.Context, repo Repository, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order is required")
	}
	if repo == nil {
		repo = s.repo
	}
	if order.CommissionAmount.IsZero() {
		return nil
	}

	amount := order.CommissionAmount
	switch order.CommissionStatus {
	case enums.CommissionStatusPending:
		order.CommissionAmount = decimal.Zero
		order.CommissionAvailableAt = nil
	case enums.CommissionStatusAvailable:
		agentID := order.CommissionAgentID()
		if agentID == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "released commission without agent")
		}
		if err := repo.DebitAgent(ctx, *agentID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claw back commission")
		}
		order.CommissionAmount = decimal.Zero
		order.CommissionStatus = enums.CommissionStatusPending
		order.CommissionAvailableAt = nil
	case enums.CommissionStatusClaimed:
		// Paid out already; finance reconciles claimed commissions manually.
		return pkgerrors.New(pkgerrors.CodeStateConflict, "claimed commission cannot be revoked")
	}
	return nil
}

// ReleaseResult summarizes one release sweep.
type ReleaseResult struct {
	OrdersReleased int             `json:"orders_released"`
	AgentsCredited int             `json:"agents_credited"`
	TotalReleased  decimal.Decimal `json:"total_released"`
}

// ReleaseMatured flips matured pending commissions to available and credits
// the owning agents' balances, all in one transaction. Each flip is a guarded
// update, so a concurrent sweep over the same rows credits nothing twice.
// Partial failures roll the whole sweep back; the next run retries it.
func (s *Service) ReleaseMatured(ctx context.Context, now time.Time) (*ReleaseResult, error) {
	result := &ReleaseResult{TotalReleased: decimal.Zero}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		matured, err := repo.ListMatured(ctx, now, releaseBatchLimit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list matured commissions")
		}

		perAgent := make(map[uuid.UUID]decimal.Decimal)
		for i := range matured {
			order := &matured[i]
			agentID := order.CommissionAgentID()
			if agentID == nil {
				// Attribution was removed after settlement; park the hold.
				continue
			}

			released, err := repo.ReleaseOrder(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release order commission")
			}
			if !released {
				// Another sweep already flipped and credited this order.
				continue
			}
			order.CommissionStatus = enums.CommissionStatusAvailable

			sum, ok := perAgent[*agentID]
			if !ok {
				sum = decimal.Zero
			}
			perAgent[*agentID] = sum.Add(order.CommissionAmount)
			result.OrdersReleased++
			result.TotalReleased = result.TotalReleased.Add(order.CommissionAmount)
		}

		for agentID, amount := range perAgent {
			if err := repo.CreditAgent(ctx, agentID, amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit agent balance")
			}
			result.AgentsCredited++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"orders_released": result.OrdersReleased,
		"agents_credited": result.AgentsCredited,
		"total_released":  result.TotalReleased.String(),
	})
	s.logger.Info(ctx, "commission release sweep completed")
	return result, nil
}
