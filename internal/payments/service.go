package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/clearledger/reconcile-backend/internal/alerts"
	"github.com/clearledger/reconcile-backend/internal/commissions"
	"github.com/clearledger/reconcile-backend/internal/orders"
	"github.com/clearledger/reconcile-backend/internal/retry"
	"github.com/clearledger/reconcile-backend/pkg/db"
	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
	"github.com/clearledger/reconcile-backend/pkg/metrics"
)

const deadLetterReasonExhausted = "max attempts exhausted"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type erpSyncer interface {
	SyncOrder(ctx context.Context, orderID uuid.UUID) (*models.IntegrationSyncMap, error)
	IssueCreditNote(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reason string) error
}

// ServiceParams wires the payment event service dependencies.
type ServiceParams struct {
	Events            Repository
	Orders            orders.Repository
	Commissions       *commissions.Service
	CommissionsRepo   commissions.Repository
	ERPSync           erpSyncer
	TransactionRunner txRunner
	Policy            retry.Policy
	Alerts            alerts.Notifier
	Metrics           *metrics.WebhookMetrics
	Logger            *logger.Logger
}

// Service stores inbound payment events exactly once and reconciles their
// business effects: order state, commissions, and the ERP push.
type Service struct {
	events          Repository
	orders          orders.Repository
	commissions     *commissions.Service
	commissionsRepo commissions.Repository
	erpSync         erpSyncer
	txRunner        txRunner
	policy          retry.Policy
	alerts          alerts.Notifier
	metrics         *metrics.WebhookMetrics
	logger          *logger.Logger
}

// NewService validates dependencies and returns the payment event service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repo required")
	}
	if params.Commissions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission service required")
	}
	if params.CommissionsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Alerts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "alert notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		events:          params.Events,
		orders:          params.Orders,
		commissions:     params.Commissions,
		commissionsRepo: params.CommissionsRepo,
		erpSync:         params.ERPSync,
		txRunner:        params.TransactionRunner,
		policy:          params.Policy,
		alerts:          params.Alerts,
		metrics:         params.Metrics,
		logger:          params.Logger,
	}, nil
}

// IngestInput is one webhook delivery after signature verification.
type IngestInput struct {
	EventID        string
	OrderID        uuid.UUID
	Type           enums.PaymentEventType
	Amount         decimal.Decimal
	Currency       string
	RawPayload     json.RawMessage
	Signature      *string
	SignatureValid bool
}

// IngestResult reports whether the delivery was new or a replay.
type IngestResult struct {
	Event     *models.PaymentEvent
	Duplicate bool
}

// Ingest stores the delivery exactly once. Replays of a settled event id
// return the stored event untouched; replays of an event still in flight
// hand the stored event back for another processing pass. Concurrent
// duplicates lose the insert race on the unique index and take the same
// paths. Unverified deliveries are rejected before any write.
func (s *Service) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if !input.SignatureValid {
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "unverified delivery")
	}
	if input.EventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown event type %q", input.Type))
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	if len(input.RawPayload) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "raw payload is required")
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	event := &models.PaymentEvent{
		EventID:        input.EventID,
		OrderID:        input.OrderID,
		Type:           input.Type,
		Status:         enums.EventStatusReceived,
		Amount:         input.Amount,
		Currency:       currency,
		RawPayload:     input.RawPayload,
		Signature:      input.Signature,
		SignatureValid: input.SignatureValid,
	}

	if err := s.events.Create(ctx, event); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment event")
		}
		existing, findErr := s.events.FindByEventID(ctx, input.EventID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load duplicate event")
		}
		if existing == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "duplicate event vanished")
		}
		if existing.InDeadLetter || existing.Status.IsTerminal() {
			s.metrics.IncReceived("duplicate")
			return &IngestResult{Event: existing, Duplicate: true}, nil
		}
		// Redelivery of an event still in flight gets reprocessed.
		s.metrics.IncReceived("redelivered")
		return &IngestResult{Event: existing}, nil
	}

	s.metrics.IncReceived("accepted")
	return &IngestResult{Event: event}, nil
}

// ProcessEvent claims the stored event, applies its business effects, and
// persists the outcome on it. The claim is a guarded status flip, so of two
// concurrent deliveries only one applies effects. Failures consume one
// attempt; an exhausted budget parks the event in the dead-letter queue.
// Implements the retry sweeper contract: a non-nil return means the outcome
// could not be recorded.
func (s *Service) ProcessEvent(ctx context.Context, event *models.PaymentEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "event is required")
	}
	ctx = s.logger.WithEventID(ctx, event.EventID)
	ctx = s.logger.WithOrderID(ctx, event.OrderID.String())

	if event.InDeadLetter || event.Status.IsTerminal() {
		return nil
	}

	claimed, err := s.events.ClaimForProcessing(ctx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payment event")
	}
	if !claimed {
		// A concurrent delivery holds the claim, or the event settled
		// between the load and here. Either way the effects are covered.
		s.logger.Info(ctx, "payment event already claimed")
		return nil
	}
	event.Status = enums.EventStatusProcessing

	now := time.Now().UTC()
	applyErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.applyEffects(ctx, tx, event, now); err != nil {
			return err
		}

		event.Status = enums.EventStatusProcessed
		processedAt := now
		event.ProcessedAt = &processedAt
		event.NextRetryAt = nil
		return s.events.WithTx(tx).Update(ctx, event)
	})

	if applyErr == nil {
		s.logger.Info(ctx, "payment event processed")
		s.afterProcess(ctx, event)
		return nil
	}

	return s.recordFailure(ctx, event, applyErr, now)
}

func (s *Service) applyEffects(ctx context.Context, tx *gorm.DB, event *models.PaymentEvent, now time.Time) error {
	orderRepo := s.orders.WithTx(tx)
	commissionRepo := s.commissionsRepo.WithTx(tx)

	order, err := orderRepo.FindByID(ctx, event.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	switch event.Type {
	case enums.PaymentEventSuccess:
		alreadySettled := order.PaymentStatus == enums.PaymentStatusSuccess
		if err := orders.MarkPaid(order, now); err != nil {
			return err
		}
		if !alreadySettled {
			var agent *models.Agent
			if agentID := order.CommissionAgentID(); agentID != nil {
				agent, err = commissionRepo.FindAgent(ctx, *agentID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent")
				}
			}
			s.commissions.ComputeAtSettlement(order, agent, now)
			if agent != nil {
				if err := commissionRepo.AddAgentSales(ctx, agent.ID, order.TotalAmount); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record agent sales")
				}
			}
		}

	case enums.PaymentEventFailure:
		if err := orders.MarkPaymentFailed(order); err != nil {
			return err
		}

	case enums.PaymentEventRefund:
		if err := orders.MarkRefunded(order); err != nil {
			return err
		}
		if err := s.commissions.RevokeAtRefund(ctx, commissionRepo, order); err != nil {
			return err
		}

	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown event type %q", event.Type))
	}

	if err := orderRepo.Update(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return nil
}

// afterProcess runs the best-effort ERP side effects. The cron sweep is the
// source of truth for ERP consistency, so failures here only log.
func (s *Service) afterProcess(ctx context.Context, event *models.PaymentEvent) {
	if s.erpSync == nil {
		return
	}
	switch event.Type {
	case enums.PaymentEventSuccess:
		if _, err := s.erpSync.SyncOrder(ctx, event.OrderID); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "inline erp sync deferred to sweep")
		}
	case enums.PaymentEventRefund:
		if err := s.erpSync.IssueCreditNote(ctx, event.OrderID, event.Amount, "payment refunded"); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "credit note deferred to sweep")
		}
	}
}

func (s *Service) recordFailure(ctx context.Context, event *models.PaymentEvent, cause error, now time.Time) error {
	event.Attempts++
	event.ErrorLog = event.ErrorLog.Append(now, cause.Error())

	if s.policy.Exhausted(event.Attempts) {
		event.Status = enums.EventStatusDeadLetter
		event.InDeadLetter = true
		reason := deadLetterReasonExhausted
		event.DeadLetterReason = &reason
		deadAt := now
		event.DeadLetterAt = &deadAt
		event.NextRetryAt = nil
	} else {
		event.Status = enums.EventStatusRetrying
		nextAt := s.policy.NextRetryAt(now, event.Attempts)
		event.NextRetryAt = &nextAt
	}

	if err := s.events.Update(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record event failure")
	}

	s.logger.Error(ctx, "payment event processing failed", cause)

	if event.InDeadLetter {
		s.metrics.IncDeadLettered()
		alert := alerts.DeadLetterAlert{
			EventID:  event.EventID,
			OrderID:  event.OrderID,
			Reason:   deadLetterReasonExhausted,
			Attempts: event.Attempts,
			At:       now,
		}
		if last := event.ErrorLog.Last(); last != nil {
			alert.LastError = last.Message
		}
		if err := s.alerts.NotifyDeadLetter(ctx, alert); err != nil {
			s.logger.Error(ctx, "dead-letter alert delivery failed", err)
		}
	}
	return nil
}
