package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/clearledger/reconcile-backend/internal/commissions"
	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

type fakeRepository struct {
	orders map[uuid.UUID]*models.Order
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (f *fakeRepository) Update(ctx context.Context, order *models.Order) error {
	copied := *order
	f.orders[order.ID] = &copied
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeCommissionRepo struct {
	agents map[uuid.UUID]*models.Agent
	sales  map[uuid.UUID]decimal.Decimal
}

func newFakeCommissionRepo() *fakeCommissionRepo {
	return &fakeCommissionRepo{
		agents: make(map[uuid.UUID]*models.Agent),
		sales:  make(map[uuid.UUID]decimal.Decimal),
	}
}

func (f *fakeCommissionRepo) WithTx(tx *gorm.DB) commissions.Repository { return f }

func (f *fakeCommissionRepo) FindAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	return f.agents[id], nil
}

func (f *fakeCommissionRepo) ListMatured(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeCommissionRepo) ReleaseOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeCommissionRepo) UpdateOrder(ctx context.Context, order *models.Order) error {
	return nil
}

func (f *fakeCommissionRepo) CreditAgent(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error {
	return nil
}

func (f *fakeCommissionRepo) DebitAgent(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error {
	return nil
}

func (f *fakeCommissionRepo) AddAgentSales(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error {
	f.sales[agentID] = f.sales[agentID].Add(amount)
	return nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, TransactionRunner: fakeTxRunner{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestApplyStatusUpdateAllowsForwardTransition(t *testing.T) {
	repo := newFakeRepository()
	orderID := uuid.New()
	repo.orders[orderID] = &models.Order{ID: orderID, Status: enums.OrderStatusNew}
	svc := newTestService(t, repo)

	change, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdateInput{
		OrderID: orderID,
		Status:  enums.OrderStatusQualified,
		Actor:   "ops@clearledger.test",
		Reason:  "manual qualification",
	})
	if err != nil {
		t.Fatalf("apply status update: %v", err)
	}
	if change.From != enums.OrderStatusNew || change.To != enums.OrderStatusQualified {
		t.Fatalf("expected new->qualified, got %s->%s", change.From, change.To)
	}
	if change.Actor != "ops@clearledger.test" {
		t.Fatalf("actor must carry through for the audit trail")
	}
	if repo.orders[orderID].Status != enums.OrderStatusQualified {
		t.Fatalf("update not persisted")
	}
}

func TestApplyStatusUpdateRejectsBackwardTransition(t *testing.T) {
	repo := newFakeRepository()
	orderID := uuid.New()
	repo.orders[orderID] = &models.Order{ID: orderID, Status: enums.OrderStatusShipped}
	svc := newTestService(t, repo)

	_, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdateInput{
		OrderID: orderID,
		Status:  enums.OrderStatusPaid,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if repo.orders[orderID].Status != enums.OrderStatusShipped {
		t.Fatalf("rejected transition must not persist")
	}
}

func TestApplyStatusUpdateCancelSetsTimestamp(t *testing.T) {
	repo := newFakeRepository()
	orderID := uuid.New()
	repo.orders[orderID] = &models.Order{ID: orderID, Status: enums.OrderStatusQualified}
	svc := newTestService(t, repo)

	change, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdateInput{
		OrderID: orderID,
		Status:  enums.OrderStatusCanceled,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if change.Order.CanceledAt == nil {
		t.Fatalf("expected canceled_at to be set")
	}
}

func TestApplyStatusUpdateSettlementComputesCommissionOnce(t *testing.T) {
	repo := newFakeRepository()
	commissionRepo := newFakeCommissionRepo()
	agentID := uuid.New()
	commissionRepo.agents[agentID] = &models.Agent{ID: agentID}

	orderID := uuid.New()
	repo.orders[orderID] = &models.Order{
		ID:            orderID,
		Status:        enums.OrderStatusQualified,
		PaymentStatus: enums.PaymentStatusPending,
		TotalAmount:   decimal.NewFromInt(500),
		AgentID:       &agentID,
	}

	commissionSvc, err := commissions.NewService(commissions.ServiceParams{
		Repo:              commissionRepo,
		TransactionRunner: fakeTxRunner{},
		Logger:            logger.New(logger.Options{ServiceName: "orders-test"}),
		DefaultRate:       decimal.RequireFromString("0.12"),
		HoldPeriod:        14 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("commission service: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Repo:              repo,
		TransactionRunner: fakeTxRunner{},
		Commissions:       commissionSvc,
		CommissionRepo:    commissionRepo,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	success := enums.PaymentStatusSuccess
	change, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdateInput{
		OrderID:       orderID,
		Status:        enums.OrderStatusPaid,
		PaymentStatus: &success,
		Actor:         "ops@clearledger.test",
		Reason:        "manual settlement",
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	order := change.Order
	if !order.CommissionAmount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected commission 60, got %s", order.CommissionAmount)
	}
	if order.CommissionAvailableAt == nil {
		t.Fatalf("expected hold window on commission")
	}
	if !commissionRepo.sales[agentID].Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected agent sales 500, got %s", commissionRepo.sales[agentID])
	}

	// Shipping the settled order must not recompute the commission.
	if _, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdateInput{
		OrderID: orderID,
		Status:  enums.OrderStatusShipped,
	}); err != nil {
		t.Fatalf("ship: %v", err)
	}
	if !commissionRepo.sales[agentID].Equal(decimal.NewFromInt(500)) {
		t.Fatalf("commission side effects must run once")
	}
}

func TestApplyStatusUpdateUnknownOrder(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	_, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdateInput{
		OrderID: uuid.New(),
		Status:  enums.OrderStatusQualified,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkPaidAdvancesNewOrders(t *testing.T) {
	order := &models.Order{Status: enums.OrderStatusNew, PaymentStatus: enums.PaymentStatusPending}
	paidAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	if err := MarkPaid(order, paidAt); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("expected paid status, got %s", order.Status)
	}
	if order.PaymentStatus != enums.PaymentStatusSuccess {
		t.Fatalf("expected success payment status")
	}
	if order.PaidAt == nil || !order.PaidAt.Equal(paidAt) {
		t.Fatalf("expected paid_at %v, got %v", paidAt, order.PaidAt)
	}
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	first := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	order := &models.Order{Status: enums.OrderStatusPaid, PaymentStatus: enums.PaymentStatusSuccess, PaidAt: &first}

	if err := MarkPaid(order, first.Add(time.Hour)); err != nil {
		t.Fatalf("redelivered settlement must not error: %v", err)
	}
	if !order.PaidAt.Equal(first) {
		t.Fatalf("paid_at must not move on redelivery")
	}
}

func TestMarkPaidRejectsCanceledOrder(t *testing.T) {
	order := &models.Order{Status: enums.OrderStatusCanceled, PaymentStatus: enums.PaymentStatusPending}
	err := MarkPaid(order, time.Now())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestMarkPaymentFailed(t *testing.T) {
	order := &models.Order{Status: enums.OrderStatusQualified, PaymentStatus: enums.PaymentStatusPending}
	if err := MarkPaymentFailed(order); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment status")
	}
	if order.Status != enums.OrderStatusQualified {
		t.Fatalf("order status must not change on charge failure")
	}

	settled := &models.Order{Status: enums.OrderStatusPaid, PaymentStatus: enums.PaymentStatusSuccess}
	if err := MarkPaymentFailed(settled); err == nil {
		t.Fatalf("settled order must not flip to failed")
	}
}

func TestMarkRefunded(t *testing.T) {
	order := &models.Order{Status: enums.OrderStatusPaid, PaymentStatus: enums.PaymentStatusSuccess}
	if err := MarkRefunded(order); err != nil {
		t.Fatalf("mark refunded: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded payment status")
	}

	// Redelivery is a no-op.
	if err := MarkRefunded(order); err != nil {
		t.Fatalf("redelivered refund must not error: %v", err)
	}

	unsettled := &models.Order{Status: enums.OrderStatusNew, PaymentStatus: enums.PaymentStatusPending}
	if err := MarkRefunded(unsettled); err == nil {
		t.Fatalf("unsettled order must not refund")
	}
}
