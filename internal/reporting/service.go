package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/internal/alerts"
	"github.com/clearledger/reconcile-backend/pkg/db/models"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

// Mismatches below one cent are rounding noise, not discrepancies.
var mismatchTolerance = decimal.New(1, -2)

const maxReportIssues = 50

// ServiceParams wires the reconciliation report dependencies.
type ServiceParams struct {
	Repo   Repository
	Alerts alerts.Notifier
	Logger *logger.Logger
}

// Service cross-checks settled payments against their orders and the ERP
// sync ledger, one UTC day at a time.
type Service struct {
	repo   Repository
	alerts alerts.Notifier
	logger *logger.Logger
}

// NewService validates dependencies and returns the report service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "report repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:   params.Repo,
		alerts: params.Alerts,
		logger: params.Logger,
	}, nil
}

// Issue is one discrepancy the report surfaced.
type Issue struct {
	Type          string          `json:"type"`
	EventID       string          `json:"event_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	OrderAmount   decimal.Decimal `json:"order_amount"`
	Difference    decimal.Decimal `json:"difference"`
}

// Totals is a count and amount pair for one side of the reconciliation.
type Totals struct {
	Total       int             `json:"total"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Summary aggregates how the two sides matched up.
type Summary struct {
	Matched       int             `json:"matched"`
	Mismatches    int             `json:"mismatches"`
	MissingOrders int             `json:"missing_orders"`
	Difference    decimal.Decimal `json:"difference"`
}

// Report is one day's reconciliation of payments against orders.
type Report struct {
	Date           string         `json:"date"`
	GeneratedAt    time.Time      `json:"generated_at"`
	Payments       Totals         `json:"payments"`
	Orders         Totals         `json:"orders"`
	Reconciliation Summary        `json:"reconciliation"`
	Sync           map[string]int `json:"sync"`
	Issues         []Issue        `json:"issues,omitempty"`
}

// GenerateDaily reconciles the previous UTC day: every processed success
// event must have an order whose total matches the paid amount. Discrepancies
// land in the issue list (capped) and trigger an alert.
func (s *Service) GenerateDaily(ctx context.Context, now time.Time) (*Report, error) {
	from, to := dayWindow(now)

	events, err := s.repo.ListProcessedPayments(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list processed payments")
	}

	orderIDs := make([]uuid.UUID, 0, len(events))
	seen := make(map[uuid.UUID]struct{}, len(events))
	for i := range events {
		if _, ok := seen[events[i].OrderID]; ok {
			continue
		}
		seen[events[i].OrderID] = struct{}{}
		orderIDs = append(orderIDs, events[i].OrderID)
	}

	orders, err := s.repo.FindOrdersByIDs(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reconciled orders")
	}
	byID := make(map[uuid.UUID]*models.Order, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}

	report := &Report{
		Date:        from.Format("2006-01-02"),
		GeneratedAt: now.UTC(),
		Payments:    Totals{Total: len(events), TotalAmount: decimal.Zero},
		Orders:      Totals{Total: len(orders), TotalAmount: decimal.Zero},
		Reconciliation: Summary{
			Difference: decimal.Zero,
		},
	}

	for i := range events {
		event := &events[i]
		report.Payments.TotalAmount = report.Payments.TotalAmount.Add(event.Amount)

		order, ok := byID[event.OrderID]
		if !ok {
			report.Reconciliation.MissingOrders++
			s.addIssue(report, Issue{
				Type:          "missing_order",
				EventID:       event.EventID,
				OrderID:       event.OrderID,
				PaymentAmount: event.Amount,
			})
			continue
		}

		report.Orders.TotalAmount = report.Orders.TotalAmount.Add(order.TotalAmount)
		diff := event.Amount.Sub(order.TotalAmount)
		if diff.Abs().GreaterThan(mismatchTolerance) {
			report.Reconciliation.Mismatches++
			s.addIssue(report, Issue{
				Type:          "amount_mismatch",
				EventID:       event.EventID,
				OrderID:       event.OrderID,
				PaymentAmount: event.Amount,
				OrderAmount:   order.TotalAmount,
				Difference:    diff,
			})
			continue
		}
		report.Reconciliation.Matched++
	}
	report.Reconciliation.Difference = report.Payments.TotalAmount.Sub(report.Orders.TotalAmount)

	syncCounts, err := s.repo.CountSyncStatuses(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count sync statuses")
	}
	report.Sync = make(map[string]int, len(syncCounts))
	for status, count := range syncCounts {
		report.Sync[status.String()] = count
	}

	s.notifyIfNeeded(ctx, report)

	ctx = s.logger.WithFields(ctx, map[string]any{
		"date":           report.Date,
		"payments":       report.Payments.Total,
		"mismatches":     report.Reconciliation.Mismatches,
		"missing_orders": report.Reconciliation.MissingOrders,
	})
	s.logger.Info(ctx, "reconciliation report generated")
	return report, nil
}

func (s *Service) addIssue(report *Report, issue Issue) {
	if len(report.Issues) >= maxReportIssues {
		return
	}
	report.Issues = append(report.Issues, issue)
}

// notifyIfNeeded alerts on discrepancies. Delivery failures only log; the
// report itself already carries the findings.
func (s *Service) notifyIfNeeded(ctx context.Context, report *Report) {
	if s.alerts == nil {
		return
	}
	if report.Reconciliation.Mismatches == 0 && report.Reconciliation.MissingOrders == 0 {
		return
	}
	alert := alerts.ReconciliationAlert{
		Date:          report.Date,
		Payments:      report.Payments.Total,
		Mismatches:    report.Reconciliation.Mismatches,
		MissingOrders: report.Reconciliation.MissingOrders,
		Difference:    report.Reconciliation.Difference.String(),
		At:            report.GeneratedAt,
	}
	if err := s.alerts.NotifyReconciliationIssues(ctx, alert); err != nil {
		s.logger.Error(ctx, "reconciliation alert delivery failed", err)
	}
}

// dayWindow returns the previous UTC day as a half-open interval.
func dayWindow(now time.Time) (time.Time, time.Time) {
	year, month, day := now.UTC().AddDate(0, 0, -1).Date()
	from := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return from, from.Add(24 * time.Hour)
}
