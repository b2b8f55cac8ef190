package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clearledger/reconcile-backend/pkg/config"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// DeadLetterAlert describes one payment event parked in the dead-letter
// queue. Operators triage these by hand.
type DeadLetterAlert struct {
	EventID   string    `json:"event_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	At        time.Time `json:"at"`
}

// SweepAlert summarizes a sweep whose failure counts crossed the alert
// threshold.
type SweepAlert struct {
	Job               string    `json:"job"`
	Processed         int       `json:"processed"`
	Failed            int       `json:"failed"`
	MovedToDeadLetter int       `json:"moved_to_dead_letter"`
	At                time.Time `json:"at"`
}

// ReconciliationAlert summarizes a daily reconciliation report that found
// discrepancies between processed payments and orders.
type ReconciliationAlert struct {
	Date          string    `json:"date"`
	Payments      int       `json:"payments"`
	Mismatches    int       `json:"mismatches"`
	MissingOrders int       `json:"missing_orders"`
	Difference    string    `json:"difference"`
	At            time.Time `json:"at"`
}

// Notifier delivers operational alerts.
type Notifier interface {
	NotifyDeadLetter(ctx context.Context, alert DeadLetterAlert) error
	NotifySweepFailure(ctx context.Context, alert SweepAlert) error
	NotifyReconciliationIssues(ctx context.Context, alert ReconciliationAlert) error
}

// New picks the webhook notifier when a URL is configured; otherwise alerts
// only land in the logs.
func New(cfg config.AlertsConfig, logg *logger.Logger) Notifier {
	url := strings.TrimSpace(cfg.WebhookURL)
	if url == "" {
		return &logNotifier{logger: logg}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &webhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		logger:     logg,
	}
}

type webhookNotifier struct {
	httpClient *http.Client
	url        string
	logger     *logger.Logger
}

func (n *webhookNotifier) NotifyDeadLetter(ctx context.Context, alert DeadLetterAlert) error {
	return n.post(ctx, "payment_event.dead_letter", alert)
}

func (n *webhookNotifier) NotifySweepFailure(ctx context.Context, alert SweepAlert) error {
	return n.post(ctx, "sweep.threshold_exceeded", alert)
}

func (n *webhookNotifier) NotifyReconciliationIssues(ctx context.Context, alert ReconciliationAlert) error {
	return n.post(ctx, "reconciliation.issues_found", alert)
}

func (n *webhookNotifier) post(ctx context.Context, alertType string, alert any) error {
	body, err := json.Marshal(map[string]any{
		"type":  alertType,
		"alert": alert,
	})
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type logNotifier struct {
	logger *logger.Logger
}

func (n *logNotifier) NotifyDeadLetter(ctx context.Context, alert DeadLetterAlert) error {
	if n.logger == nil {
		return nil
	}
	ctx = n.logger.WithFields(ctx, map[string]any{
		"event_id": alert.EventID,
		"order_id": alert.OrderID.String(),
		"reason":   alert.Reason,
		"attempts": alert.Attempts,
	})
	n.logger.Warn(ctx, "payment event moved to dead-letter queue")
	return nil
}

func (n *logNotifier) NotifySweepFailure(ctx context.Context, alert SweepAlert) error {
	if n.logger == nil {
		return nil
	}
	ctx = n.logger.WithFields(ctx, map[string]any{
		"job":         alert.Job,
		"processed":   alert.Processed,
		"failed":      alert.Failed,
		"dead_letter": alert.MovedToDeadLetter,
	})
	n.logger.Warn(ctx, "sweep failure count crossed alert threshold")
	return nil
}

func (n *logNotifier) NotifyReconciliationIssues(ctx context.Context, alert ReconciliationAlert) error {
	if n.logger == nil {
		return nil
	}
	ctx = n.logger.WithFields(ctx, map[string]any{
		"date":           alert.Date,
		"payments":       alert.Payments,
		"mismatches":     alert.Mismatches,
		"missing_orders": alert.MissingOrders,
		"difference":     alert.Difference,
	})
	n.logger.Warn(ctx, "daily reconciliation found discrepancies")
	return nil
}
