package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/api/responses"
	"github.com/clearledger/reconcile-backend/internal/payments"
	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

// SignatureHeader carries the provider's HMAC-SHA256 hex digest of the body.
const SignatureHeader = "X-Webhook-Signature"

const maxPayloadBytes = 1 << 20

// PaymentService is the slice of the payments service the webhook needs.
type PaymentService interface {
	Ingest(ctx context.Context, input payments.IngestInput) (*payments.IngestResult, error)
	ProcessEvent(ctx context.Context, event *models.PaymentEvent) error
}

// SignatureVerifier validates the provider signature over the raw body.
type SignatureVerifier interface {
	Verify(body []byte, header string) payments.VerifyResult
}

type paymentEventPayload struct {
	EventID  string          `json:"event_id"`
	OrderID  uuid.UUID       `json:"order_id"`
	Type     string          `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// PaymentWebhook ingests provider payment events. Deliveries that fail
// signature verification are rejected with 401 before anything is stored.
// Once an event is durably stored the endpoint acknowledges with 200 no
// matter how downstream processing goes, so the provider stops redelivering.
func PaymentWebhook(svc PaymentService, verifier SignatureVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(SignatureHeader)
		verdict := verifier.Verify(body, sigHeader)
		if !verdict.Valid {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "reason", verdict.Reason), "webhook signature rejected")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "invalid webhook signature"))
			return
		}

		var payload paymentEventPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event payload"))
			return
		}

		input := payments.IngestInput{
			EventID:        strings.TrimSpace(payload.EventID),
			OrderID:        payload.OrderID,
			Type:           enums.PaymentEventType(strings.TrimSpace(payload.Type)),
			Amount:         payload.Amount,
			Currency:       payload.Currency,
			RawPayload:     json.RawMessage(body),
			Signature:      &sigHeader,
			SignatureValid: true,
		}

		if logg != nil {
			ctx = logg.WithEventID(ctx, input.EventID)
			ctx = logg.WithOrderID(ctx, payload.OrderID.String())
		}

		result, err := svc.Ingest(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if result.Duplicate {
			responses.WriteSuccess(w, map[string]string{
				"status":   "duplicate",
				"event_id": result.Event.EventID,
			})
			return
		}

		// The event is durably stored; a processing failure here is already
		// on the retry path and must not trigger provider redelivery.
		if err := svc.ProcessEvent(ctx, result.Event); err != nil && logg != nil {
			logg.Error(ctx, "inline event processing failed", err)
		}

		responses.WriteSuccess(w, map[string]string{
			"status":   string(result.Event.Status),
			"event_id": result.Event.EventID,
		})
	}
}
