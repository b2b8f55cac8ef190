package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/clearledger/reconcile-backend/api/responses"
	"github.com/clearledger/reconcile-backend/api/validators"
	"github.com/clearledger/reconcile-backend/internal/retry"
	"github.com/clearledger/reconcile-backend/pkg/enums"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
	"github.com/clearledger/reconcile-backend/pkg/pagination"
)

// DeadLetterService is the operator surface over the dead-letter queue.
type DeadLetterService interface {
	ListDeadLettered(ctx context.Context, params pagination.Params) (*retry.DeadLetterPage, error)
	ExecuteCommand(ctx context.Context, input retry.CommandInput) (*retry.CommandResult, error)
}

type deadLetterCommandRequest struct {
	Action string   `json:"action" validate:"required,oneof=retry retry_all clear"`
	IDs    []string `json:"ids" validate:"omitempty,dive,uuid4"`
}

// ListDeadLetters pages through parked payment events, newest first.
func ListDeadLetters(svc DeadLetterService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "retry service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		page, err := svc.ListDeadLettered(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// CommandDeadLetters requeues or discards parked events.
func CommandDeadLetters(svc DeadLetterService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "retry service unavailable"))
			return
		}

		var req deadLetterCommandRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ids := make([]uuid.UUID, 0, len(req.IDs))
		for _, raw := range req.IDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid event id").WithDetails(map[string]any{"id": raw}))
				return
			}
			ids = append(ids, id)
		}

		result, err := svc.ExecuteCommand(ctx, retry.CommandInput{
			Action: enums.DeadLetterAction(req.Action),
			IDs:    ids,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"action": req.Action, "affected": result.Affected})
			logg.Info(ctx, "dead-letter command applied")
		}
		responses.WriteSuccess(w, result)
	}
}
