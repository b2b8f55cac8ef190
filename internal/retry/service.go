package retry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clearledger/reconcile-backend/pkg/db/models"
	"github.com/clearledger/reconcile-backend/pkg/enums"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
	"github.com/clearledger/reconcile-backend/pkg/metrics"
	"github.com/clearledger/reconcile-backend/pkg/pagination"
)

const defaultBatchLimit = 100

// EventStore is the slice of the payment event repository the sweeper needs.
type EventStore interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.PaymentEvent, error)
	ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]models.PaymentEvent, error)
	ListDeadLettered(ctx context.Context, params pagination.Params) ([]models.PaymentEvent, error)
	ListDeadLetteredIDs(ctx context.Context) ([]uuid.UUID, error)
	ResetDeadLettered(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)
	ClearDeadLettered(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Processor reprocesses one payment event and persists the outcome on it.
// After the call the event struct reflects the stored status.
type Processor interface {
	ProcessEvent(ctx context.Context, event *models.PaymentEvent) error
}

// ServiceParams wires the retry service dependencies.
type ServiceParams struct {
	Events     EventStore
	Processor  Processor
	Logger     *logger.Logger
	Metrics    *metrics.WebhookMetrics
	BatchLimit int
}

// Service drains due retries and executes operator commands against the
// dead-letter queue.
type Service struct {
	events     EventStore
	processor  Processor
	logger     *logger.Logger
	metrics    *metrics.WebhookMetrics
	batchLimit int
}

// NewService validates dependencies and returns the retry service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event store required")
	}
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "processor required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	limit := params.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	return &Service{
		events:     params.Events,
		processor:  params.Processor,
		logger:     params.Logger,
		metrics:    params.Metrics,
		batchLimit: limit,
	}, nil
}

// SweepResult summarizes one retry sweep.
type SweepResult struct {
	Processed         int `json:"processed"`
	Succeeded         int `json:"succeeded"`
	Failed            int `json:"failed"`
	MovedToDeadLetter int `json:"moved_to_dead_letter"`
}

// ProcessPendingRetries reprocesses every event whose backoff has elapsed.
// Individual failures never abort the sweep.
func (s *Service) ProcessPendingRetries(ctx context.Context, now time.Time) (*SweepResult, error) {
	due, err := s.events.ListDueForRetry(ctx, now, s.batchLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due retries")
	}

	result := &SweepResult{}
	for i := range due {
		event := &due[i]
		result.Processed++
		s.metrics.IncRetry()

		if err := s.processor.ProcessEvent(ctx, event); err != nil {
			eventCtx := s.logger.WithEventID(ctx, event.EventID)
			s.logger.Error(eventCtx, "retry sweep could not reprocess event", err)
			result.Failed++
			continue
		}

		switch {
		case event.InDeadLetter:
			result.MovedToDeadLetter++
		case event.Status == enums.EventStatusProcessed:
			result.Succeeded++
		default:
			result.Failed++
		}
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"processed":            result.Processed,
		"succeeded":            result.Succeeded,
		"failed":               result.Failed,
		"moved_to_dead_letter": result.MovedToDeadLetter,
	})
	s.logger.Info(ctx, "retry sweep completed")
	return result, nil
}

// CommandInput is an operator action against the dead-letter queue.
type CommandInput struct {
	Action enums.DeadLetterAction
	IDs    []uuid.UUID
}

// CommandItem is the per-event outcome of a requeue command.
type CommandItem struct {
	ID      uuid.UUID `json:"id"`
	EventID string    `json:"event_id"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
}

// CommandResult reports what the command touched. Requeue commands carry a
// per-event outcome for every targeted event.
type CommandResult struct {
	Affected int64         `json:"affected"`
	Items    []CommandItem `json:"items,omitempty"`
}

// ExecuteCommand requeues or discards dead-lettered events. Requeued events
// get a fresh attempt budget and are reprocessed immediately, one outcome
// per event. Retry and clear act on explicit ids; retry_all takes the whole
// queue unless ids narrow it.
func (s *Service) ExecuteCommand(ctx context.Context, input CommandInput) (*CommandResult, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dead-letter action")
	}

	now := time.Now().UTC()
	result := &CommandResult{}

	switch input.Action {
	case enums.DeadLetterActionRetry:
		if len(input.IDs) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "retry requires event ids")
		}
		if err := s.requeue(ctx, input.IDs, now, result); err != nil {
			return nil, err
		}

	case enums.DeadLetterActionRetryAll:
		ids := input.IDs
		if len(ids) == 0 {
			var err error
			ids, err = s.events.ListDeadLetteredIDs(ctx)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead-letter queue")
			}
		}
		if err := s.requeue(ctx, ids, now, result); err != nil {
			return nil, err
		}

	case enums.DeadLetterActionClear:
		if len(input.IDs) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "clear requires event ids")
		}
		affected, err := s.events.ClearDeadLettered(ctx, input.IDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear dead-lettered events")
		}
		result.Affected = affected
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"action":   input.Action.String(),
		"affected": result.Affected,
	})
	s.logger.Info(ctx, "dead-letter command executed")
	return result, nil
}

// requeue resets the targeted dead-lettered events and reprocesses each one
// right away, recording a per-event outcome on the result.
func (s *Service) requeue(ctx context.Context, ids []uuid.UUID, now time.Time, result *CommandResult) error {
	if len(ids) == 0 {
		return nil
	}
	affected, err := s.events.ResetDeadLettered(ctx, ids, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue dead-lettered events")
	}
	result.Affected = affected

	events, err := s.events.ListByIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requeued events")
	}
	for i := range events {
		event := &events[i]
		item := CommandItem{ID: event.ID, EventID: event.EventID}
		if event.InDeadLetter || event.Status != enums.EventStatusRetrying {
			// The id was not in the queue when the reset ran.
			item.Status = string(event.Status)
			item.Error = "not requeued"
			result.Items = append(result.Items, item)
			continue
		}

		s.metrics.IncRetry()
		if err := s.processor.ProcessEvent(ctx, event); err != nil {
			eventCtx := s.logger.WithEventID(ctx, event.EventID)
			s.logger.Error(eventCtx, "requeued event could not be reprocessed", err)
			item.Error = err.Error()
		}
		item.Status = string(event.Status)
		result.Items = append(result.Items, item)
	}
	return nil
}

// DeadLetterPage is one page of dead-lettered events.
type DeadLetterPage struct {
	Events     []models.PaymentEvent `json:"events"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// ListDeadLettered returns a cursor page of the dead-letter queue, newest
// first.
func (s *Service) ListDeadLettered(ctx context.Context, params pagination.Params) (*DeadLetterPage, error) {
	events, err := s.events.ListDeadLettered(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead-lettered events")
	}

	page := &DeadLetterPage{Events: events}
	limit := pagination.NormalizeLimit(params.Limit)
	if len(events) > limit {
		page.Events = events[:limit]
		last := page.Events[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}
