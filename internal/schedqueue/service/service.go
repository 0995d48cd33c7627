// Package service implements the manual scheduling queue: the operator-facing
// overflow list for transitions automation could not finish.
package service

import (
	"context"
	"fmt"
	"time"

	"tutorcoach_backend/internal/events"
	"tutorcoach_backend/internal/schedqueue/repository"
	"tutorcoach_backend/internal/schedqueue/transport"
	"tutorcoach_backend/internal/sessions/orchestrator"
	"tutorcoach_backend/platform/apperr"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs; the concrete
// implementation is the schedqueue repository.
type Store interface {
	Create(ctx context.Context, it *repository.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Item, error)
	MarkInProgress(ctx context.Context, id uuid.UUID) error
	Resolve(ctx context.Context, id uuid.UUID, notes string, resolvedBy uuid.UUID) error
	AppendHistory(ctx context.Context, id uuid.UUID, note string) error
	List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)
}

// Dispatcher re-enters lifecycle commands; the concrete implementation is
// the scheduling orchestrator.
type Dispatcher interface {
	Dispatch(ctx context.Context, command orchestrator.Command, payload any) (*orchestrator.Result, error)
}

// Service provides scheduling queue operations.
type Service struct {
	store      Store
	dispatcher Dispatcher
	bus        events.Bus
	logger     *logger.Logger
}

// New creates a new scheduling queue service.
func New(store Store, dispatcher Dispatcher, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, dispatcher: dispatcher, bus: bus, logger: log}
}

// SetDispatcher attaches the orchestrator after construction. The queue and
// the orchestrator reference each other: the orchestrator enqueues fallback
// items, and resolving an item re-enters the orchestrator.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Enqueue creates a pending queue item. Implements the orchestrator's
// fallback surface.
func (s *Service) Enqueue(ctx context.Context, entry orchestrator.QueueEntry) (uuid.UUID, error) {
	now := time.Now()
	it := &repository.Item{
		ID:           uuid.New(),
		SessionID:    entry.SessionID,
		EnrollmentID: entry.EnrollmentID,
		Reason:       entry.Reason,
		Detail:       strPtr(entry.Detail),
		Status:       repository.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, it); err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("scheduling queue item created",
		"queue_item_id", it.ID.String(),
		"session_id", entry.SessionID.String(),
		"reason", entry.Reason,
	)
	return it.ID, nil
}

// Get retrieves one queue item.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*repository.Item, error) {
	return s.store.GetByID(ctx, id)
}

// Claim moves a pending item to in_progress for an operator.
func (s *Service) Claim(ctx context.Context, id uuid.UUID) error {
	return s.store.MarkInProgress(ctx, id)
}

// Resolve closes a queue item. A corrected date/time or coach is first
// re-dispatched through the orchestrator; if that re-invocation fails, the
// item stays pending with the failure appended to its history. The item is
// never marked resolved while the underlying session is still in conflict.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, resolvedBy uuid.UUID, req transport.ResolveRequest) (*repository.Item, error) {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == repository.StatusResolved {
		return nil, apperr.Conflict("queue item is already resolved")
	}

	if req.CorrectedAt != nil {
		_, err := s.dispatcher.Dispatch(ctx, orchestrator.CommandReschedule, orchestrator.ReschedulePayload{
			SessionID:   item.SessionID,
			RequestedBy: resolvedBy,
			ScheduledAt: *req.CorrectedAt,
			Reason:      "queue resolution",
		})
		if err != nil {
			return nil, s.recordFailure(ctx, item, "reschedule", err)
		}
	}
	if req.CorrectedCoachID != nil {
		_, err := s.dispatcher.Dispatch(ctx, orchestrator.CommandReassignCoach, orchestrator.ReassignPayload{
			SessionID:   item.SessionID,
			RequestedBy: resolvedBy,
			NewCoachID:  *req.CorrectedCoachID,
			Reason:      "queue resolution",
		})
		if err != nil {
			return nil, s.recordFailure(ctx, item, "reassign coach", err)
		}
	}

	if err := s.store.Resolve(ctx, item.ID, req.Notes, resolvedBy); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.QueueItemResolved{
		BaseEvent:   events.NewBaseEvent(),
		QueueItemID: item.ID,
		SessionID:   item.SessionID,
		ResolvedBy:  resolvedBy,
	})

	return s.store.GetByID(ctx, item.ID)
}

// recordFailure appends the dispatch failure to the item's history, leaving
// it pending, and returns the original error to the operator.
func (s *Service) recordFailure(ctx context.Context, item *repository.Item, step string, dispatchErr error) error {
	note := fmt.Sprintf("%s failed: %v", step, dispatchErr)
	if err := s.store.AppendHistory(ctx, item.ID, note); err != nil {
		s.logger.DatabaseError("append_queue_history", err)
	}
	s.logger.Warn("queue resolution failed",
		"queue_item_id", item.ID.String(),
		"session_id", item.SessionID.String(),
		"step", step,
		"error", dispatchErr.Error(),
	)
	return dispatchErr
}

// List retrieves queue items for operators.
func (s *Service) List(ctx context.Context, q transport.ListQueueQuery) (*transport.ListQueueResponse, error) {
	result, err := s.store.List(ctx, repository.ListParams{
		Status:       q.Status,
		EnrollmentID: q.EnrollmentID,
		CoachID:      q.CoachID,
		From:         q.From,
		To:           q.To,
		Page:         q.Page,
		PageSize:     q.PageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]transport.QueueItemResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, result.Items[i].ToResponse())
	}
	return &transport.ListQueueResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
