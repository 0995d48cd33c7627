package service

import (
	"context"
	"testing"
	"time"

	"tutorcoach_backend/internal/events"
	"tutorcoach_backend/internal/schedqueue/repository"
	"tutorcoach_backend/internal/schedqueue/transport"
	"tutorcoach_backend/internal/sessions/orchestrator"
	"tutorcoach_backend/platform/apperr"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	items   map[uuid.UUID]repository.Item
	history map[uuid.UUID][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:   make(map[uuid.UUID]repository.Item),
		history: make(map[uuid.UUID][]string),
	}
}

func (f *fakeStore) Create(_ context.Context, it *repository.Item) error {
	f.items[it.ID] = *it
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("queue item not found")
	}
	copied := it
	return &copied, nil
}

func (f *fakeStore) MarkInProgress(_ context.Context, id uuid.UUID) error {
	it, ok := f.items[id]
	if !ok || it.Status != repository.StatusPending {
		return apperr.Conflict("queue item is not pending")
	}
	it.Status = repository.StatusInProgress
	f.items[id] = it
	return nil
}

func (f *fakeStore) Resolve(_ context.Context, id uuid.UUID, notes string, resolvedBy uuid.UUID) error {
	it, ok := f.items[id]
	if !ok || it.Status == repository.StatusResolved {
		return apperr.Conflict("queue item is already resolved")
	}
	now := time.Now()
	it.Status = repository.StatusResolved
	it.ResolutionNotes = &notes
	it.ResolvedBy = &resolvedBy
	it.ResolvedAt = &now
	f.items[id] = it
	return nil
}

func (f *fakeStore) AppendHistory(_ context.Context, id uuid.UUID, note string) error {
	it, ok := f.items[id]
	if !ok {
		return apperr.NotFound("queue item not found")
	}
	it.Status = repository.StatusPending
	f.items[id] = it
	f.history[id] = append(f.history[id], note)
	return nil
}

func (f *fakeStore) List(_ context.Context, _ repository.ListParams) (*repository.ListResult, error) {
	var items []repository.Item
	for _, it := range f.items {
		items = append(items, it)
	}
	return &repository.ListResult{Items: items, Total: len(items), Page: 1, PageSize: 20, TotalPages: 1}, nil
}

type fakeDispatcher struct {
	err      error
	commands []orchestrator.Command
}

func (f *fakeDispatcher) Dispatch(_ context.Context, command orchestrator.Command, _ any) (*orchestrator.Result, error) {
	f.commands = append(f.commands, command)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Result{}, nil
}

func newService(store *fakeStore, dispatcher *fakeDispatcher) *Service {
	log := logger.New("development")
	return New(store, dispatcher, events.NewInMemoryBus(log), log)
}

func seedItem(store *fakeStore) repository.Item {
	it := repository.Item{
		ID:           uuid.New(),
		SessionID:    uuid.New(),
		EnrollmentID: uuid.New(),
		Reason:       "recording_not_scheduled",
		Status:       repository.StatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	store.items[it.ID] = it
	return it
}

func TestResolveNotesOnly(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	svc := newService(store, dispatcher)
	item := seedItem(store)

	resolved, err := svc.Resolve(context.Background(), item.ID, uuid.New(), transport.ResolveRequest{
		Notes: "recording scheduled manually",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != repository.StatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	if len(dispatcher.commands) != 0 {
		t.Fatalf("notes-only resolution must not dispatch")
	}
}

func TestResolveWithCorrectedTimeReDispatches(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	svc := newService(store, dispatcher)
	item := seedItem(store)
	correctedAt := time.Now().Add(72 * time.Hour)

	resolved, err := svc.Resolve(context.Background(), item.ID, uuid.New(), transport.ResolveRequest{
		Notes:       "moved to a free slot",
		CorrectedAt: &correctedAt,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != repository.StatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	if len(dispatcher.commands) != 1 || dispatcher.commands[0] != orchestrator.CommandReschedule {
		t.Fatalf("expected one reschedule dispatch, got %v", dispatcher.commands)
	}
}

func TestResolveFailedDispatchKeepsItemPending(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{err: apperr.AdapterFailure("calendar updateEvent failed", nil)}
	svc := newService(store, dispatcher)
	item := seedItem(store)
	correctedAt := time.Now().Add(72 * time.Hour)

	_, err := svc.Resolve(context.Background(), item.ID, uuid.New(), transport.ResolveRequest{
		Notes:       "try a new slot",
		CorrectedAt: &correctedAt,
	})
	if !apperr.Is(err, apperr.KindAdapterFailure) {
		t.Fatalf("expected the dispatch failure to propagate, got %v", err)
	}

	stored := store.items[item.ID]
	if stored.Status != repository.StatusPending {
		t.Fatalf("failed resolution must leave the item pending, got %s", stored.Status)
	}
	if len(store.history[item.ID]) != 1 {
		t.Fatalf("expected one history entry, got %d", len(store.history[item.ID]))
	}
}

func TestResolveAlreadyResolvedConflicts(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	svc := newService(store, dispatcher)
	item := seedItem(store)

	if _, err := svc.Resolve(context.Background(), item.ID, uuid.New(), transport.ResolveRequest{Notes: "done"}); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	_, err := svc.Resolve(context.Background(), item.ID, uuid.New(), transport.ResolveRequest{Notes: "again"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on double resolve, got %v", err)
	}
}

func TestResolveCorrectedCoach(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	svc := newService(store, dispatcher)
	item := seedItem(store)
	coach := uuid.New()

	_, err := svc.Resolve(context.Background(), item.ID, uuid.New(), transport.ResolveRequest{
		Notes:            "handed to a different coach",
		CorrectedCoachID: &coach,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(dispatcher.commands) != 1 || dispatcher.commands[0] != orchestrator.CommandReassignCoach {
		t.Fatalf("expected one reassign dispatch, got %v", dispatcher.commands)
	}
}

func TestEnqueueCreatesPendingItem(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeDispatcher{})

	id, err := svc.Enqueue(context.Background(), orchestrator.QueueEntry{
		SessionID:    uuid.New(),
		EnrollmentID: uuid.New(),
		Reason:       "recording_not_scheduled",
		Detail:       "bot service unavailable",
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	it := store.items[id]
	if it.Status != repository.StatusPending {
		t.Fatalf("expected pending item, got %s", it.Status)
	}
	if it.Detail == nil || *it.Detail != "bot service unavailable" {
		t.Fatalf("expected detail to be stored")
	}
}
