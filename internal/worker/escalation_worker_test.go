package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Wildnerds/korrectNG-sub003/internal/config"
	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	"github.com/Wildnerds/korrectNG-sub003/internal/events"
	"github.com/Wildnerds/korrectNG-sub003/internal/repository"
)

type stubDisputeRepo struct {
	mu       sync.Mutex
	disputes map[string]*domain.Dispute
}

func newStubDisputeRepo(disputes ...*domain.Dispute) *stubDisputeRepo {
	repo := &stubDisputeRepo{disputes: map[string]*domain.Dispute{}}
	for _, d := range disputes {
		repo.disputes[d.ID] = d
	}
	return repo
}

func (r *stubDisputeRepo) Create(ctx context.Context, dispute *domain.Dispute) error { return nil }

func (r *stubDisputeRepo) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.disputes[id]; ok {
		return d, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *stubDisputeRepo) GetByExternalKey(ctx context.Context, key string) (*domain.Dispute, error) {
	return nil, pgx.ErrNoRows
}

func (r *stubDisputeRepo) ListWithFilter(ctx context.Context, filter repository.DisputeFilter) ([]domain.Dispute, error) {
	return nil, nil
}

func (r *stubDisputeRepo) UpdateStatusIf(ctx context.Context, dispute *domain.Dispute, expected domain.DisputeStatus) error {
	return nil
}

func (r *stubDisputeRepo) MarkEscrowPaused(ctx context.Context, id string, pausedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.disputes[id]; ok {
		d.EscrowPausedAt = &pausedAt
	}
	return nil
}

func (r *stubDisputeRepo) MarkEscalated(ctx context.Context, id string, escalatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok || d.EscalatedAt != nil {
		return false, nil
	}
	d.EscalatedAt = &escalatedAt
	return true, nil
}

func (r *stubDisputeRepo) ListEscalationDue(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Dispute
	for _, d := range r.disputes {
		if d.EscalatedAt == nil && d.RespondedAt == nil && now.After(d.ResponseDueAt) && !d.IsTerminal() {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *stubDisputeRepo) ListPausePending(ctx context.Context, limit int) ([]domain.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Dispute
	for _, d := range r.disputes {
		if !d.IsTerminal() && d.EscrowPausedAt == nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

type stubTimelineRepo struct {
	mu      sync.Mutex
	entries []domain.TimelineEntry
}

func (r *stubTimelineRepo) Create(ctx context.Context, entry *domain.TimelineEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *stubTimelineRepo) ListByDispute(ctx context.Context, disputeID string) ([]domain.TimelineEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, nil
}

type stubEscrow struct {
	mu         sync.Mutex
	pauseCalls []string
	pauseErr   error
}

func (e *stubEscrow) PauseRelease(ctx context.Context, contractID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pauseErr != nil {
		return e.pauseErr
	}
	e.pauseCalls = append(e.pauseCalls, contractID)
	return nil
}

func (e *stubEscrow) ResumeOrSettle(ctx context.Context, contractID string, outcome domain.ResolutionOutcome, idempotencyKey string) error {
	return nil
}

func overdueDispute(id string) *domain.Dispute {
	paused := time.Now().Add(-49 * time.Hour)
	return &domain.Dispute{
		ID:             id,
		ContractID:     "contract-" + id,
		CustomerID:     "cust-1",
		ArtisanID:      "art-1",
		Status:         domain.DisputeStatusOpen,
		ResponseDueAt:  time.Now().Add(-time.Hour),
		EscrowPausedAt: &paused,
	}
}

func newWorker(repo *stubDisputeRepo, timeline *stubTimelineRepo, escrow *stubEscrow, dispatcher events.Dispatcher) *EscalationWorker {
	return NewEscalationWorker(repo, timeline, escrow, dispatcher, zap.NewNop(), config.WorkerConfig{
		ScanIntervalSeconds: 1,
		ScanBatchSize:       10,
	})
}

func TestScanOnceEscalatesOverdueDisputes(t *testing.T) {
	overdue := overdueDispute("d-1")
	notDue := overdueDispute("d-2")
	notDue.ResponseDueAt = time.Now().Add(time.Hour)

	repo := newStubDisputeRepo(overdue, notDue)
	timeline := &stubTimelineRepo{}
	dispatcher := events.NewInMemoryDispatcher()

	var published []events.Event
	var mu sync.Mutex
	dispatcher.Subscribe(events.EventDisputeEscalated, func(ctx context.Context, event events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, event)
		return nil
	})

	w := newWorker(repo, timeline, &stubEscrow{}, dispatcher)
	if err := w.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}

	if overdue.EscalatedAt == nil {
		t.Error("overdue dispute not marked escalated")
	}
	if notDue.EscalatedAt != nil {
		t.Error("dispute inside its window was escalated")
	}
	if len(timeline.entries) != 1 || timeline.entries[0].Action != domain.ActionWindowElapsed {
		t.Fatalf("timeline entries = %+v, want one %q", timeline.entries, domain.ActionWindowElapsed)
	}
	if timeline.entries[0].ActorType != domain.ActorTypeSystem {
		t.Errorf("actor = %s, want SYSTEM", timeline.entries[0].ActorType)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 || published[0].DisputeID != "d-1" {
		t.Fatalf("published = %+v, want one event for d-1", published)
	}
}

func TestScanOnceEscalatesOnlyOnce(t *testing.T) {
	overdue := overdueDispute("d-1")
	repo := newStubDisputeRepo(overdue)
	timeline := &stubTimelineRepo{}

	w := newWorker(repo, timeline, &stubEscrow{}, events.NewInMemoryDispatcher())
	for i := 0; i < 3; i++ {
		if err := w.ScanOnce(context.Background()); err != nil {
			t.Fatalf("ScanOnce #%d: %v", i, err)
		}
	}
	if len(timeline.entries) != 1 {
		t.Fatalf("timeline entries = %d, want 1", len(timeline.entries))
	}
}

func TestScanOnceRetriesFailedPauses(t *testing.T) {
	unpaused := overdueDispute("d-1")
	unpaused.ResponseDueAt = time.Now().Add(time.Hour)
	unpaused.EscrowPausedAt = nil

	repo := newStubDisputeRepo(unpaused)
	escrow := &stubEscrow{}

	w := newWorker(repo, &stubTimelineRepo{}, escrow, events.NewInMemoryDispatcher())
	if err := w.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}

	if len(escrow.pauseCalls) != 1 || escrow.pauseCalls[0] != "contract-d-1" {
		t.Fatalf("pause calls = %v, want [contract-d-1]", escrow.pauseCalls)
	}
	if unpaused.EscrowPausedAt == nil {
		t.Error("EscrowPausedAt not set after successful retry")
	}
}

func TestScanOncePauseRetryFailureKeepsPending(t *testing.T) {
	unpaused := overdueDispute("d-1")
	unpaused.ResponseDueAt = time.Now().Add(time.Hour)
	unpaused.EscrowPausedAt = nil

	repo := newStubDisputeRepo(unpaused)
	escrow := &stubEscrow{pauseErr: errors.New("escrow still down")}

	w := newWorker(repo, &stubTimelineRepo{}, escrow, events.NewInMemoryDispatcher())
	if err := w.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}

	if unpaused.EscrowPausedAt != nil {
		t.Error("EscrowPausedAt set despite pause failure")
	}
	pending, _ := repo.ListPausePending(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("pause pending = %d, want 1", len(pending))
	}
}
