package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	"github.com/Wildnerds/korrectNG-sub003/internal/events"
	"github.com/Wildnerds/korrectNG-sub003/internal/repository"
	apperrors "github.com/Wildnerds/korrectNG-sub003/pkg/util"
)

type fakeDisputeRepo struct {
	mu       sync.Mutex
	disputes map[string]*domain.Dispute
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{disputes: map[string]*domain.Dispute{}}
}

func (f *fakeDisputeRepo) Create(ctx context.Context, dispute *domain.Dispute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.disputes {
		if existing.ContractID == dispute.ContractID && !existing.IsTerminal() {
			return repository.ErrDuplicateActiveDispute
		}
	}
	dispute.ID = uuid.NewString()
	dispute.OpenedAt = time.Now()
	dispute.UpdatedAt = dispute.OpenedAt
	copy := *dispute
	f.disputes[dispute.ID] = &copy
	return nil
}

func (f *fakeDisputeRepo) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.disputes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copy := *stored
	return &copy, nil
}

func (f *fakeDisputeRepo) GetByExternalKey(ctx context.Context, key string) (*domain.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.disputes {
		if stored.ExternalKey == key {
			copy := *stored
			return &copy, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDisputeRepo) ListWithFilter(ctx context.Context, filter repository.DisputeFilter) ([]domain.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Dispute
	for _, stored := range f.disputes {
		if filter.CustomerID != nil && stored.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.ArtisanID != nil && stored.ArtisanID != *filter.ArtisanID {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (f *fakeDisputeRepo) UpdateStatusIf(ctx context.Context, dispute *domain.Dispute, expected domain.DisputeStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.disputes[dispute.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStatusConflict
	}
	copy := *dispute
	copy.UpdatedAt = time.Now()
	f.disputes[dispute.ID] = &copy
	return nil
}

func (f *fakeDisputeRepo) MarkEscrowPaused(ctx context.Context, id string, pausedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.disputes[id]; ok {
		stored.EscrowPausedAt = &pausedAt
	}
	return nil
}

func (f *fakeDisputeRepo) MarkEscalated(ctx context.Context, id string, escalatedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.disputes[id]
	if !ok || stored.EscalatedAt != nil {
		return false, nil
	}
	stored.EscalatedAt = &escalatedAt
	return true, nil
}

func (f *fakeDisputeRepo) ListEscalationDue(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Dispute
	for _, stored := range f.disputes {
		if stored.Status == domain.DisputeStatusOpen && stored.EscalatedAt == nil &&
			stored.RespondedAt == nil && now.After(stored.ResponseDueAt) {
			out = append(out, *stored)
		}
	}
	return out, nil
}

func (f *fakeDisputeRepo) ListPausePending(ctx context.Context, limit int) ([]domain.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Dispute
	for _, stored := range f.disputes {
		if !stored.IsTerminal() && stored.EscrowPausedAt == nil {
			out = append(out, *stored)
		}
	}
	return out, nil
}

type fakeEvidenceRepo struct {
	mu    sync.Mutex
	items []domain.EvidenceItem
}

func (f *fakeEvidenceRepo) Create(ctx context.Context, item *domain.EvidenceItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = uuid.NewString()
	item.UploadedAt = time.Now()
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeEvidenceRepo) ListByDispute(ctx context.Context, disputeID string) ([]domain.EvidenceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EvidenceItem
	for _, item := range f.items {
		if item.DisputeID == disputeID {
			out = append(out, item)
		}
	}
	return out, nil
}

type fakeTimelineRepo struct {
	mu      sync.Mutex
	entries []domain.TimelineEntry
}

func (f *fakeTimelineRepo) Create(ctx context.Context, entry *domain.TimelineEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeTimelineRepo) ListByDispute(ctx context.Context, disputeID string) ([]domain.TimelineEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TimelineEntry
	for _, entry := range f.entries {
		if entry.DisputeID == disputeID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeTimelineRepo) actions(disputeID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, entry := range f.entries {
		if entry.DisputeID == disputeID {
			out = append(out, entry.Action)
		}
	}
	return out
}

type fakeContractRepo struct {
	contracts map[string]*domain.JobContract
}

func (f *fakeContractRepo) Upsert(ctx context.Context, contract *domain.JobContract) error {
	f.contracts[contract.ID] = contract
	return nil
}

func (f *fakeContractRepo) GetByID(ctx context.Context, id string) (*domain.JobContract, error) {
	contract, ok := f.contracts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return contract, nil
}

// fakeEscrow records the order of interlock calls so tests can assert
// settlement happens after persistence and at most once per dispute.
type fakeEscrow struct {
	mu          sync.Mutex
	pauseCalls  []string
	settleCalls []settleCall
	pauseErr    error
	settleErr   error
}

type settleCall struct {
	contractID string
	outcome    domain.ResolutionOutcome
	key        string
}

func (f *fakeEscrow) PauseRelease(ctx context.Context, contractID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.pauseCalls = append(f.pauseCalls, contractID)
	return nil
}

func (f *fakeEscrow) ResumeOrSettle(ctx context.Context, contractID string, outcome domain.ResolutionOutcome, idempotencyKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settleErr != nil {
		return f.settleErr
	}
	for _, call := range f.settleCalls {
		if call.key == idempotencyKey {
			return nil
		}
	}
	f.settleCalls = append(f.settleCalls, settleCall{contractID: contractID, outcome: outcome, key: idempotencyKey})
	return nil
}

type fakeUploads struct {
	err   error
	calls int
}

func (f *fakeUploads) Store(ctx context.Context, input UploadInput) (StoredObject, error) {
	f.calls++
	if f.err != nil {
		return StoredObject{}, f.err
	}
	return StoredObject{URL: "https://cdn.example/" + input.FileName, PublicID: uuid.NewString()}, nil
}

type fixture struct {
	service   *DisputeService
	disputes  *fakeDisputeRepo
	evidence  *fakeEvidenceRepo
	timeline  *fakeTimelineRepo
	contracts *fakeContractRepo
	escrow    *fakeEscrow
	uploads   *fakeUploads
}

func newFixture() *fixture {
	f := &fixture{
		disputes:  newFakeDisputeRepo(),
		evidence:  &fakeEvidenceRepo{},
		timeline:  &fakeTimelineRepo{},
		contracts: &fakeContractRepo{contracts: map[string]*domain.JobContract{}},
		escrow:    &fakeEscrow{},
		uploads:   &fakeUploads{},
	}
	f.service = NewDisputeService(DisputeDependencies{
		DisputeRepo:  f.disputes,
		EvidenceRepo: f.evidence,
		TimelineRepo: f.timeline,
		ContractRepo: f.contracts,
		Store:        NewEvidenceStore(),
		Uploads:      f.uploads,
		Escrow:       f.escrow,
		Locks:        NewLocalDisputeLocker(),
		Dispatcher:   events.NewInMemoryDispatcher(),
	})
	return f
}

func (f *fixture) seedContract(id, customerID, artisanID string, status domain.ContractStatus) {
	f.contracts.contracts[id] = &domain.JobContract{
		ID:         id,
		Title:      "Kitchen cabinet installation",
		CustomerID: customerID,
		ArtisanID:  artisanID,
		Status:     status,
	}
}

const validDescription = "The cabinet doors were installed misaligned and two hinges are already loose."

func mustCreateDispute(t *testing.T, f *fixture, customerID, contractID string) *domain.Dispute {
	t.Helper()
	dispute, err := f.service.CreateDispute(context.Background(), customerID, DisputeCreateInput{
		ContractID:  contractID,
		Category:    domain.CategoryQualityIssue,
		Description: validDescription,
	})
	if err != nil {
		t.Fatalf("CreateDispute: %v", err)
	}
	return dispute
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	return domainErr.Code
}

func TestCreateDispute(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)

	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	if dispute.Status != domain.DisputeStatusOpen {
		t.Fatalf("status = %s, want OPEN", dispute.Status)
	}
	if !strings.HasPrefix(dispute.ExternalKey, "DSP-") {
		t.Errorf("external key %q missing DSP- prefix", dispute.ExternalKey)
	}
	if dispute.ArtisanID != "art-1" {
		t.Errorf("artisan = %s, want art-1", dispute.ArtisanID)
	}
	due := time.Until(dispute.ResponseDueAt)
	if due < 47*time.Hour || due > 49*time.Hour {
		t.Errorf("response window = %v, want about 48h", due)
	}
	if len(f.escrow.pauseCalls) != 1 || f.escrow.pauseCalls[0] != "c-1" {
		t.Errorf("pause calls = %v, want [c-1]", f.escrow.pauseCalls)
	}
	if dispute.EscrowPausedAt == nil {
		t.Error("EscrowPausedAt not set after successful pause")
	}
	if actions := f.timeline.actions(dispute.ID); len(actions) != 1 || actions[0] != domain.ActionDisputeOpened {
		t.Errorf("timeline = %v, want [%s]", actions, domain.ActionDisputeOpened)
	}
}

func TestCreateDisputeShortDescription(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)

	_, err := f.service.CreateDispute(context.Background(), "cust-1", DisputeCreateInput{
		ContractID:  "c-1",
		Category:    domain.CategoryQualityIssue,
		Description: "too short",
	})
	if code := domainCode(t, err); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s, want VALIDATION_FAILED", code)
	}
}

func TestCreateDisputeDescriptionLengthCountsCharacters(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)

	// 20 characters but 60 bytes; the minimum is a character count.
	short := strings.Repeat("世", 20)
	_, err := f.service.CreateDispute(context.Background(), "cust-1", DisputeCreateInput{
		ContractID:  "c-1",
		Category:    domain.CategoryQualityIssue,
		Description: short,
	})
	if code := domainCode(t, err); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s, want VALIDATION_FAILED for 20-character description", code)
	}

	longEnough := strings.Repeat("世", domain.MinDescriptionLength)
	if _, err := f.service.CreateDispute(context.Background(), "cust-1", DisputeCreateInput{
		ContractID:  "c-1",
		Category:    domain.CategoryQualityIssue,
		Description: longEnough,
	}); err != nil {
		t.Fatalf("CreateDispute with %d-character description: %v", domain.MinDescriptionLength, err)
	}
}

func TestCreateDisputeUnknownCategory(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)

	_, err := f.service.CreateDispute(context.Background(), "cust-1", DisputeCreateInput{
		ContractID:  "c-1",
		Category:    domain.DisputeCategory("LATE_ARRIVAL"),
		Description: validDescription,
	})
	if code := domainCode(t, err); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s, want VALIDATION_FAILED", code)
	}
}

func TestCreateDisputeInactiveContract(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusCompleted)

	_, err := f.service.CreateDispute(context.Background(), "cust-1", DisputeCreateInput{
		ContractID:  "c-1",
		Category:    domain.CategoryNonCompletion,
		Description: validDescription,
	})
	if code := domainCode(t, err); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s, want VALIDATION_FAILED", code)
	}
}

func TestCreateDisputeWrongCustomer(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)

	_, err := f.service.CreateDispute(context.Background(), "cust-2", DisputeCreateInput{
		ContractID:  "c-1",
		Category:    domain.CategoryOvercharge,
		Description: validDescription,
	})
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("code = %s, want FORBIDDEN", code)
	}
}

func TestCreateDisputeDuplicateActive(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	mustCreateDispute(t, f, "cust-1", "c-1")

	_, err := f.service.CreateDispute(context.Background(), "cust-1", DisputeCreateInput{
		ContractID:  "c-1",
		Category:    domain.CategoryOther,
		Description: validDescription,
	})
	if code := domainCode(t, err); code != "CONFLICT" {
		t.Fatalf("code = %s, want CONFLICT", code)
	}
}

func TestCreateDisputeSurvivesPauseFailure(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	f.escrow.pauseErr = errors.New("escrow unavailable")

	core, logged := observer.New(zapcore.ErrorLevel)
	f.service = NewDisputeService(DisputeDependencies{
		DisputeRepo:  f.disputes,
		EvidenceRepo: f.evidence,
		TimelineRepo: f.timeline,
		ContractRepo: f.contracts,
		Store:        NewEvidenceStore(),
		Uploads:      f.uploads,
		Escrow:       f.escrow,
		Locks:        NewLocalDisputeLocker(),
		Dispatcher:   events.NewInMemoryDispatcher(),
		Logger:       zap.New(core),
	})

	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	if dispute.EscrowPausedAt != nil {
		t.Error("EscrowPausedAt should be unset after failed pause")
	}
	pending, err := f.disputes.ListPausePending(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPausePending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pause pending = %d, want 1", len(pending))
	}
	if logged.FilterMessage("escrow pause failed at dispute creation, pending worker retry").Len() != 1 {
		t.Fatalf("pause failure not logged at error level, entries: %+v", logged.All())
	}
}

func TestAddEvidence(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	item, err := f.service.AddEvidence(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-1"}, dispute.ID, EvidenceInput{
		FileName:    "hinge.png",
		ContentType: "image/png",
		SizeBytes:   2 << 20,
		Content:     bytes.NewReader([]byte("png bytes")),
	})
	if err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}
	if item.Type != domain.EvidenceTypeImage {
		t.Errorf("type = %s, want IMAGE", item.Type)
	}
	if item.URL == "" {
		t.Error("stored URL is empty")
	}
	if f.uploads.calls != 1 {
		t.Errorf("upload calls = %d, want 1", f.uploads.calls)
	}
}

func TestAddEvidenceArtisanParty(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	_, err := f.service.AddEvidence(context.Background(), Actor{Type: domain.ActorTypeArtisan, ID: "art-1"}, dispute.ID, EvidenceInput{
		FileName:    "invoice.pdf",
		ContentType: "application/pdf",
		SizeBytes:   1 << 20,
		Content:     bytes.NewReader([]byte("pdf bytes")),
	})
	if err != nil {
		t.Fatalf("AddEvidence by artisan: %v", err)
	}
}

func TestAddEvidenceTooLarge(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	_, err := f.service.AddEvidence(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-1"}, dispute.ID, EvidenceInput{
		FileName:    "walkthrough.jpg",
		ContentType: "image/jpeg",
		SizeBytes:   12 << 20,
		Content:     bytes.NewReader(nil),
	})
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_FAILED" || domainErr.Details["reason"] != ReasonTooLarge {
		t.Fatalf("got code=%s reason=%v, want VALIDATION_FAILED/%s", domainErr.Code, domainErr.Details["reason"], ReasonTooLarge)
	}
	if f.uploads.calls != 0 {
		t.Errorf("upload called %d times for rejected file", f.uploads.calls)
	}
}

func TestAddEvidenceUnsupportedType(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	_, err := f.service.AddEvidence(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-1"}, dispute.ID, EvidenceInput{
		FileName:    "notes.zip",
		ContentType: "application/zip",
		SizeBytes:   1 << 20,
		Content:     bytes.NewReader(nil),
	})
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Details["reason"] != ReasonUnsupportedType {
		t.Fatalf("reason = %v, want %s", domainErr.Details["reason"], ReasonUnsupportedType)
	}
}

func TestAddEvidenceClosedDispute(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")
	if _, err := f.service.Withdraw(context.Background(), "cust-1", dispute.ID); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	_, err := f.service.AddEvidence(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-1"}, dispute.ID, EvidenceInput{
		FileName:    "late.png",
		ContentType: "image/png",
		SizeBytes:   1024,
		Content:     bytes.NewReader(nil),
	})
	if code := domainCode(t, err); code != "INVALID_STATE" {
		t.Fatalf("code = %s, want INVALID_STATE", code)
	}
}

func TestAddEvidenceUploadFailure(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")
	f.uploads.err = errors.New("upstream storage down")

	_, err := f.service.AddEvidence(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-1"}, dispute.ID, EvidenceInput{
		FileName:    "hinge.png",
		ContentType: "image/png",
		SizeBytes:   1024,
		Content:     bytes.NewReader(nil),
	})
	if err == nil {
		t.Fatal("expected upload error")
	}
	items, _ := f.evidence.ListByDispute(context.Background(), dispute.ID)
	if len(items) != 0 {
		t.Fatalf("evidence items = %d, want 0 after failed upload", len(items))
	}
}

func TestRespondTransitions(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	first, err := f.service.Respond(context.Background(), "art-1", dispute.ID, "I will come fix the hinges this week")
	if err != nil {
		t.Fatalf("first Respond: %v", err)
	}
	if first.Status != domain.DisputeStatusAwaitingResponse {
		t.Fatalf("status = %s, want AWAITING_RESPONSE", first.Status)
	}
	if first.RespondedAt == nil {
		t.Error("RespondedAt not set by first response")
	}

	second, err := f.service.Respond(context.Background(), "art-1", dispute.ID, "Customer declined the fix, escalating")
	if err != nil {
		t.Fatalf("second Respond: %v", err)
	}
	if second.Status != domain.DisputeStatusUnderReview {
		t.Fatalf("status = %s, want UNDER_REVIEW", second.Status)
	}

	_, err = f.service.Respond(context.Background(), "art-1", dispute.ID, "no further state")
	if code := domainCode(t, err); code != "INVALID_STATE" {
		t.Fatalf("code = %s, want INVALID_STATE", code)
	}
}

func TestRespondWrongArtisan(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	_, err := f.service.Respond(context.Background(), "art-2", dispute.ID, "not mine")
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("code = %s, want FORBIDDEN", code)
	}
}

func underReview(t *testing.T, f *fixture) *domain.Dispute {
	t.Helper()
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")
	if _, err := f.service.Respond(context.Background(), "art-1", dispute.ID, "responding"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	reviewed, err := f.service.Respond(context.Background(), "art-1", dispute.ID, "escalating")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	return reviewed
}

func TestResolve(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := underReview(t, f)

	notes := "refund approved after photo review"
	resolved, err := f.service.Resolve(context.Background(), "admin-1", dispute.ID, domain.OutcomeRefund, &notes)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != domain.DisputeStatusResolved {
		t.Fatalf("status = %s, want RESOLVED", resolved.Status)
	}
	if resolved.ResolutionOutcome == nil || *resolved.ResolutionOutcome != domain.OutcomeRefund {
		t.Fatal("resolution outcome not recorded")
	}
	if len(f.escrow.settleCalls) != 1 {
		t.Fatalf("settle calls = %d, want 1", len(f.escrow.settleCalls))
	}
	call := f.escrow.settleCalls[0]
	if call.contractID != "c-1" || call.outcome != domain.OutcomeRefund || call.key != dispute.ID {
		t.Fatalf("settle call = %+v", call)
	}
}

func TestResolveRequiresUnderReview(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	_, err := f.service.Resolve(context.Background(), "admin-1", dispute.ID, domain.OutcomeRelease, nil)
	if code := domainCode(t, err); code != "INVALID_STATE" {
		t.Fatalf("code = %s, want INVALID_STATE", code)
	}
	if len(f.escrow.settleCalls) != 0 {
		t.Fatalf("settle calls = %d, want 0", len(f.escrow.settleCalls))
	}
}

func TestResolveUnknownOutcome(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := underReview(t, f)

	_, err := f.service.Resolve(context.Background(), "admin-1", dispute.ID, domain.ResolutionOutcome("PARTIAL"), nil)
	if code := domainCode(t, err); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s, want VALIDATION_FAILED", code)
	}
	stored, _ := f.disputes.GetByID(context.Background(), dispute.ID)
	if stored.Status != domain.DisputeStatusUnderReview {
		t.Fatalf("status = %s, want UNDER_REVIEW untouched", stored.Status)
	}
}

func TestResolveSettleFailureLeavesResolved(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := underReview(t, f)
	f.escrow.settleErr = errors.New("escrow timeout")

	_, err := f.service.Resolve(context.Background(), "admin-1", dispute.ID, domain.OutcomeSplit, nil)
	if err == nil {
		t.Fatal("expected settle failure to surface")
	}
	stored, _ := f.disputes.GetByID(context.Background(), dispute.ID)
	if stored.Status != domain.DisputeStatusResolved {
		t.Fatalf("status = %s, want RESOLVED despite settle failure", stored.Status)
	}
}

func TestResolveTwiceSettlesOnce(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := underReview(t, f)

	if _, err := f.service.Resolve(context.Background(), "admin-1", dispute.ID, domain.OutcomeRefund, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	_, err := f.service.Resolve(context.Background(), "admin-1", dispute.ID, domain.OutcomeRelease, nil)
	if code := domainCode(t, err); code != "INVALID_STATE" {
		t.Fatalf("code = %s, want INVALID_STATE", code)
	}
	if len(f.escrow.settleCalls) != 1 {
		t.Fatalf("settle calls = %d, want 1", len(f.escrow.settleCalls))
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	closed, err := f.service.Withdraw(context.Background(), "cust-1", dispute.ID)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if closed.Status != domain.DisputeStatusClosed {
		t.Fatalf("status = %s, want CLOSED", closed.Status)
	}
	if len(f.escrow.settleCalls) != 1 || f.escrow.settleCalls[0].outcome != domain.OutcomeRelease {
		t.Fatalf("settle calls = %+v, want one RELEASE", f.escrow.settleCalls)
	}
}

func TestWithdrawWrongCustomer(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	_, err := f.service.Withdraw(context.Background(), "cust-2", dispute.ID)
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("code = %s, want FORBIDDEN", code)
	}
}

func TestWithdrawTerminal(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := underReview(t, f)
	if _, err := f.service.Resolve(context.Background(), "admin-1", dispute.ID, domain.OutcomeRelease, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	_, err := f.service.Withdraw(context.Background(), "cust-1", dispute.ID)
	if code := domainCode(t, err); code != "INVALID_STATE" {
		t.Fatalf("code = %s, want INVALID_STATE", code)
	}
}

func TestClose(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := underReview(t, f)
	if _, err := f.service.Resolve(context.Background(), "admin-1", dispute.ID, domain.OutcomeRelease, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	closed, err := f.service.Close(context.Background(), "admin-1", dispute.ID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != domain.DisputeStatusClosed {
		t.Fatalf("status = %s, want CLOSED", closed.Status)
	}
	if len(f.escrow.settleCalls) != 1 {
		t.Fatalf("settle calls = %d, closing must not settle again", len(f.escrow.settleCalls))
	}
}

func TestCloseRequiresResolved(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	_, err := f.service.Close(context.Background(), "admin-1", dispute.ID)
	if code := domainCode(t, err); code != "INVALID_STATE" {
		t.Fatalf("code = %s, want INVALID_STATE", code)
	}
}

func TestGetDisputeAccess(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	for _, actor := range []Actor{
		{Type: domain.ActorTypeCustomer, ID: "cust-1"},
		{Type: domain.ActorTypeArtisan, ID: "art-1"},
		{Type: domain.ActorTypeAdmin, ID: "admin-1"},
	} {
		if _, err := f.service.GetDispute(context.Background(), actor, dispute.ID); err != nil {
			t.Errorf("GetDispute as %s: %v", actor.Type, err)
		}
	}

	_, err := f.service.GetDispute(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-2"}, dispute.ID)
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("code = %s, want FORBIDDEN", code)
	}
}

func TestGetDisputeByExternalKey(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	found, err := f.service.GetDisputeByKey(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-1"}, dispute.ExternalKey)
	if err != nil {
		t.Fatalf("GetDisputeByKey: %v", err)
	}
	if found.ID != dispute.ID {
		t.Fatalf("resolved dispute %s, want %s", found.ID, dispute.ID)
	}
	if len(found.Timeline) != 1 {
		t.Errorf("timeline entries = %d, want 1", len(found.Timeline))
	}

	_, err = f.service.GetDisputeByKey(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-2"}, dispute.ExternalKey)
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("code = %s, want FORBIDDEN", code)
	}

	_, err = f.service.GetDisputeByKey(context.Background(), Actor{Type: domain.ActorTypeAdmin, ID: "admin-1"}, "DSP-MISSING1")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("code = %s, want NOT_FOUND", code)
	}
}

func TestAddEvidencePreservesInsertionOrder(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")

	names := []string{"first.png", "second.pdf", "third.jpg"}
	types := []string{"image/png", "application/pdf", "image/jpeg"}
	for i, name := range names {
		if _, err := f.service.AddEvidence(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-1"}, dispute.ID, EvidenceInput{
			FileName:    name,
			ContentType: types[i],
			SizeBytes:   1024,
			Content:     bytes.NewReader(nil),
		}); err != nil {
			t.Fatalf("AddEvidence %s: %v", name, err)
		}
	}

	full, err := f.service.GetDispute(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-1"}, dispute.ID)
	if err != nil {
		t.Fatalf("GetDispute: %v", err)
	}
	if len(full.Evidence) != len(names) {
		t.Fatalf("evidence items = %d, want %d", len(full.Evidence), len(names))
	}
	for i, item := range full.Evidence {
		if item.FileName != names[i] {
			t.Errorf("evidence[%d] = %s, want %s", i, item.FileName, names[i])
		}
	}
}

func TestGetDisputeEmbedsTimeline(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	dispute := mustCreateDispute(t, f, "cust-1", "c-1")
	if _, err := f.service.Respond(context.Background(), "art-1", dispute.ID, "on my way"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	full, err := f.service.GetDispute(context.Background(), Actor{Type: domain.ActorTypeAdmin, ID: "admin-1"}, dispute.ID)
	if err != nil {
		t.Fatalf("GetDispute: %v", err)
	}
	if len(full.Timeline) != 2 {
		t.Fatalf("timeline entries = %d, want 2", len(full.Timeline))
	}
	if full.Timeline[0].Action != domain.ActionDisputeOpened {
		t.Errorf("first action = %s, want %s", full.Timeline[0].Action, domain.ActionDisputeOpened)
	}
}

func TestListDisputesScoped(t *testing.T) {
	f := newFixture()
	f.seedContract("c-1", "cust-1", "art-1", domain.ContractStatusActive)
	f.seedContract("c-2", "cust-2", "art-1", domain.ContractStatusActive)
	mustCreateDispute(t, f, "cust-1", "c-1")
	mustCreateDispute(t, f, "cust-2", "c-2")

	mine, err := f.service.ListDisputes(context.Background(), Actor{Type: domain.ActorTypeCustomer, ID: "cust-1"}, DisputeListFilter{})
	if err != nil {
		t.Fatalf("ListDisputes: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("customer sees %d disputes, want 1", len(mine))
	}

	theirs, err := f.service.ListDisputes(context.Background(), Actor{Type: domain.ActorTypeArtisan, ID: "art-1"}, DisputeListFilter{})
	if err != nil {
		t.Fatalf("ListDisputes: %v", err)
	}
	if len(theirs) != 2 {
		t.Fatalf("artisan sees %d disputes, want 2", len(theirs))
	}

	all, err := f.service.ListDisputes(context.Background(), Actor{Type: domain.ActorTypeAdmin, ID: "admin-1"}, DisputeListFilter{})
	if err != nil {
		t.Fatalf("ListDisputes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d disputes, want 2", len(all))
	}
}
