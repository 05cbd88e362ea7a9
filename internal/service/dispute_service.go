package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	"github.com/Wildnerds/korrectNG-sub003/internal/events"
	"github.com/Wildnerds/korrectNG-sub003/internal/repository"
	apperrors "github.com/Wildnerds/korrectNG-sub003/pkg/util"
)

// DisputeService coordinates the dispute lifecycle workflow.
type DisputeService struct {
	disputes   repository.DisputeRepository
	evidence   repository.EvidenceRepository
	timeline   repository.TimelineRepository
	contracts  repository.ContractRepository
	store      *EvidenceStore
	uploads    UploadService
	escrow     EscrowInterlock
	locks      DisputeLocker
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// DisputeDependencies bundles collaborators for the dispute service.
type DisputeDependencies struct {
	DisputeRepo  repository.DisputeRepository
	EvidenceRepo repository.EvidenceRepository
	TimelineRepo repository.TimelineRepository
	ContractRepo repository.ContractRepository
	Store        *EvidenceStore
	Uploads      UploadService
	Escrow       EscrowInterlock
	Locks        DisputeLocker
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewDisputeService constructs the service.
func NewDisputeService(deps DisputeDependencies) *DisputeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisputeService{
		disputes:   deps.DisputeRepo,
		evidence:   deps.EvidenceRepo,
		timeline:   deps.TimelineRepo,
		contracts:  deps.ContractRepo,
		store:      deps.Store,
		uploads:    deps.Uploads,
		escrow:     deps.Escrow,
		locks:      deps.Locks,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Actor identifies who is acting on a dispute.
type Actor struct {
	Type domain.ActorType
	ID   string
}

// DisputeCreateInput describes dispute creation payload.
type DisputeCreateInput struct {
	ContractID  string
	Category    domain.DisputeCategory
	Description string
}

// EvidenceInput describes an evidence upload.
type EvidenceInput struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	Content     io.Reader
	Description *string
}

// DisputeListFilter describes listing filters.
type DisputeListFilter struct {
	Statuses   []domain.DisputeStatus
	Categories []domain.DisputeCategory
	Limit      int
	Offset     int
}

// CreateDispute opens a dispute against an active contract. The
// one-active-dispute-per-contract invariant is enforced by the database's
// partial unique index, so concurrent creations cannot both succeed.
func (s *DisputeService) CreateDispute(ctx context.Context, customerID string, input DisputeCreateInput) (*domain.Dispute, error) {
	if !domain.IsValidCategory(input.Category) {
		return nil, apperrors.NewValidationError("unknown dispute category", map[string]any{
			"category": input.Category,
		})
	}
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) < domain.MinDescriptionLength {
		return nil, apperrors.NewValidationError("description too short", map[string]any{
			"min_length": domain.MinDescriptionLength,
			"length":     utf8.RuneCountInString(description),
		})
	}

	contract, err := s.contracts.GetByID(ctx, input.ContractID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("contract", map[string]any{"contract_id": input.ContractID})
		}
		return nil, err
	}
	if contract.CustomerID != customerID {
		return nil, apperrors.NewForbidden("contract belongs to another customer")
	}
	if contract.Status != domain.ContractStatusActive {
		return nil, apperrors.NewValidationError("disputes require an active contract", map[string]any{
			"contract_status": contract.Status,
		})
	}

	now := time.Now()
	dispute := &domain.Dispute{
		ExternalKey:   generateDisputeKey(),
		ContractID:    contract.ID,
		CustomerID:    contract.CustomerID,
		ArtisanID:     contract.ArtisanID,
		Category:      input.Category,
		Description:   description,
		Status:        domain.DisputeStatusOpen,
		ResponseDueAt: now.Add(domain.ResponseWindow),
	}

	if err := s.disputes.Create(ctx, dispute); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveDispute) {
			return nil, apperrors.NewConflict("contract already has an active dispute", map[string]any{
				"contract_id": contract.ID,
			})
		}
		return nil, err
	}

	if err := s.record(ctx, dispute.ID, domain.ActionDisputeOpened, nil, domain.ActorTypeCustomer, customerID); err != nil {
		return nil, err
	}

	// Pause escrow release. The dispute is already the source of truth; a
	// failed pause is retried by the escalation worker, so creation stands.
	if err := s.escrow.PauseRelease(ctx, dispute.ContractID); err != nil {
		s.logger.Error("escrow pause failed at dispute creation, pending worker retry",
			zap.String("dispute_id", dispute.ID),
			zap.String("contract_id", dispute.ContractID),
			zap.Error(err))
	} else {
		pausedAt := time.Now()
		dispute.EscrowPausedAt = &pausedAt
		if err := s.disputes.MarkEscrowPaused(ctx, dispute.ID, pausedAt); err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventDisputeOpened,
		DisputeID:  dispute.ID,
		ContractID: dispute.ContractID,
		Actor:      customerActor(customerID),
		Payload: events.DisputeOpenedPayload{
			Category:      dispute.Category,
			ArtisanID:     dispute.ArtisanID,
			ResponseDueAt: dispute.ResponseDueAt,
		},
	})
	return dispute, nil
}

// GetDispute fetches a dispute with its evidence and timeline, enforcing
// that the caller is a party to it or an admin.
func (s *DisputeService) GetDispute(ctx context.Context, actor Actor, disputeID string) (*domain.Dispute, error) {
	dispute, err := s.fetch(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, actor, dispute)
}

// GetDisputeByKey resolves a dispute by its human-facing DSP- key.
func (s *DisputeService) GetDisputeByKey(ctx context.Context, actor Actor, key string) (*domain.Dispute, error) {
	dispute, err := s.disputes.GetByExternalKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("dispute", map[string]any{"external_key": key})
		}
		return nil, err
	}
	return s.detail(ctx, actor, dispute)
}

func (s *DisputeService) detail(ctx context.Context, actor Actor, dispute *domain.Dispute) (*domain.Dispute, error) {
	if !canAccess(actor, dispute) {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}

	evidence, err := s.evidence.ListByDispute(ctx, dispute.ID)
	if err != nil {
		return nil, err
	}
	timeline, err := s.timeline.ListByDispute(ctx, dispute.ID)
	if err != nil {
		return nil, err
	}
	dispute.Evidence = evidence
	dispute.Timeline = timeline
	return dispute, nil
}

// ListDisputes returns disputes visible to the actor.
func (s *DisputeService) ListDisputes(ctx context.Context, actor Actor, filter DisputeListFilter) ([]domain.Dispute, error) {
	repoFilter := repository.DisputeFilter{
		Statuses:   filter.Statuses,
		Categories: filter.Categories,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	switch actor.Type {
	case domain.ActorTypeCustomer:
		repoFilter.CustomerID = &actor.ID
	case domain.ActorTypeArtisan:
		repoFilter.ArtisanID = &actor.ID
	case domain.ActorTypeAdmin:
		// admins see everything
	default:
		return nil, apperrors.NewForbidden("unknown actor")
	}
	return s.disputes.ListWithFilter(ctx, repoFilter)
}

// AddEvidence validates, uploads, and attaches an evidence item. The
// external upload happens before the per-dispute lock is taken, so slow
// uploads never block other transitions; the item is appended only after
// the upload succeeded.
func (s *DisputeService) AddEvidence(ctx context.Context, actor Actor, disputeID string, input EvidenceInput) (*domain.EvidenceItem, error) {
	if err := s.store.Validate(input.ContentType, input.SizeBytes); err != nil {
		return nil, err
	}
	evidenceType, _ := s.store.Classify(input.ContentType)

	dispute, err := s.fetch(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if actor.Type != domain.ActorTypeCustomer && actor.Type != domain.ActorTypeArtisan {
		return nil, apperrors.NewForbidden("only dispute parties may attach evidence")
	}
	if !canAccess(actor, dispute) {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}
	if !dispute.AcceptsEvidence() {
		return nil, stateError(dispute, "evidence cannot be added in current status")
	}

	stored, err := s.uploads.Store(ctx, UploadInput{
		FileName:    input.FileName,
		ContentType: input.ContentType,
		SizeBytes:   input.SizeBytes,
		Content:     input.Content,
	})
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Lock(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-check under the lock: the dispute may have reached a terminal
	// state while the upload was in flight.
	dispute, err = s.fetch(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !dispute.AcceptsEvidence() {
		return nil, stateError(dispute, "evidence cannot be added in current status")
	}

	actorID := actor.ID
	item := &domain.EvidenceItem{
		DisputeID:      dispute.ID,
		Type:           evidenceType,
		URL:            stored.URL,
		PublicID:       stored.PublicID,
		FileName:       input.FileName,
		ContentType:    input.ContentType,
		SizeBytes:      input.SizeBytes,
		Description:    input.Description,
		UploadedByType: actor.Type,
		UploadedByID:   &actorID,
	}
	if err := s.evidence.Create(ctx, item); err != nil {
		return nil, err
	}

	if err := s.record(ctx, dispute.ID, domain.ActionEvidenceAdded, input.Description, actor.Type, actor.ID); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventEvidenceAdded,
		DisputeID:  dispute.ID,
		ContractID: dispute.ContractID,
		Actor:      events.Actor{Type: actor.Type, ID: &actorID},
		Payload: events.EvidenceAddedPayload{
			EvidenceID:   item.ID,
			EvidenceType: item.Type,
			FileName:     item.FileName,
			SizeBytes:    item.SizeBytes,
		},
	})
	return item, nil
}

// Respond records the artisan's response. The first response moves the
// dispute to AWAITING_RESPONSE; a further exchange moves it to
// UNDER_REVIEW, handing it to arbitration.
func (s *DisputeService) Respond(ctx context.Context, artisanID, disputeID, message string) (*domain.Dispute, error) {
	release, err := s.locks.Lock(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	defer release()

	dispute, err := s.fetch(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.ArtisanID != artisanID {
		return nil, apperrors.NewForbidden("dispute concerns another artisan")
	}

	var next domain.DisputeStatus
	var action string
	switch dispute.Status {
	case domain.DisputeStatusOpen:
		next = domain.DisputeStatusAwaitingResponse
		action = domain.ActionArtisanResponded
	case domain.DisputeStatusAwaitingResponse:
		next = domain.DisputeStatusUnderReview
		action = domain.ActionUnderReview
	default:
		return nil, stateError(dispute, "dispute does not accept responses in current status")
	}

	oldStatus := dispute.Status
	dispute.Status = next
	if dispute.RespondedAt == nil {
		now := time.Now()
		dispute.RespondedAt = &now
	}
	if err := s.disputes.UpdateStatusIf(ctx, dispute, oldStatus); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, stateError(dispute, "dispute changed concurrently")
		}
		return nil, err
	}

	var details *string
	if trimmed := strings.TrimSpace(message); trimmed != "" {
		details = &trimmed
	}
	if err := s.record(ctx, dispute.ID, action, details, domain.ActorTypeArtisan, artisanID); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventDisputeResponded,
		DisputeID:  dispute.ID,
		ContractID: dispute.ContractID,
		Actor:      artisanActor(artisanID),
		Payload: events.DisputeRespondedPayload{
			OldStatus: oldStatus,
			NewStatus: next,
		},
	})
	return dispute, nil
}

// Resolve finalizes a dispute under review with an arbitration outcome.
// The status is persisted first; the escrow settlement is issued strictly
// afterwards, exactly once per dispute.
func (s *DisputeService) Resolve(ctx context.Context, adminID, disputeID string, outcome domain.ResolutionOutcome, notes *string) (*domain.Dispute, error) {
	if !domain.IsValidOutcome(outcome) {
		return nil, apperrors.NewValidationError("unknown resolution outcome", map[string]any{
			"outcome": outcome,
		})
	}

	release, err := s.locks.Lock(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	defer release()

	dispute, err := s.fetch(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != domain.DisputeStatusUnderReview {
		return nil, stateError(dispute, "only disputes under review can be resolved")
	}

	now := time.Now()
	dispute.Status = domain.DisputeStatusResolved
	dispute.ResolutionOutcome = &outcome
	dispute.ResolutionNotes = notes
	dispute.ResolvedAt = &now
	if err := s.disputes.UpdateStatusIf(ctx, dispute, domain.DisputeStatusUnderReview); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, stateError(dispute, "dispute changed concurrently")
		}
		return nil, err
	}

	details := "Outcome: " + string(outcome)
	if notes != nil && strings.TrimSpace(*notes) != "" {
		details += ": " + strings.TrimSpace(*notes)
	}
	if err := s.record(ctx, dispute.ID, domain.ActionDisputeResolved, &details, domain.ActorTypeAdmin, adminID); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventDisputeResolved,
		DisputeID:  dispute.ID,
		ContractID: dispute.ContractID,
		Actor:      adminActor(adminID),
		Payload: events.DisputeResolvedPayload{
			Outcome: outcome,
			Notes:   notes,
		},
	})

	// Settlement happens after the resolved status is durable. A failure
	// here leaves the dispute resolved and is surfaced for retry.
	if err := s.escrow.ResumeOrSettle(ctx, dispute.ContractID, outcome, dispute.ID); err != nil {
		return nil, err
	}
	return dispute, nil
}

// Withdraw closes a non-terminal dispute at the customer's request and
// releases the paused escrow.
func (s *DisputeService) Withdraw(ctx context.Context, customerID, disputeID string) (*domain.Dispute, error) {
	release, err := s.locks.Lock(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	defer release()

	dispute, err := s.fetch(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.CustomerID != customerID {
		return nil, apperrors.NewForbidden("dispute belongs to another customer")
	}
	if dispute.IsTerminal() {
		return nil, stateError(dispute, "dispute cannot be withdrawn in current status")
	}

	oldStatus := dispute.Status
	now := time.Now()
	dispute.Status = domain.DisputeStatusClosed
	dispute.ClosedAt = &now
	if err := s.disputes.UpdateStatusIf(ctx, dispute, oldStatus); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, stateError(dispute, "dispute changed concurrently")
		}
		return nil, err
	}

	if err := s.record(ctx, dispute.ID, domain.ActionDisputeWithdrawn, nil, domain.ActorTypeCustomer, customerID); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventDisputeClosed,
		DisputeID:  dispute.ID,
		ContractID: dispute.ContractID,
		Actor:      customerActor(customerID),
		Payload: events.DisputeClosedPayload{
			OldStatus: oldStatus,
			Withdrawn: true,
		},
	})

	// Withdrawal lifts the pause; funds flow as if no dispute was raised.
	if err := s.escrow.ResumeOrSettle(ctx, dispute.ContractID, domain.OutcomeRelease, dispute.ID); err != nil {
		return nil, err
	}
	return dispute, nil
}

// Close moves a resolved dispute to its final archived state.
func (s *DisputeService) Close(ctx context.Context, adminID, disputeID string) (*domain.Dispute, error) {
	release, err := s.locks.Lock(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	defer release()

	dispute, err := s.fetch(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != domain.DisputeStatusResolved {
		return nil, stateError(dispute, "only resolved disputes can be closed")
	}

	now := time.Now()
	dispute.Status = domain.DisputeStatusClosed
	dispute.ClosedAt = &now
	if err := s.disputes.UpdateStatusIf(ctx, dispute, domain.DisputeStatusResolved); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, stateError(dispute, "dispute changed concurrently")
		}
		return nil, err
	}

	if err := s.record(ctx, dispute.ID, domain.ActionDisputeClosed, nil, domain.ActorTypeAdmin, adminID); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventDisputeClosed,
		DisputeID:  dispute.ID,
		ContractID: dispute.ContractID,
		Actor:      adminActor(adminID),
		Payload: events.DisputeClosedPayload{
			OldStatus: domain.DisputeStatusResolved,
			Withdrawn: false,
		},
	})
	return dispute, nil
}

func (s *DisputeService) fetch(ctx context.Context, disputeID string) (*domain.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("dispute", map[string]any{"dispute_id": disputeID})
		}
		return nil, err
	}
	return dispute, nil
}

func (s *DisputeService) record(ctx context.Context, disputeID, action string, details *string, actorType domain.ActorType, actorID string) error {
	entry := &domain.TimelineEntry{
		DisputeID: disputeID,
		Action:    action,
		Details:   details,
		ActorType: actorType,
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	return s.timeline.Create(ctx, entry)
}

func (s *DisputeService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func canAccess(actor Actor, dispute *domain.Dispute) bool {
	switch actor.Type {
	case domain.ActorTypeAdmin:
		return true
	case domain.ActorTypeCustomer:
		return dispute.CustomerID == actor.ID
	case domain.ActorTypeArtisan:
		return dispute.ArtisanID == actor.ID
	}
	return false
}

func stateError(dispute *domain.Dispute, message string) error {
	return apperrors.NewStateError(message, map[string]any{
		"status": dispute.Status,
	})
}

func customerActor(id string) events.Actor {
	return events.Actor{Type: domain.ActorTypeCustomer, ID: &id}
}

func artisanActor(id string) events.Actor {
	return events.Actor{Type: domain.ActorTypeArtisan, ID: &id}
}

func adminActor(id string) events.Actor {
	return events.Actor{Type: domain.ActorTypeAdmin, ID: &id}
}

func generateDisputeKey() string {
	return "DSP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
