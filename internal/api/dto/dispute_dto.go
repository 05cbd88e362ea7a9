package dto

import (
	"time"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
)

// CreateDisputeRequest payload.
type CreateDisputeRequest struct {
	ContractID  string                 `json:"contract_id"`
	Category    domain.DisputeCategory `json:"category"`
	Description string                 `json:"description"`
}

// RespondRequest payload.
type RespondRequest struct {
	Message string `json:"message"`
}

// ResolveRequest payload.
type ResolveRequest struct {
	Outcome domain.ResolutionOutcome `json:"outcome"`
	Notes   *string                  `json:"notes,omitempty"`
}

// DisputeSummary response.
type DisputeSummary struct {
	ID            string                 `json:"id"`
	ExternalKey   string                 `json:"external_key"`
	ContractID    string                 `json:"contract_id"`
	Category      domain.DisputeCategory `json:"category"`
	Status        domain.DisputeStatus   `json:"status"`
	OpenedAt      time.Time              `json:"opened_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	ResponseDueAt time.Time              `json:"response_due_at"`
}

// DisputeDetailResponse provides full dispute info with evidence and
// timeline embedded.
type DisputeDetailResponse struct {
	ID                    string                    `json:"id"`
	ExternalKey           string                    `json:"external_key"`
	ContractID            string                    `json:"contract_id"`
	CustomerID            string                    `json:"customer_id"`
	ArtisanID             string                    `json:"artisan_id"`
	Category              domain.DisputeCategory    `json:"category"`
	Description           string                    `json:"description"`
	Status                domain.DisputeStatus      `json:"status"`
	ResolutionOutcome     *domain.ResolutionOutcome `json:"resolution_outcome,omitempty"`
	ResolutionNotes       *string                   `json:"resolution_notes,omitempty"`
	OpenedAt              time.Time                 `json:"opened_at"`
	UpdatedAt             time.Time                 `json:"updated_at"`
	ResponseDueAt         time.Time                 `json:"response_due_at"`
	ResponseWindowElapsed bool                      `json:"response_window_elapsed"`
	RespondedAt           *time.Time                `json:"responded_at,omitempty"`
	ResolvedAt            *time.Time                `json:"resolved_at,omitempty"`
	ClosedAt              *time.Time                `json:"closed_at,omitempty"`
	Evidence              []EvidenceResponse        `json:"evidence"`
	Timeline              []TimelineEntryResponse   `json:"timeline"`
}

// EvidenceResponse metadata.
type EvidenceResponse struct {
	ID          string              `json:"id"`
	Type        domain.EvidenceType `json:"type"`
	URL         string              `json:"url"`
	FileName    string              `json:"file_name"`
	ContentType string              `json:"content_type"`
	SizeBytes   int64               `json:"size_bytes"`
	Description *string             `json:"description,omitempty"`
	UploadedAt  time.Time           `json:"uploaded_at"`
}

// TimelineEntryResponse audit entry.
type TimelineEntryResponse struct {
	ID        string           `json:"id"`
	Action    string           `json:"action"`
	Details   *string          `json:"details,omitempty"`
	ActorType domain.ActorType `json:"actor_type"`
	Timestamp time.Time        `json:"timestamp"`
}
