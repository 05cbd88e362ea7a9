package events

import (
	"time"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDisputeOpened    EventType = "dispute_opened"
	EventEvidenceAdded    EventType = "dispute_evidence_added"
	EventDisputeResponded EventType = "dispute_responded"
	EventDisputeResolved  EventType = "dispute_resolved"
	EventDisputeClosed    EventType = "dispute_closed"
	EventDisputeEscalated EventType = "dispute_escalated"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	ID   *string          `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	DisputeID  string      `json:"dispute_id"`
	ContractID string      `json:"contract_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// DisputeOpenedPayload payload.
type DisputeOpenedPayload struct {
	Category      domain.DisputeCategory `json:"category"`
	ArtisanID     string                 `json:"artisan_id"`
	ResponseDueAt time.Time              `json:"response_due_at"`
}

// EvidenceAddedPayload payload.
type EvidenceAddedPayload struct {
	EvidenceID   string              `json:"evidence_id"`
	EvidenceType domain.EvidenceType `json:"evidence_type"`
	FileName     string              `json:"file_name"`
	SizeBytes    int64               `json:"size_bytes"`
}

// DisputeRespondedPayload payload.
type DisputeRespondedPayload struct {
	OldStatus domain.DisputeStatus `json:"old_status"`
	NewStatus domain.DisputeStatus `json:"new_status"`
}

// DisputeResolvedPayload payload.
type DisputeResolvedPayload struct {
	Outcome domain.ResolutionOutcome `json:"outcome"`
	Notes   *string                  `json:"notes,omitempty"`
}

// DisputeClosedPayload payload.
type DisputeClosedPayload struct {
	OldStatus domain.DisputeStatus `json:"old_status"`
	Withdrawn bool                 `json:"withdrawn"`
}

// DisputeEscalatedPayload payload.
type DisputeEscalatedPayload struct {
	ResponseDueAt time.Time `json:"response_due_at"`
}
