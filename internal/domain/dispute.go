package domain

import "time"

// DisputeStatus enumerates lifecycle states for disputes.
type DisputeStatus string

const (
	DisputeStatusOpen             DisputeStatus = "OPEN"
	DisputeStatusAwaitingResponse DisputeStatus = "AWAITING_RESPONSE"
	DisputeStatusUnderReview      DisputeStatus = "UNDER_REVIEW"
	DisputeStatusResolved         DisputeStatus = "RESOLVED"
	DisputeStatusClosed           DisputeStatus = "CLOSED"
)

// DisputeCategory enumerates the fixed set of dispute reasons.
type DisputeCategory string

const (
	CategoryQualityIssue  DisputeCategory = "QUALITY_ISSUE"
	CategoryNonCompletion DisputeCategory = "NON_COMPLETION"
	CategoryOvercharge    DisputeCategory = "OVERCHARGE"
	CategoryOther         DisputeCategory = "OTHER"
)

// ResolutionOutcome enumerates how escrowed funds move after resolution.
type ResolutionOutcome string

const (
	OutcomeRelease ResolutionOutcome = "RELEASE"
	OutcomeRefund  ResolutionOutcome = "REFUND"
	OutcomeSplit   ResolutionOutcome = "SPLIT"
)

// MinDescriptionLength is enforced at dispute creation.
const MinDescriptionLength = 50

// ResponseWindow is how long the artisan has to respond before the
// dispute becomes eligible for automatic escalation.
const ResponseWindow = 48 * time.Hour

// Dispute is the aggregate for customer complaints against a job contract.
type Dispute struct {
	ID                string
	ExternalKey       string
	ContractID        string
	CustomerID        string
	ArtisanID         string
	Category          DisputeCategory
	Description       string
	Status            DisputeStatus
	ResolutionOutcome *ResolutionOutcome
	ResolutionNotes   *string
	OpenedAt          time.Time
	UpdatedAt         time.Time
	ResponseDueAt     time.Time
	RespondedAt       *time.Time
	ResolvedAt        *time.Time
	ClosedAt          *time.Time
	EscrowPausedAt    *time.Time
	EscalatedAt       *time.Time
	Evidence          []EvidenceItem
	Timeline          []TimelineEntry
}

// IsTerminal reports whether the dispute accepts no further mutation.
func (d *Dispute) IsTerminal() bool {
	return d.Status == DisputeStatusResolved || d.Status == DisputeStatusClosed
}

// AcceptsEvidence reports whether evidence may still be attached.
func (d *Dispute) AcceptsEvidence() bool {
	switch d.Status {
	case DisputeStatusOpen, DisputeStatusAwaitingResponse, DisputeStatusUnderReview:
		return true
	}
	return false
}

// ResponseWindowElapsed reports whether the artisan response window has
// passed without a recorded response.
func (d *Dispute) ResponseWindowElapsed(now time.Time) bool {
	return d.RespondedAt == nil && now.After(d.ResponseDueAt)
}

// OpenStatuses lists the states in which a contract is considered to be
// carrying an active dispute. At most one dispute per contract may be in
// any of these states.
func OpenStatuses() []DisputeStatus {
	return []DisputeStatus{DisputeStatusOpen, DisputeStatusAwaitingResponse, DisputeStatusUnderReview}
}

var allowedTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen:             {DisputeStatusAwaitingResponse, DisputeStatusClosed},
	DisputeStatusAwaitingResponse: {DisputeStatusUnderReview, DisputeStatusClosed},
	DisputeStatusUnderReview:      {DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusResolved:         {DisputeStatusClosed},
	DisputeStatusClosed:           {},
}

// IsValidTransition checks the dispute state machine.
func IsValidTransition(current, next DisputeStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsValidCategory checks membership in the fixed category set.
func IsValidCategory(category DisputeCategory) bool {
	switch category {
	case CategoryQualityIssue, CategoryNonCompletion, CategoryOvercharge, CategoryOther:
		return true
	}
	return false
}

// IsValidOutcome checks membership in the settlement outcome set.
func IsValidOutcome(outcome ResolutionOutcome) bool {
	switch outcome {
	case OutcomeRelease, OutcomeRefund, OutcomeSplit:
		return true
	}
	return false
}
