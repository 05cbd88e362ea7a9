package domain

import "time"

// ActorType indicates who performed a dispute action.
type ActorType string

const (
	ActorTypeCustomer ActorType = "CUSTOMER"
	ActorTypeArtisan  ActorType = "ARTISAN"
	ActorTypeAdmin    ActorType = "ADMIN"
	ActorTypeSystem   ActorType = "SYSTEM"
)

// Timeline action labels. These are display strings; storage order is
// chronological.
const (
	ActionDisputeOpened    = "Dispute opened"
	ActionEvidenceAdded    = "Evidence added"
	ActionArtisanResponded = "Artisan responded"
	ActionUnderReview      = "Dispute under review"
	ActionDisputeResolved  = "Dispute resolved"
	ActionDisputeWithdrawn = "Dispute withdrawn"
	ActionDisputeClosed    = "Dispute closed"
	ActionWindowElapsed    = "Response window elapsed"
)

// TimelineEntry is an immutable audit trail entry. Entries are append-only
// and never updated or removed once written.
type TimelineEntry struct {
	ID        string
	DisputeID string
	Action    string
	Details   *string
	ActorType ActorType
	ActorID   *string
	Timestamp time.Time
}
