package domain

import "time"

// ContractStatus mirrors the booking subsystem's contract lifecycle.
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "ACTIVE"
	ContractStatusCompleted ContractStatus = "COMPLETED"
	ContractStatusCancelled ContractStatus = "CANCELLED"
)

// JobContract is a read model of a contract owned by the booking
// subsystem. This service only verifies existence, parties, and status.
type JobContract struct {
	ID         string
	Title      string
	CustomerID string
	ArtisanID  string
	Status     ContractStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
