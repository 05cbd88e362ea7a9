package domain

import "time"

// SubjectType differentiates customer, artisan, and admin tokens.
type SubjectType string

const (
	SubjectTypeCustomer SubjectType = "CUSTOMER"
	SubjectTypeArtisan  SubjectType = "ARTISAN"
	SubjectTypeAdmin    SubjectType = "ADMIN"
)

// AccountStatus represents lifecycle states for an account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
)

// Customer is a marketplace customer who books artisans and may raise
// disputes against their contracts.
type Customer struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Status       AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Artisan is a tradesperson fulfilling job contracts.
type Artisan struct {
	ID           string
	Name         string
	Email        string
	Trade        string
	PasswordHash string
	Status       AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
