package dto

import (
	"time"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
)

// SyncContractRequest payload from the booking subsystem.
type SyncContractRequest struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	CustomerID string                `json:"customer_id"`
	ArtisanID  string                `json:"artisan_id"`
	Status     domain.ContractStatus `json:"status"`
}

// ContractResponse read model.
type ContractResponse struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	CustomerID string                `json:"customer_id"`
	ArtisanID  string                `json:"artisan_id"`
	Status     domain.ContractStatus `json:"status"`
	UpdatedAt  time.Time             `json:"updated_at"`
}
