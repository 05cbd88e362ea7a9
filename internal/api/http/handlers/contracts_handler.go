package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Wildnerds/korrectNG-sub003/internal/api/dto"
	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	"github.com/Wildnerds/korrectNG-sub003/internal/repository"
	apperrors "github.com/Wildnerds/korrectNG-sub003/pkg/util"
)

// ContractsHandler receives contract sync pushes from the booking
// subsystem and keeps the local read model current.
type ContractsHandler struct {
	contracts repository.ContractRepository
}

// NewContractsHandler constructs handler.
func NewContractsHandler(contracts repository.ContractRepository) *ContractsHandler {
	return &ContractsHandler{contracts: contracts}
}

// SyncContract PUT /internal/contracts.
func (h *ContractsHandler) SyncContract(c *fiber.Ctx) error {
	var req dto.SyncContractRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ID == "" || req.CustomerID == "" || req.ArtisanID == "" {
		return apperrors.NewValidationError("id, customer_id and artisan_id required", nil)
	}
	switch req.Status {
	case domain.ContractStatusActive, domain.ContractStatusCompleted, domain.ContractStatusCancelled:
	default:
		return apperrors.NewValidationError("unknown contract status", map[string]any{
			"status": req.Status,
		})
	}

	contract := &domain.JobContract{
		ID:         req.ID,
		Title:      req.Title,
		CustomerID: req.CustomerID,
		ArtisanID:  req.ArtisanID,
		Status:     req.Status,
	}
	if err := h.contracts.Upsert(c.Context(), contract); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.ContractResponse{
		ID:         contract.ID,
		Title:      contract.Title,
		CustomerID: contract.CustomerID,
		ArtisanID:  contract.ArtisanID,
		Status:     contract.Status,
		UpdatedAt:  contract.UpdatedAt,
	}})
}
