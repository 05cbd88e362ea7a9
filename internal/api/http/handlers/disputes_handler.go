package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Wildnerds/korrectNG-sub003/internal/api/dto"
	"github.com/Wildnerds/korrectNG-sub003/internal/auth"
	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	"github.com/Wildnerds/korrectNG-sub003/internal/service"
	apperrors "github.com/Wildnerds/korrectNG-sub003/pkg/util"
)

// DisputesHandler manages dispute endpoints.
type DisputesHandler struct {
	service *service.DisputeService
}

// NewDisputesHandler constructs handler.
func NewDisputesHandler(disputeService *service.DisputeService) *DisputesHandler {
	return &DisputesHandler{service: disputeService}
}

// CreateDispute POST /disputes.
func (h *DisputesHandler) CreateDispute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Customer == nil {
		return apperrors.NewUnauthorized("customer required")
	}
	var req dto.CreateDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ContractID == "" {
		return apperrors.NewValidationError("contract_id required", nil)
	}

	dispute, err := h.service.CreateDispute(c.Context(), principal.Customer.ID, service.DisputeCreateInput{
		ContractID:  req.ContractID,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// ListDisputes GET /disputes.
func (h *DisputesHandler) ListDisputes(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	disputes, err := h.service.ListDisputes(c.Context(), actor, parseDisputeQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.DisputeSummary, 0, len(disputes))
	for i := range disputes {
		items = append(items, disputeSummary(&disputes[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDispute GET /disputes/:id.
func (h *DisputesHandler) GetDispute(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	dispute, err := h.service.GetDispute(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeDetail(dispute)})
}

// GetDisputeByKey GET /disputes/key/:key, for the human-facing DSP- key.
func (h *DisputesHandler) GetDisputeByKey(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	dispute, err := h.service.GetDisputeByKey(c.Context(), actor, c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeDetail(dispute)})
}

// AddEvidence POST /disputes/:id/evidence (multipart).
func (h *DisputesHandler) AddEvidence(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file required", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable file", nil)
	}
	defer file.Close()

	var description *string
	if val := strings.TrimSpace(c.FormValue("description")); val != "" {
		description = &val
	}

	item, err := h.service.AddEvidence(c.Context(), actor, c.Params("id"), service.EvidenceInput{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
		Content:     file,
		Description: description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": evidenceResponse(item)})
}

// Respond POST /disputes/:id/respond.
func (h *DisputesHandler) Respond(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Artisan == nil {
		return apperrors.NewUnauthorized("artisan required")
	}
	var req dto.RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	dispute, err := h.service.Respond(c.Context(), principal.Artisan.ID, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// Resolve POST /disputes/:id/resolve.
func (h *DisputesHandler) Resolve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.SubjectType != domain.SubjectTypeAdmin {
		return apperrors.NewUnauthorized("admin required")
	}
	var req dto.ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	dispute, err := h.service.Resolve(c.Context(), principal.AdminID, c.Params("id"), req.Outcome, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// Withdraw POST /disputes/:id/withdraw.
func (h *DisputesHandler) Withdraw(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Customer == nil {
		return apperrors.NewUnauthorized("customer required")
	}
	dispute, err := h.service.Withdraw(c.Context(), principal.Customer.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// Close POST /disputes/:id/close.
func (h *DisputesHandler) Close(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.SubjectType != domain.SubjectTypeAdmin {
		return apperrors.NewUnauthorized("admin required")
	}
	dispute, err := h.service.Close(c.Context(), principal.AdminID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

func actorFromRequest(c *fiber.Ctx) (service.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	switch principal.SubjectType {
	case domain.SubjectTypeCustomer:
		return service.Actor{Type: domain.ActorTypeCustomer, ID: principal.ID()}, nil
	case domain.SubjectTypeArtisan:
		return service.Actor{Type: domain.ActorTypeArtisan, ID: principal.ID()}, nil
	case domain.SubjectTypeAdmin:
		return service.Actor{Type: domain.ActorTypeAdmin, ID: principal.ID()}, nil
	}
	return service.Actor{}, apperrors.NewUnauthorized("unknown subject")
}

func parseDisputeQuery(c *fiber.Ctx) service.DisputeListFilter {
	filter := service.DisputeListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.DisputeStatus(strings.TrimSpace(part)))
		}
	}
	if categoryStr := c.Query("category"); categoryStr != "" {
		for _, part := range strings.Split(categoryStr, ",") {
			filter.Categories = append(filter.Categories, domain.DisputeCategory(strings.TrimSpace(part)))
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func disputeSummary(dispute *domain.Dispute) dto.DisputeSummary {
	return dto.DisputeSummary{
		ID:            dispute.ID,
		ExternalKey:   dispute.ExternalKey,
		ContractID:    dispute.ContractID,
		Category:      dispute.Category,
		Status:        dispute.Status,
		OpenedAt:      dispute.OpenedAt,
		UpdatedAt:     dispute.UpdatedAt,
		ResponseDueAt: dispute.ResponseDueAt,
	}
}

func disputeDetail(dispute *domain.Dispute) dto.DisputeDetailResponse {
	evidence := make([]dto.EvidenceResponse, 0, len(dispute.Evidence))
	for i := range dispute.Evidence {
		evidence = append(evidence, evidenceResponse(&dispute.Evidence[i]))
	}
	timeline := make([]dto.TimelineEntryResponse, 0, len(dispute.Timeline))
	for _, entry := range dispute.Timeline {
		timeline = append(timeline, dto.TimelineEntryResponse{
			ID:        entry.ID,
			Action:    entry.Action,
			Details:   entry.Details,
			ActorType: entry.ActorType,
			Timestamp: entry.Timestamp,
		})
	}
	return dto.DisputeDetailResponse{
		ID:                    dispute.ID,
		ExternalKey:           dispute.ExternalKey,
		ContractID:            dispute.ContractID,
		CustomerID:            dispute.CustomerID,
		ArtisanID:             dispute.ArtisanID,
		Category:              dispute.Category,
		Description:           dispute.Description,
		Status:                dispute.Status,
		ResolutionOutcome:     dispute.ResolutionOutcome,
		ResolutionNotes:       dispute.ResolutionNotes,
		OpenedAt:              dispute.OpenedAt,
		UpdatedAt:             dispute.UpdatedAt,
		ResponseDueAt:         dispute.ResponseDueAt,
		ResponseWindowElapsed: dispute.ResponseWindowElapsed(time.Now()),
		RespondedAt:           dispute.RespondedAt,
		ResolvedAt:            dispute.ResolvedAt,
		ClosedAt:              dispute.ClosedAt,
		Evidence:              evidence,
		Timeline:              timeline,
	}
}

func evidenceResponse(item *domain.EvidenceItem) dto.EvidenceResponse {
	return dto.EvidenceResponse{
		ID:          item.ID,
		Type:        item.Type,
		URL:         item.URL,
		FileName:    item.FileName,
		ContentType: item.ContentType,
		SizeBytes:   item.SizeBytes,
		Description: item.Description,
		UploadedAt:  item.UploadedAt,
	}
}
