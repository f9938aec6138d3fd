package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/dto"
	"github.com/ignatzorin/rental-backend/internal/http/handlers/common"
	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/service"
	"github.com/ignatzorin/rental-backend/internal/validation"
)

// VerificationService - проверка объектов и значок "проверено".
type VerificationService interface {
	Request(ctx context.Context, actor service.Actor, listingID uuid.UUID) (*models.PropertyVerification, error)
	Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.PropertyVerification, error)
	UpdateDocument(ctx context.Context, actor service.Actor, id uuid.UUID, in service.DocumentInput) (*models.PropertyVerification, error)
	UpdateInspection(ctx context.Context, actor service.Actor, id uuid.UUID, in service.InspectionInput) (*models.PropertyVerification, error)
	Approve(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.PropertyVerification, error)
	Reject(ctx context.Context, actor service.Actor, id uuid.UUID, reason string) (*models.PropertyVerification, error)
}

type VerificationHandler struct {
	verifications VerificationService
}

func NewVerificationHandler(verifications VerificationService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications}
}

// RequestVerification POST /verifications
func (h *VerificationHandler) RequestVerification(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	var req dto.VerificationRequest
	if !common.BindJSON(c, &req) {
		return
	}

	v, err := h.verifications.Request(c.Request.Context(), actor, req.ListingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, v)
}

// GetVerification GET /verifications/:id
func (h *VerificationHandler) GetVerification(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	v, err := h.verifications.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, v)
}

// UpdateDocument PUT /verifications/:id/documents
func (h *VerificationHandler) UpdateDocument(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req dto.VerificationDocumentRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if req.Document != nil {
		if err := validation.ValidateMediaRefs([]string{*req.Document}); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	v, err := h.verifications.UpdateDocument(c.Request.Context(), actor, id, service.DocumentInput{
		Kind:     req.Kind,
		Document: req.Document,
		Verified: req.Verified,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, v)
}

// UpdateInspection PUT /verifications/:id/inspection
func (h *VerificationHandler) UpdateInspection(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req dto.InspectionRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateOptionalText("заметки осмотра", req.Notes, validation.MaxNotesLength); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	v, err := h.verifications.UpdateInspection(c.Request.Context(), actor, id, service.InspectionInput{
		Completed: req.Completed,
		Passed:    req.Passed,
		Notes:     req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, v)
}

// ApproveVerification POST /verifications/:id/approve
func (h *VerificationHandler) ApproveVerification(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	v, err := h.verifications.Approve(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, v)
}

// RejectVerification POST /verifications/:id/reject
func (h *VerificationHandler) RejectVerification(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req dto.RejectRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateReason(req.Reason); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	v, err := h.verifications.Reject(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, v)
}
