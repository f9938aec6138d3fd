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

// DisputeService - споры по договорам.
type DisputeService interface {
	Raise(ctx context.Context, actor service.Actor, ref string, in service.RaiseDisputeInput) (*models.Dispute, error)
	Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, actor service.Actor, limit, offset int) ([]models.Dispute, error)
	ListByContract(ctx context.Context, actor service.Actor, ref string) ([]models.Dispute, error)
	PostMessage(ctx context.Context, actor service.Actor, id uuid.UUID, body string, attachments []string) (*models.DisputeMessage, error)
	AddEvidence(ctx context.Context, actor service.Actor, id uuid.UUID, refs []string) (*models.Dispute, error)
	StartReview(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Dispute, error)
	Escalate(ctx context.Context, actor service.Actor, id uuid.UUID, reason string) (*models.Dispute, error)
	Resolve(ctx context.Context, actor service.Actor, id uuid.UUID, in service.ResolveDisputeInput) (*models.Dispute, error)
	Close(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Dispute, error)
}

type DisputeHandler struct {
	disputes DisputeService
}

func NewDisputeHandler(disputes DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// RaiseDispute POST /contracts/:ref/disputes
func (h *DisputeHandler) RaiseDispute(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	var req dto.RaiseDisputeRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := firstError(
		validation.ValidateDisputeTitle(req.Title),
		validation.ValidateDisputeDescription(req.Description),
		validation.ValidateMediaRefs(req.Evidence),
	); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Raise(c.Request.Context(), actor, c.Param("ref"), service.RaiseDisputeInput{
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		Evidence:    req.Evidence,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dispute)
}

// ListContractDisputes GET /contracts/:ref/disputes
func (h *DisputeHandler) ListContractDisputes(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	disputes, err := h.disputes.ListByContract(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, disputes)
}

// ListMyDisputes GET /disputes
func (h *DisputeHandler) ListMyDisputes(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.disputes.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, disputes, len(disputes), limit, offset)
}

// GetDispute GET /disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	dispute, err := h.disputes.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dispute)
}

// PostMessage POST /disputes/:id/messages
func (h *DisputeHandler) PostMessage(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req dto.DisputeMessageRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := firstError(
		validation.ValidateMessageContent(req.Message),
		validation.ValidateMediaRefs(req.Attachments),
	); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	message, err := h.disputes.PostMessage(c.Request.Context(), actor, id, req.Message, req.Attachments)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// AddEvidence POST /disputes/:id/evidence
func (h *DisputeHandler) AddEvidence(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req dto.AddEvidenceRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateMediaRefs(req.Evidence); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.AddEvidence(c.Request.Context(), actor, id, req.Evidence)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dispute)
}

// StartReview POST /disputes/:id/review
func (h *DisputeHandler) StartReview(c *gin.Context) {
	h.simple(c, h.disputes.StartReview)
}

// CloseDispute POST /disputes/:id/close
func (h *DisputeHandler) CloseDispute(c *gin.Context) {
	h.simple(c, h.disputes.Close)
}

func (h *DisputeHandler) simple(c *gin.Context, op func(context.Context, service.Actor, uuid.UUID) (*models.Dispute, error)) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	dispute, err := op(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dispute)
}

// EscalateDispute POST /disputes/:id/escalate
func (h *DisputeHandler) EscalateDispute(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req dto.EscalateDisputeRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateReason(req.Reason); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Escalate(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dispute)
}

// ResolveDispute POST /disputes/:id/resolve
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if !common.BindJSON(c, &req) {
		return
	}

	dispute, err := h.disputes.Resolve(c.Request.Context(), actor, id, service.ResolveDisputeInput{
		Decision: req.Decision,
		Action:   req.Action,
		Amount:   req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dispute)
}
