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

// ChecklistService - акты осмотра при въезде и выезде.
type ChecklistService interface {
	Create(ctx context.Context, actor service.Actor, ref string, in service.ChecklistInput) (*models.MoveInOutChecklist, error)
	Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.MoveInOutChecklist, error)
	ListByContract(ctx context.Context, actor service.Actor, ref string) ([]models.MoveInOutChecklist, error)
	Update(ctx context.Context, actor service.Actor, id uuid.UUID, in service.ChecklistInput) (*models.MoveInOutChecklist, error)
	Approve(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.MoveInOutChecklist, error)
	AssessDamage(ctx context.Context, actor service.Actor, ref string) (*models.DamageAssessment, error)
}

// ChecklistHandler обслуживает маршруты актов осмотра.
type ChecklistHandler struct {
	checklists ChecklistService
}

// NewChecklistHandler создаёт новый хэндлер.
func NewChecklistHandler(checklists ChecklistService) *ChecklistHandler {
	return &ChecklistHandler{checklists: checklists}
}

func bindChecklist(c *gin.Context) (service.ChecklistInput, bool) {
	var req dto.ChecklistRequest
	if !common.BindJSON(c, &req) {
		return service.ChecklistInput{}, false
	}

	rooms := make([]validation.RoomInput, 0, len(req.Rooms))
	for _, room := range req.Rooms {
		rooms = append(rooms, validation.RoomInput{Name: room.Name, DamageCost: room.DamageCost})
	}
	if err := firstError(
		validation.ValidateRooms(rooms),
		validation.ValidateMediaRefs(req.Media),
		validation.ValidateOptionalText("заметки", req.Notes, validation.MaxNotesLength),
	); err != nil {
		response.BadRequest(c, err.Error())
		return service.ChecklistInput{}, false
	}

	return service.ChecklistInput{
		Type:      req.Type,
		Rooms:     req.Rooms,
		Amenities: req.Amenities,
		Media:     req.Media,
		Notes:     req.Notes,
	}, true
}

// CreateChecklist обрабатывает POST /contracts/:ref/checklists.
func (h *ChecklistHandler) CreateChecklist(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	in, ok := bindChecklist(c)
	if !ok {
		return
	}

	checklist, err := h.checklists.Create(c.Request.Context(), actor, c.Param("ref"), in)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, checklist)
}

// ListContractChecklists обрабатывает GET /contracts/:ref/checklists.
func (h *ChecklistHandler) ListContractChecklists(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	checklists, err := h.checklists.ListByContract(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, checklists)
}

// AssessDamage обрабатывает POST /contracts/:ref/damage-assessment.
func (h *ChecklistHandler) AssessDamage(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	assessment, err := h.checklists.AssessDamage(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, assessment)
}

// GetChecklist обрабатывает GET /checklists/:id.
func (h *ChecklistHandler) GetChecklist(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	checklist, err := h.checklists.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, checklist)
}

// UpdateChecklist обрабатывает PUT /checklists/:id.
func (h *ChecklistHandler) UpdateChecklist(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	in, ok := bindChecklist(c)
	if !ok {
		return
	}

	checklist, err := h.checklists.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, checklist)
}

// ApproveChecklist обрабатывает POST /checklists/:id/approve.
func (h *ChecklistHandler) ApproveChecklist(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	checklist, err := h.checklists.Approve(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, checklist)
}
