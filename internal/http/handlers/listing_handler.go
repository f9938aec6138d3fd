package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/http/handlers/common"
	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/models"
)

// LockService - доступность объектов.
type LockService interface {
	Lock(ctx context.Context, listingID uuid.UUID, owner models.LockOwner, status valueobject.AvailabilityStatus, reason string) error
	Release(ctx context.Context, listingID uuid.UUID, owner models.LockOwner, reason string, force bool) error
	Availability(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
}

// ListingHandler отдаёт статус доступности объекта и даёт администратору
// приостановить показ или принудительно освободить объект.
type ListingHandler struct {
	locks LockService
}

// NewListingHandler создаёт новый хэндлер.
func NewListingHandler(locks LockService) *ListingHandler {
	return &ListingHandler{locks: locks}
}

// Availability обрабатывает GET /listings/:id/availability.
func (h *ListingHandler) Availability(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	listing, err := h.locks.Availability(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, listing)
}

// Suspend обрабатывает POST /listings/:id/suspend. Только для администратора.
func (h *ListingHandler) Suspend(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.locks.Lock(c.Request.Context(), id, models.LockOwner{}, valueobject.AvailabilitySuspended, models.LockReasonAdmin); err != nil {
		response.Error(c, err)
		return
	}
	h.Availability(c)
}

// ForceRelease обрабатывает POST /listings/:id/release. Только для администратора.
func (h *ListingHandler) ForceRelease(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.locks.Release(c.Request.Context(), id, models.LockOwner{}, models.ReleaseReasonAdmin, true); err != nil {
		response.Error(c, err)
		return
	}
	h.Availability(c)
}
