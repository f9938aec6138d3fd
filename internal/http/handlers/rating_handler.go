package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/rental-backend/internal/dto"
	"github.com/ignatzorin/rental-backend/internal/http/handlers/common"
	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/service"
	"github.com/ignatzorin/rental-backend/internal/validation"
)

// RatingService - взаимные оценки сторон договора.
type RatingService interface {
	Submit(ctx context.Context, actor service.Actor, ref string, in service.RatingInput) (*models.RentalRating, error)
	Get(ctx context.Context, actor service.Actor, ref string) (*models.RentalRating, error)
}

// RatingHandler обслуживает маршруты оценок.
type RatingHandler struct {
	ratings RatingService
}

// NewRatingHandler создаёт новый хэндлер.
func NewRatingHandler(ratings RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

// SubmitRating обрабатывает POST /contracts/:ref/rating.
func (h *RatingHandler) SubmitRating(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	var req dto.RatingRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateOptionalText("комментарий", req.Comment, validation.MaxCommentLength); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	rating, err := h.ratings.Submit(c.Request.Context(), actor, c.Param("ref"), service.RatingInput{
		Overall: req.Overall,
		Comment: req.Comment,
		Details: req.Details,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, rating)
}

// GetRating обрабатывает GET /contracts/:ref/rating.
func (h *RatingHandler) GetRating(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	rating, err := h.ratings.Get(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, rating)
}
