package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
)

// RatingStore - хранилище взаимных оценок.
type RatingStore interface {
	Ensure(ctx context.Context, contractID, tenantID, landlordID uuid.UUID) (*models.RentalRating, error)
	GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.RentalRating, error)
	Submit(ctx context.Context, contractID uuid.UUID, party models.Party, s models.RatingSubmission) (bool, error)
	MarkBothRated(ctx context.Context, contractID uuid.UUID, at time.Time) (bool, error)
}

// RatingService собирает оценки сторон друг другу.
type RatingService struct {
	ratings   RatingStore
	contracts ContractReader
	effects   effects
	now       func() time.Time
}

func NewRatingService(ratings RatingStore, contracts ContractReader, outbox OutboxWriter) *RatingService {
	return &RatingService{
		ratings:   ratings,
		contracts: contracts,
		effects:   effects{outbox: outbox},
		now:       time.Now,
	}
}

// RatingInput - оценка от 1 до 5 и необязательные оценки по критериям.
type RatingInput struct {
	Overall int
	Comment *string
	Details map[string]int
}

func (in RatingInput) validate() error {
	if in.Overall < 1 || in.Overall > 5 {
		return apperror.Validation("оценка должна быть от 1 до 5")
	}
	for criterion, score := range in.Details {
		if score < 1 || score > 5 {
			return apperror.Validation("оценка по критерию должна быть от 1 до 5").With("criterion", criterion)
		}
	}
	return nil
}

// Submit записывает оценку стороны. Каждая сторона оценивает один раз;
// флаг both_rated поднимается, когда приходит вторая оценка.
func (s *RatingService) Submit(ctx context.Context, actor Actor, ref string, in RatingInput) (*models.RentalRating, error) {
	c, caps, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	party, ok := caps.Party()
	if !ok {
		return nil, apperror.ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := s.ratings.Ensure(ctx, c.ID, c.TenantID, c.LandlordID); err != nil {
		return nil, err
	}
	submitted, err := s.ratings.Submit(ctx, c.ID, party, models.RatingSubmission{
		Overall: in.Overall,
		Comment: in.Comment,
		Details: models.RatingDetails(in.Details),
		RatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if !submitted {
		return nil, apperror.Conflict("вы уже оценили эту сделку", "rated")
	}

	rating, err := s.ratings.GetByContractID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if rating.HasBothSides() && !rating.BothRated {
		if _, err := s.ratings.MarkBothRated(ctx, c.ID, s.now()); err != nil {
			return nil, err
		}
		if rating, err = s.ratings.GetByContractID(ctx, c.ID); err != nil {
			return nil, err
		}
	}

	s.effects.notify(ctx, contractMessage("rating.submitted", "Другая сторона оставила оценку сделки",
		c.ID, c.ListingID, &actor.UserID, c.TenantID, c.LandlordID)...)
	return rating, nil
}

// Get возвращает оценки по договору.
func (s *RatingService) Get(ctx context.Context, actor Actor, ref string) (*models.RentalRating, error) {
	c, _, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	return s.ratings.GetByContractID(ctx, c.ID)
}
