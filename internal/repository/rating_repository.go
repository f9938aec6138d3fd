package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// RatingRepository хранит взаимные оценки сторон.
type RatingRepository struct {
	db *sqlx.DB
}

func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Ensure создаёт запись оценок по договору, если её ещё нет, и возвращает актуальную.
func (r *RatingRepository) Ensure(ctx context.Context, contractID, tenantID, landlordID uuid.UUID) (*models.RentalRating, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO rental_ratings (contract_id, tenant_id, landlord_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (contract_id) DO NOTHING
	`, contractID, tenantID, landlordID); err != nil {
		return nil, fmt.Errorf("rating repository: ensure %w", err)
	}
	return r.GetByContractID(ctx, contractID)
}

func (r *RatingRepository) GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.RentalRating, error) {
	rating, err := common.GetOne[models.RentalRating](ctx, r.db, apperror.ErrRatingNotFound, `SELECT * FROM rental_ratings WHERE contract_id = $1`, contractID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("rating repository: get by contract %w", err)
	}
	return rating, err
}

// Submit записывает оценку стороны, только если эта сторона ещё не оценивала.
func (r *RatingRepository) Submit(ctx context.Context, contractID uuid.UUID, party models.Party, s models.RatingSubmission) (bool, error) {
	var query string
	switch party {
	case models.PartyTenant:
		query = `
			UPDATE rental_ratings SET tenant_overall = $2, tenant_comment = $3, tenant_details = $4,
				tenant_rated_at = $5, updated_at = $5
			WHERE contract_id = $1 AND tenant_overall IS NULL
		`
	case models.PartyLandlord:
		query = `
			UPDATE rental_ratings SET landlord_overall = $2, landlord_comment = $3, landlord_details = $4,
				landlord_rated_at = $5, updated_at = $5
			WHERE contract_id = $1 AND landlord_overall IS NULL
		`
	default:
		return false, fmt.Errorf("rating repository: unknown party %q", party)
	}

	ok, err := common.ExecCAS(ctx, r.db, query, contractID, s.Overall, s.Comment, s.Details, s.RatedAt)
	if err != nil {
		return false, fmt.Errorf("rating repository: submit %w", err)
	}
	return ok, nil
}

// MarkBothRated поднимает флаг both_rated. Флаг поднимается один раз и больше не сбрасывается.
func (r *RatingRepository) MarkBothRated(ctx context.Context, contractID uuid.UUID, at time.Time) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE rental_ratings SET both_rated = TRUE, both_rated_at = $2, updated_at = $2
		WHERE contract_id = $1 AND NOT both_rated
			AND tenant_overall IS NOT NULL AND landlord_overall IS NOT NULL
	`, contractID, at)
	if err != nil {
		return false, fmt.Errorf("rating repository: mark both rated %w", err)
	}
	return ok, nil
}
