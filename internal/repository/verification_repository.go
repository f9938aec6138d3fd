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

// VerificationRepository хранит проверки объектов.
type VerificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create заводит проверку. На объект допускается одна запись.
func (r *VerificationRepository) Create(ctx context.Context, v *models.PropertyVerification) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO property_verifications (listing_id, requested_by, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, v.ListingID, v.RequestedBy, v.Status).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if _, ok := common.UniqueViolation(err); ok {
			return fmt.Errorf("verification repository: create %w", common.ErrAlreadyExists)
		}
		return fmt.Errorf("verification repository: create %w", err)
	}
	return nil
}

// Reopen возвращает отклонённую проверку в pending для повторной подачи.
func (r *VerificationRepository) Reopen(ctx context.Context, id, requestedBy uuid.UUID) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE property_verifications SET
			status = 'pending', requested_by = $2,
			ownership_verified = FALSE, identity_verified = FALSE, address_verified = FALSE,
			inspection_completed = FALSE, inspection_passed = FALSE,
			rejection_reason = NULL, verified_by = NULL, verified_at = NULL, badge_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'rejected'
	`, id, requestedBy)
	if err != nil {
		return false, fmt.Errorf("verification repository: reopen %w", err)
	}
	return ok, nil
}

func (r *VerificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PropertyVerification, error) {
	v, err := common.GetOne[models.PropertyVerification](ctx, r.db, apperror.ErrVerificationNotFound, `SELECT * FROM property_verifications WHERE id = $1`, id)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("verification repository: get by id %w", err)
	}
	return v, err
}

func (r *VerificationRepository) GetByListingID(ctx context.Context, listingID uuid.UUID) (*models.PropertyVerification, error) {
	v, err := common.GetOne[models.PropertyVerification](ctx, r.db, apperror.ErrVerificationNotFound, `SELECT * FROM property_verifications WHERE listing_id = $1`, listingID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("verification repository: get by listing %w", err)
	}
	return v, err
}

// UpdateDocument записывает документ и результат его проверки. Проверка уходит в in_progress.
func (r *VerificationRepository) UpdateDocument(ctx context.Context, id uuid.UUID, kind string, document *string, verified bool) (bool, error) {
	var query string
	switch kind {
	case models.VerificationDocOwnership:
		query = `UPDATE property_verifications SET ownership_document = COALESCE($2, ownership_document), ownership_verified = $3,`
	case models.VerificationDocIdentity:
		query = `UPDATE property_verifications SET identity_document = COALESCE($2, identity_document), identity_verified = $3,`
	case models.VerificationDocAddress:
		query = `UPDATE property_verifications SET address_document = COALESCE($2, address_document), address_verified = $3,`
	default:
		return false, fmt.Errorf("verification repository: unknown document %q", kind)
	}
	query += ` status = 'in_progress', updated_at = NOW() WHERE id = $1 AND status IN ('pending', 'in_progress')`

	ok, err := common.ExecCAS(ctx, r.db, query, id, document, verified)
	if err != nil {
		return false, fmt.Errorf("verification repository: update document %w", err)
	}
	return ok, nil
}

// UpdateInspection записывает результат осмотра.
func (r *VerificationRepository) UpdateInspection(ctx context.Context, id uuid.UUID, completed, passed bool, notes *string) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE property_verifications SET
			inspection_completed = $2, inspection_passed = $3,
			inspection_notes = COALESCE($4, inspection_notes),
			status = 'in_progress', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'in_progress')
	`, id, completed, passed, notes)
	if err != nil {
		return false, fmt.Errorf("verification repository: update inspection %w", err)
	}
	return ok, nil
}

// Approve подтверждает объект, только если пройдены все пять проверок.
func (r *VerificationRepository) Approve(ctx context.Context, id, actor uuid.UUID, at, badgeExpiresAt time.Time) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE property_verifications SET
			status = 'verified', verified_by = $2, verified_at = $3, badge_expires_at = $4, updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'in_progress')
			AND ownership_verified AND identity_verified AND address_verified
			AND inspection_completed AND inspection_passed
	`, id, actor, at, badgeExpiresAt)
	if err != nil {
		return false, fmt.Errorf("verification repository: approve %w", err)
	}
	return ok, nil
}

// Reject отклоняет проверку. Подтверждённую проверку тоже можно отозвать.
func (r *VerificationRepository) Reject(ctx context.Context, id, actor uuid.UUID, reason string, at time.Time) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE property_verifications SET
			status = 'rejected', verified_by = $2, rejection_reason = $3, badge_expires_at = NULL, updated_at = $4
		WHERE id = $1 AND status <> 'rejected'
	`, id, actor, reason, at)
	if err != nil {
		return false, fmt.Errorf("verification repository: reject %w", err)
	}
	return ok, nil
}
