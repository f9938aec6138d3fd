package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// ListingRepository пишет метаданные доступности и бейдж в таблицу объектов.
// Сами объекты принадлежат сервису каталога.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository создаёт экземпляр репозитория.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// GetByID возвращает объект по идентификатору.
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := common.GetOne[models.Listing](ctx, r.db, apperror.ErrListingNotFound, `SELECT * FROM listings WHERE id = $1`, id)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("listing repository: get by id %w", err)
	}
	return listing, err
}

// LockChange описывает новое состояние блокировки.
type LockChange struct {
	Owner       models.LockOwner
	Status      valueobject.AvailabilityStatus
	Reason      string
	Description string
	At          time.Time
}

// Lock занимает объект. Условие WHERE пропускает только свободный объект
// или объект, который уже держит та же бронь или тот же договор.
func (r *ListingRepository) Lock(ctx context.Context, id uuid.UUID, change LockChange) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE listings SET
			availability_status = $2,
			lock_reason = $3,
			lock_description = $4,
			locked_at = $5,
			lock_booking_id = COALESCE($6::uuid, lock_booking_id),
			lock_contract_id = COALESCE($7::uuid, lock_contract_id),
			released_at = NULL,
			release_reason = NULL,
			updated_at = $5
		WHERE id = $1 AND (
			availability_status = 'available'
			OR ($6::uuid IS NOT NULL AND lock_booking_id = $6::uuid)
			OR ($7::uuid IS NOT NULL AND lock_contract_id = $7::uuid)
		)
	`, id, change.Status, change.Reason, change.Description, change.At, change.Owner.BookingID, change.Owner.ContractID)
	if err != nil {
		return false, fmt.Errorf("listing repository: lock %w", err)
	}
	return ok, nil
}

// Release освобождает объект. Без force снимается только блокировка того же владельца:
// договор сравнивается по lock_contract_id, бронь - только если договора ещё нет.
func (r *ListingRepository) Release(ctx context.Context, id uuid.UUID, owner models.LockOwner, reason, description string, force bool, at time.Time) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE listings SET
			availability_status = 'available',
			lock_reason = NULL,
			lock_description = $3,
			locked_at = NULL,
			lock_booking_id = NULL,
			lock_contract_id = NULL,
			released_at = $4,
			release_reason = $2,
			updated_at = $4
		WHERE id = $1 AND (
			$5
			OR ($6::uuid IS NOT NULL AND lock_contract_id = $6::uuid)
			OR ($7::uuid IS NOT NULL AND lock_contract_id IS NULL AND lock_booking_id = $7::uuid)
		)
	`, id, reason, description, at, force, owner.ContractID, owner.BookingID)
	if err != nil {
		return false, fmt.Errorf("listing repository: release %w", err)
	}
	return ok, nil
}

// SetBadge записывает результат проверки объекта.
func (r *ListingRepository) SetBadge(ctx context.Context, id uuid.UUID, verified bool, expiresAt *time.Time) error {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE listings SET verified_badge = $2, badge_expires_at = $3, updated_at = NOW() WHERE id = $1
	`, id, verified, expiresAt)
	if err != nil {
		return fmt.Errorf("listing repository: set badge %w", err)
	}
	if !ok {
		return apperror.ErrListingNotFound
	}
	return nil
}

// ClearExpiredBadges снимает просроченные бейджи и возвращает затронутые объекты.
func (r *ListingRepository) ClearExpiredBadges(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, `
		UPDATE listings SET verified_badge = FALSE, updated_at = $1
		WHERE verified_badge AND badge_expires_at IS NOT NULL AND badge_expires_at <= $1
		RETURNING id
	`, now); err != nil {
		return nil, fmt.Errorf("listing repository: clear expired badges %w", err)
	}
	return ids, nil
}
