package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// BookingRepository работает с зеркалом бронирований.
type BookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking, err := common.GetOne[models.Booking](ctx, r.db, apperror.ErrBookingNotFound, `SELECT * FROM bookings WHERE id = $1`, id)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("booking repository: get by id %w", err)
	}
	return booking, err
}

// UpdateStatus фиксирует статус, пришедший от сервиса бронирований.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	ok, err := common.ExecCAS(ctx, r.db, `UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("booking repository: update status %w", err)
	}
	if !ok {
		return apperror.ErrBookingNotFound
	}
	return nil
}

// UpdateRentalStatus синхронизирует зеркальный статус аренды.
// cancelIfAccepted дополнительно отменяет принятую бронь.
func (r *BookingRepository) UpdateRentalStatus(ctx context.Context, id uuid.UUID, rentalStatus string, cancelIfAccepted bool) error {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE bookings SET
			rental_status = $2,
			status = CASE WHEN $3 AND status = 'accepted' THEN 'cancelled' ELSE status END,
			updated_at = NOW()
		WHERE id = $1
	`, id, rentalStatus, cancelIfAccepted)
	if err != nil {
		return fmt.Errorf("booking repository: update rental status %w", err)
	}
	if !ok {
		return apperror.ErrBookingNotFound
	}
	return nil
}
