package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository"
)

// ListingStore - доступ к метаданным доступности объекта.
type ListingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Lock(ctx context.Context, id uuid.UUID, change repository.LockChange) (bool, error)
	Release(ctx context.Context, id uuid.UUID, owner models.LockOwner, reason, description string, force bool, at time.Time) (bool, error)
}

// ErrLockNotOwned - снять чужую блокировку без force нельзя.
var ErrLockNotOwned = apperror.New(apperror.ErrCodeConflict, "объект заблокирован другой сделкой")

// LockService не даёт закрепить объект за двумя сделками одновременно.
type LockService struct {
	listings ListingStore
	now      func() time.Time
}

func NewLockService(listings ListingStore) *LockService {
	return &LockService{listings: listings, now: time.Now}
}

// Lock занимает объект за бронью или договором. Проходит, только если объект свободен
// или уже удерживается тем же владельцем.
func (s *LockService) Lock(ctx context.Context, listingID uuid.UUID, owner models.LockOwner, status valueobject.AvailabilityStatus, reason string) error {
	if !status.IsValid() || status == valueobject.AvailabilityAvailable {
		return apperror.InvalidTransition("некорректный статус блокировки", string(status))
	}
	if status.RequiresOwner() && owner.IsEmpty() {
		return apperror.Validation("для этого статуса нужна бронь или договор")
	}

	ok, err := s.listings.Lock(ctx, listingID, repository.LockChange{
		Owner:       owner,
		Status:      status,
		Reason:      reason,
		Description: describeLock(status, reason),
		At:          s.now(),
	})
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	conflict := apperror.Conflict("объект уже занят другой сделкой", string(listing.AvailabilityStatus))
	if holder := listing.ActiveOwner(); holder != nil {
		conflict = conflict.With("owner_id", holder.String())
	}
	return conflict
}

// Release освобождает объект. Без force снимает только блокировку того же владельца;
// освобождение уже свободного объекта ничего не делает.
func (s *LockService) Release(ctx context.Context, listingID uuid.UUID, owner models.LockOwner, reason string, force bool) error {
	ok, err := s.listings.Release(ctx, listingID, owner, reason, describeRelease(reason), force, s.now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.AvailabilityStatus == valueobject.AvailabilityAvailable {
		return nil
	}
	return ErrLockNotOwned.With("current_status", string(listing.AvailabilityStatus))
}

// IsBookable - можно ли начать по объекту новую сделку.
func (s *LockService) IsBookable(ctx context.Context, listingID uuid.UUID) (bool, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return false, err
	}
	return listing.AvailabilityStatus.IsBookable(), nil
}

// Availability возвращает объект с метаданными блокировки.
func (s *LockService) Availability(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	return s.listings.GetByID(ctx, listingID)
}

// describeLock - текст для публичной карточки объекта.
func describeLock(status valueobject.AvailabilityStatus, reason string) string {
	switch status {
	case valueobject.AvailabilityReserved:
		return "Объект забронирован, идёт согласование сделки"
	case valueobject.AvailabilityUnderContract:
		return "Объект закреплён за договором, ожидаются подписи сторон"
	case valueobject.AvailabilityRented:
		return "Объект сдан в аренду по действующему договору"
	case valueobject.AvailabilitySold:
		return "Объект продан"
	case valueobject.AvailabilitySuspended:
		return "Показ объекта приостановлен администратором"
	}
	return fmt.Sprintf("Объект недоступен (%s)", reason)
}

func describeRelease(reason string) string {
	switch reason {
	case models.ReleaseReasonTerminated:
		return "Объект снова доступен: договор расторгнут"
	case models.ReleaseReasonRejected:
		return "Объект снова доступен: договор отклонён"
	case models.ReleaseReasonExpired:
		return "Объект снова доступен: срок договора истёк"
	}
	return "Объект снова доступен для бронирования"
}
