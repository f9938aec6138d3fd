package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
)

// Listing описывает объект недвижимости вместе с метаданными доступности.
type Listing struct {
	ID      uuid.UUID `db:"id" json:"id"`
	OwnerID uuid.UUID `db:"owner_id" json:"owner_id"`
	Title   string    `db:"title" json:"title"`
	Address *string   `db:"address" json:"address,omitempty"`

	AvailabilityStatus valueobject.AvailabilityStatus `db:"availability_status" json:"availability_status"`
	LockReason         *string                        `db:"lock_reason" json:"lock_reason,omitempty"`
	LockDescription    *string                        `db:"lock_description" json:"lock_description,omitempty"`
	LockedAt           *time.Time                     `db:"locked_at" json:"locked_at,omitempty"`
	LockBookingID      *uuid.UUID                     `db:"lock_booking_id" json:"booking_id,omitempty"`
	LockContractID     *uuid.UUID                     `db:"lock_contract_id" json:"contract_id,omitempty"`
	ReleasedAt         *time.Time                     `db:"released_at" json:"released_at,omitempty"`
	ReleaseReason      *string                        `db:"release_reason" json:"release_reason,omitempty"`

	VerifiedBadge  bool       `db:"verified_badge" json:"verified_badge"`
	BadgeExpiresAt *time.Time `db:"badge_expires_at" json:"badge_expires_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ActiveOwner возвращает текущего владельца блокировки: договор, а при его отсутствии бронь.
func (l *Listing) ActiveOwner() *uuid.UUID {
	if l.LockContractID != nil {
		return l.LockContractID
	}
	return l.LockBookingID
}

// OwnedBy - удерживает ли объект указанная бронь или договор.
func (l *Listing) OwnedBy(owner LockOwner) bool {
	if l.LockContractID != nil {
		return owner.ContractID != nil && *owner.ContractID == *l.LockContractID
	}
	if l.LockBookingID != nil {
		return owner.BookingID != nil && *owner.BookingID == *l.LockBookingID
	}
	return false
}

// Booking - зеркало бронирования, принадлежащего внешнему сервису бронирований.
type Booking struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ListingID    uuid.UUID `db:"listing_id" json:"listing_id"`
	BuyerID      uuid.UUID `db:"buyer_id" json:"buyer_id"`
	SellerID     uuid.UUID `db:"seller_id" json:"seller_id"`
	Status       string    `db:"status" json:"status"`
	RentalStatus *string   `db:"rental_status" json:"rental_status,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
