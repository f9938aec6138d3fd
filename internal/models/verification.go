package models

import (
	"time"

	"github.com/google/uuid"
)

// PropertyVerification - проверка документов и осмотр объекта перед выдачей бейджа.
type PropertyVerification struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ListingID   uuid.UUID `db:"listing_id" json:"listing_id"`
	RequestedBy uuid.UUID `db:"requested_by" json:"requested_by"`

	OwnershipDocument *string `db:"ownership_document" json:"ownership_document,omitempty"`
	OwnershipVerified bool    `db:"ownership_verified" json:"ownership_verified"`
	IdentityDocument  *string `db:"identity_document" json:"identity_document,omitempty"`
	IdentityVerified  bool    `db:"identity_verified" json:"identity_verified"`
	AddressDocument   *string `db:"address_document" json:"address_document,omitempty"`
	AddressVerified   bool    `db:"address_verified" json:"address_verified"`

	InspectionCompleted bool    `db:"inspection_completed" json:"inspection_completed"`
	InspectionPassed    bool    `db:"inspection_passed" json:"inspection_passed"`
	InspectionNotes     *string `db:"inspection_notes" json:"inspection_notes,omitempty"`

	Status          string     `db:"status" json:"status"`
	VerifiedBy      *uuid.UUID `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt      *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	BadgeExpiresAt  *time.Time `db:"badge_expires_at" json:"badge_expires_at,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// AllChecksPassed - все три документа подтверждены, осмотр проведён и пройден.
func (v *PropertyVerification) AllChecksPassed() bool {
	return v.OwnershipVerified && v.IdentityVerified && v.AddressVerified &&
		v.InspectionCompleted && v.InspectionPassed
}

// IsFinal - проверка завершена одобрением или отказом.
func (v *PropertyVerification) IsFinal() bool {
	return v.Status == VerificationStatusVerified || v.Status == VerificationStatusRejected
}
