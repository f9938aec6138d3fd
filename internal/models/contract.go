package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
)

// Contract описывает договор аренды с фиксированной ставкой.
type Contract struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	BookingID  uuid.UUID `db:"booking_id" json:"booking_id"`
	ListingID  uuid.UUID `db:"listing_id" json:"listing_id"`
	TenantID   uuid.UUID `db:"tenant_id" json:"tenant_id"`
	LandlordID uuid.UUID `db:"landlord_id" json:"landlord_id"`

	RentLockPlan       string    `db:"rent_lock_plan" json:"rent_lock_plan"`
	LockDuration       int       `db:"lock_duration" json:"lock_duration"`
	LockedRentAmount   float64   `db:"locked_rent_amount" json:"locked_rent_amount"`
	StartDate          time.Time `db:"start_date" json:"start_date"`
	EndDate            time.Time `db:"end_date" json:"end_date"`
	PaymentFrequency   string    `db:"payment_frequency" json:"payment_frequency"`
	DueDate            int       `db:"due_date" json:"due_date"`
	SecurityDeposit    float64   `db:"security_deposit" json:"security_deposit"`
	MaintenanceCharges float64   `db:"maintenance_charges" json:"maintenance_charges"`
	LateFeePercentage  float64   `db:"late_fee_percentage" json:"late_fee_percentage"`
	TermsDigest        string    `db:"terms_digest" json:"terms_digest"`

	TenantSigned      bool       `db:"tenant_signed" json:"tenant_signed"`
	TenantSignedAt    *time.Time `db:"tenant_signed_at" json:"tenant_signed_at,omitempty"`
	TenantIPAddress   *string    `db:"tenant_ip_address" json:"-"`
	TenantUserAgent   *string    `db:"tenant_user_agent" json:"-"`
	LandlordSigned    bool       `db:"landlord_signed" json:"landlord_signed"`
	LandlordSignedAt  *time.Time `db:"landlord_signed_at" json:"landlord_signed_at,omitempty"`
	LandlordIPAddress *string    `db:"landlord_ip_address" json:"-"`
	LandlordUserAgent *string    `db:"landlord_user_agent" json:"-"`

	Status            valueobject.ContractStatus `db:"status" json:"status"`
	TerminatedBy      *uuid.UUID                 `db:"terminated_by" json:"terminated_by,omitempty"`
	TerminationReason *string                    `db:"termination_reason" json:"termination_reason,omitempty"`
	ActivatedAt       *time.Time                 `db:"activated_at" json:"activated_at,omitempty"`
	TerminatedAt      *time.Time                 `db:"terminated_at" json:"terminated_at,omitempty"`
	CreatedAt         time.Time                  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time                  `db:"updated_at" json:"updated_at"`
}

// BothSigned - обе стороны поставили подпись.
func (c *Contract) BothSigned() bool {
	return c.TenantSigned && c.LandlordSigned
}

// SignedBy - сторона уже подписала договор.
func (c *Contract) SignedBy(party Party) bool {
	if party == PartyTenant {
		return c.TenantSigned
	}
	return c.LandlordSigned
}

// Signature - реквизиты подписи одной из сторон.
type Signature struct {
	SignedAt  time.Time
	IPAddress string
	UserAgent string
}

// Party - сторона договора.
type Party string

const (
	PartyTenant   Party = "tenant"
	PartyLandlord Party = "landlord"
)

// LockOwner - бронь или договор, удерживающие объект.
type LockOwner struct {
	BookingID  *uuid.UUID `json:"booking_id,omitempty"`
	ContractID *uuid.UUID `json:"contract_id,omitempty"`
}

// IsEmpty - владелец не указан.
func (o LockOwner) IsEmpty() bool {
	return o.BookingID == nil && o.ContractID == nil
}

// ContractOwner - владелец блокировки для договора.
func ContractOwner(c *Contract) LockOwner {
	bookingID, contractID := c.BookingID, c.ID
	return LockOwner{BookingID: &bookingID, ContractID: &contractID}
}
