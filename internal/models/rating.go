package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// RentalRating - взаимные оценки сторон по договору. Каждая сторона оценивает один раз.
type RentalRating struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ContractID uuid.UUID `db:"contract_id" json:"contract_id"`
	TenantID   uuid.UUID `db:"tenant_id" json:"tenant_id"`
	LandlordID uuid.UUID `db:"landlord_id" json:"landlord_id"`

	// Оценка арендодателя арендатором.
	TenantOverall *int          `db:"tenant_overall" json:"tenant_overall,omitempty"`
	TenantComment *string       `db:"tenant_comment" json:"tenant_comment,omitempty"`
	TenantDetails RatingDetails `db:"tenant_details" json:"tenant_details,omitempty"`
	TenantRatedAt *time.Time    `db:"tenant_rated_at" json:"tenant_rated_at,omitempty"`

	// Оценка арендатора арендодателем.
	LandlordOverall *int          `db:"landlord_overall" json:"landlord_overall,omitempty"`
	LandlordComment *string       `db:"landlord_comment" json:"landlord_comment,omitempty"`
	LandlordDetails RatingDetails `db:"landlord_details" json:"landlord_details,omitempty"`
	LandlordRatedAt *time.Time    `db:"landlord_rated_at" json:"landlord_rated_at,omitempty"`

	BothRated   bool       `db:"both_rated" json:"both_rated"`
	BothRatedAt *time.Time `db:"both_rated_at" json:"both_rated_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// HasBothSides - обе оценки уже получены.
func (r *RentalRating) HasBothSides() bool {
	return r.TenantOverall != nil && r.LandlordOverall != nil
}

// RatingDetails - оценки по отдельным критериям (коммуникация, чистота и т.д.).
type RatingDetails map[string]int

func (d RatingDetails) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	return valueJSON(map[string]int(d))
}

func (d *RatingDetails) Scan(src any) error {
	m := make(map[string]int)
	if err := scanJSON(src, &m); err != nil {
		return err
	}
	*d = m
	return nil
}

// RatingSubmission - оценка одной стороны.
type RatingSubmission struct {
	Overall int
	Comment *string
	Details RatingDetails
	RatedAt time.Time
}
