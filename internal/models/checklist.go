package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MoveInOutChecklist - акт осмотра при въезде или выезде.
type MoveInOutChecklist struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	ContractID         uuid.UUID         `db:"contract_id" json:"contract_id"`
	Type               string            `db:"type" json:"type"`
	CreatedBy          uuid.UUID         `db:"created_by" json:"created_by"`
	Rooms              RoomConditions    `db:"rooms" json:"rooms"`
	Amenities          AmenityConditions `db:"amenities" json:"amenities"`
	Media              pq.StringArray    `db:"media" json:"media"`
	Notes              *string           `db:"notes" json:"notes,omitempty"`
	TenantApproved     bool              `db:"tenant_approved" json:"tenant_approved"`
	TenantApprovedAt   *time.Time        `db:"tenant_approved_at" json:"tenant_approved_at,omitempty"`
	LandlordApproved   bool              `db:"landlord_approved" json:"landlord_approved"`
	LandlordApprovedAt *time.Time        `db:"landlord_approved_at" json:"landlord_approved_at,omitempty"`
	AdminOverride      bool              `db:"admin_override" json:"admin_override"`
	Status             string            `db:"status" json:"status"`
	DamageAssessment   *DamageAssessment `db:"damage_assessment" json:"damage_assessment,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// RoomCondition - состояние одной комнаты.
type RoomCondition struct {
	Name              string  `json:"name"`
	Condition         string  `json:"condition"`
	DamageDescription string  `json:"damage_description,omitempty"`
	DamageCost        float64 `json:"damage_cost,omitempty"`
}

// AmenityCondition - наличие и состояние оборудования.
type AmenityCondition struct {
	Name      string `json:"name"`
	Present   bool   `json:"present"`
	Condition string `json:"condition,omitempty"`
}

type RoomConditions []RoomCondition

func (r RoomConditions) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	return valueJSON([]RoomCondition(r))
}

func (r *RoomConditions) Scan(src any) error {
	return scanJSON(src, (*[]RoomCondition)(r))
}

type AmenityConditions []AmenityCondition

func (a AmenityConditions) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return valueJSON([]AmenityCondition(a))
}

func (a *AmenityConditions) Scan(src any) error {
	return scanJSON(src, (*[]AmenityCondition)(a))
}

// DamageAssessment - итог сравнения актов въезда и выезда.
type DamageAssessment struct {
	Items            []DamageItem `json:"items"`
	TotalDamage      float64      `json:"total_damage"`
	SecurityDeposit  float64      `json:"security_deposit"`
	DepositDeduction float64      `json:"deposit_deduction"`
	RefundableAmount float64      `json:"refundable_amount"`
	AssessedBy       uuid.UUID    `json:"assessed_by"`
	AssessedAt       time.Time    `json:"assessed_at"`
}

// DamageItem - повреждение в конкретной комнате.
type DamageItem struct {
	Room        string  `json:"room"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
}

func (d *DamageAssessment) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return valueJSON(*d)
}

func (d *DamageAssessment) Scan(src any) error {
	return scanJSON(src, d)
}
