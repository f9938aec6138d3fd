package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
)

// Wallet - календарь ежемесячных платежей по договору. Создаётся один раз.
type Wallet struct {
	ID                uuid.UUID   `db:"id" json:"id"`
	ContractID        uuid.UUID   `db:"contract_id" json:"contract_id"`
	TenantID          uuid.UUID   `db:"tenant_id" json:"tenant_id"`
	LandlordID        uuid.UUID   `db:"landlord_id" json:"landlord_id"`
	ListingID         uuid.UUID   `db:"listing_id" json:"listing_id"`
	LateFeePercentage float64     `db:"late_fee_percentage" json:"late_fee_percentage"`
	RemindersSent     ReminderLog `db:"reminders_sent" json:"reminders_sent"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`

	Periods []PaymentPeriod `db:"-" json:"periods"`
}

// PaymentPeriod - обязательство за один календарный месяц.
type PaymentPeriod struct {
	ID               uuid.UUID                 `db:"id" json:"id"`
	WalletID         uuid.UUID                 `db:"wallet_id" json:"wallet_id"`
	Month            int                       `db:"month" json:"month"`
	Year             int                       `db:"year" json:"year"`
	Amount           float64                   `db:"amount" json:"amount"`
	DueDate          time.Time                 `db:"due_date" json:"due_date"`
	Status           valueobject.PaymentStatus `db:"status" json:"status"`
	PenaltyAmount    float64                   `db:"penalty_amount" json:"penalty_amount"`
	PaidAt           *time.Time                `db:"paid_at" json:"paid_at,omitempty"`
	PaymentReference *string                   `db:"payment_reference" json:"payment_reference,omitempty"`
}

// Key - ключ периода в журнале напоминаний.
func (p PaymentPeriod) Key() string {
	return ReminderKey(p.Month, p.Year)
}

// OutboxEvent - отложенный побочный эффект, который доставляет диспетчер.
type OutboxEvent struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Topic       string          `db:"topic" json:"topic"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Attempts    int             `db:"attempts" json:"attempts"`
	LastError   *string         `db:"last_error" json:"last_error,omitempty"`
	AvailableAt time.Time       `db:"available_at" json:"available_at"`
	ProcessedAt *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
