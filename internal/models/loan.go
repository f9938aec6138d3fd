package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
)

// RentalLoan - заём арендатора у партнёра под конкретный договор.
type RentalLoan struct {
	ID                    uuid.UUID              `db:"id" json:"id"`
	ContractID            uuid.UUID              `db:"contract_id" json:"contract_id"`
	BorrowerID            uuid.UUID              `db:"borrower_id" json:"borrower_id"`
	LoanType              string                 `db:"loan_type" json:"loan_type"`
	LoanAmount            float64                `db:"loan_amount" json:"loan_amount"`
	InterestRate          float64                `db:"interest_rate" json:"interest_rate"`
	Tenure                int                    `db:"tenure" json:"tenure"`
	EMIAmount             float64                `db:"emi_amount" json:"emi_amount"`
	Purpose               *string                `db:"purpose" json:"purpose,omitempty"`
	Status                valueobject.LoanStatus `db:"status" json:"status"`
	ApprovedBy            *uuid.UUID             `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt            *time.Time             `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason       *string                `db:"rejection_reason" json:"rejection_reason,omitempty"`
	DisbursementDate      *time.Time             `db:"disbursement_date" json:"disbursement_date,omitempty"`
	DisbursementReference *string                `db:"disbursement_reference" json:"disbursement_reference,omitempty"`
	RemindersSent         ReminderLog            `db:"reminders_sent" json:"reminders_sent"`
	CreatedAt             time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time              `db:"updated_at" json:"updated_at"`

	Schedule []EMIPeriod `db:"-" json:"schedule"`
}

// EMIPeriod - один аннуитетный платёж по займу.
type EMIPeriod struct {
	ID            uuid.UUID                 `db:"id" json:"id"`
	LoanID        uuid.UUID                 `db:"loan_id" json:"loan_id"`
	Installment   int                       `db:"installment" json:"installment"`
	DueDate       time.Time                 `db:"due_date" json:"due_date"`
	Amount        float64                   `db:"amount" json:"amount"`
	Status        valueobject.PaymentStatus `db:"status" json:"status"`
	PenaltyAmount float64                   `db:"penalty_amount" json:"penalty_amount"`
	PaidAt        *time.Time                `db:"paid_at" json:"paid_at,omitempty"`
}

// Key - ключ платежа в журнале напоминаний.
func (p EMIPeriod) Key() string {
	return ReminderKey(int(p.DueDate.Month()), p.DueDate.Year())
}
