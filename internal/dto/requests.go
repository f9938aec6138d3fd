package dto

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/models"
)

// CreateContractRequest - условия договора по принятой брони. Даты в формате ГГГГ-ММ-ДД.
type CreateContractRequest struct {
	BookingID          uuid.UUID `json:"booking_id" binding:"required"`
	RentLockPlan       string    `json:"rent_lock_plan" binding:"required"`
	LockDuration       int       `json:"lock_duration" binding:"required,min=1,max=120"`
	LockedRentAmount   float64   `json:"locked_rent_amount" binding:"required,gt=0"`
	StartDate          string    `json:"start_date" binding:"required"`
	EndDate            string    `json:"end_date"`
	DueDate            int       `json:"due_date" binding:"required,min=1,max=31"`
	SecurityDeposit    float64   `json:"security_deposit" binding:"min=0"`
	MaintenanceCharges float64   `json:"maintenance_charges" binding:"min=0"`
	LateFeePercentage  float64   `json:"late_fee_percentage" binding:"min=0,max=100"`
}

// SetContractStatusRequest - административная смена статуса договора.
type SetContractStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// BookingRejectedRequest - вебхук модуля бронирований об отклонении брони.
type BookingRejectedRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}

// RecordPaymentRequest - подтверждение оплаты периода от платёжного провайдера.
type RecordPaymentRequest struct {
	Month     int     `json:"month" binding:"required,min=1,max=12"`
	Year      int     `json:"year" binding:"required,min=2000"`
	Status    string  `json:"status" binding:"required"`
	Reference *string `json:"reference"`
}

// ApplyLoanRequest - заявка на заём.
type ApplyLoanRequest struct {
	LoanType     string   `json:"loan_type" binding:"required"`
	Amount       float64  `json:"amount" binding:"required,gt=0"`
	InterestRate float64  `json:"interest_rate" binding:"min=0"`
	Tenure       int      `json:"tenure" binding:"required,min=1,max=360"`
	Purpose      *string  `json:"purpose"`
}

// LoanDecisionRequest - одобрение или выдача займа. Дата выдачи необязательна.
type LoanDecisionRequest struct {
	DisbursementDate string `json:"disbursement_date"`
}

// RejectRequest - отказ с причиной.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RecordEMIPaymentRequest - статус платежа по займу.
type RecordEMIPaymentRequest struct {
	Installment int    `json:"installment" binding:"required,min=1"`
	Status      string `json:"status" binding:"required"`
}

// RaiseDisputeRequest - обращение стороны договора.
type RaiseDisputeRequest struct {
	Category    string   `json:"category" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Evidence    []string `json:"evidence"`
}

// DisputeMessageRequest - сообщение в споре.
type DisputeMessageRequest struct {
	Message     string   `json:"message" binding:"required"`
	Attachments []string `json:"attachments"`
}

// AddEvidenceRequest - дополнительные доказательства.
type AddEvidenceRequest struct {
	Evidence []string `json:"evidence" binding:"required,min=1"`
}

// EscalateDisputeRequest - эскалация спора стороной.
type EscalateDisputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ResolveDisputeRequest - решение администратора.
type ResolveDisputeRequest struct {
	Decision string   `json:"decision" binding:"required"`
	Action   string   `json:"action" binding:"required"`
	Amount   *float64 `json:"amount"`
}

// ChecklistRequest - акт осмотра. Тип обязателен только при создании.
type ChecklistRequest struct {
	Type      string                   `json:"type"`
	Rooms     models.RoomConditions    `json:"rooms"`
	Amenities models.AmenityConditions `json:"amenities"`
	Media     []string                 `json:"media"`
	Notes     *string                  `json:"notes"`
}

// RatingRequest - оценка аренды.
type RatingRequest struct {
	Overall int            `json:"overall" binding:"required,min=1,max=5"`
	Comment *string        `json:"comment"`
	Details map[string]int `json:"details"`
}

// VerificationRequest - заявка владельца на проверку объекта.
type VerificationRequest struct {
	ListingID uuid.UUID `json:"listing_id" binding:"required"`
}

// VerificationDocumentRequest - результат проверки документа.
type VerificationDocumentRequest struct {
	Kind     string  `json:"kind" binding:"required"`
	Document *string `json:"document"`
	Verified bool    `json:"verified"`
}

// InspectionRequest - результат осмотра объекта.
type InspectionRequest struct {
	Completed bool    `json:"completed"`
	Passed    bool    `json:"passed"`
	Notes     *string `json:"notes"`
}

// IssueTokenRequest - выпуск токена для служебных клиентов.
type IssueTokenRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Role   string    `json:"role" binding:"required"`
}
