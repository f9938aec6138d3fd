package valueobject

import "github.com/ignatzorin/rental-backend/internal/pkg/apperror"

type ContractStatus string

const (
	ContractStatusDraft            ContractStatus = "draft"
	ContractStatusPendingSignature ContractStatus = "pending_signature"
	ContractStatusActive           ContractStatus = "active"
	ContractStatusExpired          ContractStatus = "expired"
	ContractStatusTerminated       ContractStatus = "terminated"
	ContractStatusRejected         ContractStatus = "rejected"
)

func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractStatusDraft, ContractStatusPendingSignature, ContractStatusActive,
		ContractStatusExpired, ContractStatusTerminated, ContractStatusRejected:
		return true
	}
	return false
}

func (s ContractStatus) IsTerminal() bool {
	switch s {
	case ContractStatusExpired, ContractStatusTerminated, ContractStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo описывает штатный жизненный цикл договора.
// Административное изменение статуса этот граф обходит (см. ContractService.SetStatus).
func (s ContractStatus) CanTransitionTo(newStatus ContractStatus) bool {
	transitions := map[ContractStatus][]ContractStatus{
		ContractStatusDraft:            {ContractStatusPendingSignature, ContractStatusRejected},
		ContractStatusPendingSignature: {ContractStatusActive, ContractStatusRejected, ContractStatusTerminated},
		ContractStatusActive:           {ContractStatusExpired, ContractStatusTerminated},
		ContractStatusExpired:          {},
		ContractStatusTerminated:       {},
		ContractStatusRejected:         {},
	}

	for _, status := range transitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewContractStatus(status string) (ContractStatus, error) {
	s := ContractStatus(status)
	if !s.IsValid() {
		return "", apperror.InvalidTransition("некорректный статус договора", status)
	}
	return s, nil
}

// AvailabilityStatus - статус доступности объекта недвижимости.
type AvailabilityStatus string

const (
	AvailabilityAvailable     AvailabilityStatus = "available"
	AvailabilityReserved      AvailabilityStatus = "reserved"
	AvailabilityUnderContract AvailabilityStatus = "under_contract"
	AvailabilityRented        AvailabilityStatus = "rented"
	AvailabilitySold          AvailabilityStatus = "sold"
	AvailabilitySuspended     AvailabilityStatus = "suspended"
)

func (s AvailabilityStatus) IsValid() bool {
	switch s {
	case AvailabilityAvailable, AvailabilityReserved, AvailabilityUnderContract,
		AvailabilityRented, AvailabilitySold, AvailabilitySuspended:
		return true
	}
	return false
}

// IsBookable - можно ли начинать по объекту новую сделку.
func (s AvailabilityStatus) IsBookable() bool {
	return s == AvailabilityAvailable
}

// RequiresOwner - статусы, которые держит конкретная бронь или договор.
func (s AvailabilityStatus) RequiresOwner() bool {
	switch s {
	case AvailabilityReserved, AvailabilityUnderContract, AvailabilityRented:
		return true
	}
	return false
}

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusEscalated   DisputeStatus = "escalated"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusClosed      DisputeStatus = "closed"
)

func (s DisputeStatus) IsTerminal() bool {
	return s == DisputeStatusResolved || s == DisputeStatusClosed
}

func (s DisputeStatus) CanTransitionTo(newStatus DisputeStatus) bool {
	transitions := map[DisputeStatus][]DisputeStatus{
		DisputeStatusOpen:        {DisputeStatusUnderReview, DisputeStatusEscalated, DisputeStatusResolved, DisputeStatusClosed},
		DisputeStatusUnderReview: {DisputeStatusEscalated, DisputeStatusResolved, DisputeStatusClosed},
		DisputeStatusEscalated:   {DisputeStatusResolved, DisputeStatusClosed},
	}

	for _, status := range transitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusDisbursed LoanStatus = "disbursed"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusRepaid    LoanStatus = "repaid"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

func (s LoanStatus) IsTerminal() bool {
	switch s {
	case LoanStatusRejected, LoanStatusRepaid, LoanStatusDefaulted:
		return true
	}
	return false
}

func (s LoanStatus) CanTransitionTo(newStatus LoanStatus) bool {
	transitions := map[LoanStatus][]LoanStatus{
		LoanStatusPending:   {LoanStatusApproved, LoanStatusRejected, LoanStatusDisbursed},
		LoanStatusApproved:  {LoanStatusDisbursed},
		LoanStatusDisbursed: {LoanStatusRepaid, LoanStatusDefaulted},
	}

	for _, status := range transitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// PaymentStatus - статус отдельного платёжного периода (аренда или EMI).
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusScheduled  PaymentStatus = "scheduled"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusOverdue    PaymentStatus = "overdue"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusScheduled, PaymentStatusProcessing,
		PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusOverdue:
		return true
	}
	return false
}

// IsOutstanding - период ещё ждёт оплаты и участвует в напоминаниях.
// Неудачная попытка оплаты не снимает долг.
func (s PaymentStatus) IsOutstanding() bool {
	return s == PaymentStatusPending || s == PaymentStatusOverdue || s == PaymentStatusFailed
}

// CanAccruePenalty - период может перейти в overdue с начислением пени.
func (s PaymentStatus) CanAccruePenalty() bool {
	return s == PaymentStatusPending || s == PaymentStatusFailed
}
