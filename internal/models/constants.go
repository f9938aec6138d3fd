package models

// Роли пользователей
const (
	RoleTenant   = "tenant"
	RoleLandlord = "landlord"
	RoleAdmin    = "admin"
)

// BookingStatus константы статусов бронирования
const (
	BookingStatusPending   = "pending"
	BookingStatusAccepted  = "accepted"
	BookingStatusRejected  = "rejected"
	BookingStatusCancelled = "cancelled"
)

// RentalStatus - зеркальный статус аренды на стороне бронирования
const (
	RentalStatusContractPending = "contract_pending"
	RentalStatusContractSigned  = "contract_signed"
	RentalStatusTerminated      = "terminated"
)

// PaymentFrequencyMonthly - график платежей строится помесячно.
const PaymentFrequencyMonthly = "monthly"

// Причины блокировки объекта
const (
	LockReasonBooking         = "booking"
	LockReasonContractPending = "contract_pending"
	LockReasonContractActive  = "contract_active"
	LockReasonAdmin           = "admin"
)

// Причины снятия блокировки
const (
	ReleaseReasonTerminated = "contract_terminated"
	ReleaseReasonRejected   = "contract_rejected"
	ReleaseReasonExpired    = "contract_expired"
	ReleaseReasonAdmin      = "admin"
)

// DisputeCategory константы категорий споров
const (
	DisputeCategoryPayment           = "payment"
	DisputeCategoryMaintenance       = "maintenance"
	DisputeCategoryDeposit           = "deposit"
	DisputeCategoryDamage            = "damage"
	DisputeCategoryContractViolation = "contract_violation"
	DisputeCategoryOther             = "other"
)

// Действия по итогам разрешения спора
const (
	DisputeActionNone              = "none"
	DisputeActionRefundDeposit     = "refund_deposit"
	DisputeActionPartialRefund     = "partial_refund"
	DisputeActionWarning           = "warning"
	DisputeActionTerminateContract = "terminate_contract"
)

// LoanType константы видов займов
const (
	LoanTypeRentAdvance     = "rent_advance"
	LoanTypeSecurityDeposit = "security_deposit"
	LoanTypeMovingExpenses  = "moving_expenses"
)

// ChecklistType константы видов чек-листов
const (
	ChecklistTypeMoveIn  = "move_in"
	ChecklistTypeMoveOut = "move_out"
)

// ChecklistStatus константы статусов чек-листа
const (
	ChecklistStatusDraft           = "draft"
	ChecklistStatusPendingApproval = "pending_approval"
	ChecklistStatusApproved        = "approved"
)

// VerificationStatus константы статусов проверки объекта
const (
	VerificationStatusPending    = "pending"
	VerificationStatusInProgress = "in_progress"
	VerificationStatusVerified   = "verified"
	VerificationStatusRejected   = "rejected"
)

// Документы, участвующие в проверке объекта
const (
	VerificationDocOwnership = "ownership"
	VerificationDocIdentity  = "identity"
	VerificationDocAddress   = "address"
)

// ValidDisputeCategories список валидных категорий споров
var ValidDisputeCategories = map[string]struct{}{
	DisputeCategoryPayment:           {},
	DisputeCategoryMaintenance:       {},
	DisputeCategoryDeposit:           {},
	DisputeCategoryDamage:            {},
	DisputeCategoryContractViolation: {},
	DisputeCategoryOther:             {},
}

// ValidDisputeActions список валидных действий по спору
var ValidDisputeActions = map[string]struct{}{
	DisputeActionNone:              {},
	DisputeActionRefundDeposit:     {},
	DisputeActionPartialRefund:     {},
	DisputeActionWarning:           {},
	DisputeActionTerminateContract: {},
}

// ValidLoanTypes список валидных видов займов
var ValidLoanTypes = map[string]struct{}{
	LoanTypeRentAdvance:     {},
	LoanTypeSecurityDeposit: {},
	LoanTypeMovingExpenses:  {},
}

// ValidChecklistTypes список валидных видов чек-листов
var ValidChecklistTypes = map[string]struct{}{
	ChecklistTypeMoveIn:  {},
	ChecklistTypeMoveOut: {},
}

// ValidRoles список ролей, которые могут быть в токене
var ValidRoles = map[string]struct{}{
	RoleTenant:   {},
	RoleLandlord: {},
	RoleAdmin:    {},
}
