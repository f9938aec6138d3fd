package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/dto"
	"github.com/ignatzorin/rental-backend/internal/http/handlers/common"
	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/service"
	"github.com/ignatzorin/rental-backend/internal/validation"
)

// LoanService - займы арендатора по договору.
type LoanService interface {
	Apply(ctx context.Context, actor service.Actor, ref string, in service.ApplyLoanInput) (*models.RentalLoan, error)
	Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.RentalLoan, error)
	ListByContract(ctx context.Context, actor service.Actor, ref string) ([]models.RentalLoan, error)
	Approve(ctx context.Context, actor service.Actor, id uuid.UUID, disbursementDate *time.Time) (*models.RentalLoan, error)
	Disburse(ctx context.Context, actor service.Actor, id uuid.UUID, date *time.Time) (*models.RentalLoan, error)
	Reject(ctx context.Context, actor service.Actor, id uuid.UUID, reason string) (*models.RentalLoan, error)
	MarkDefaulted(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.RentalLoan, error)
	RecordEMIPayment(ctx context.Context, actor service.Actor, id uuid.UUID, installment int, status string) (*models.RentalLoan, error)
}

// LoanHandler обслуживает маршруты займов.
type LoanHandler struct {
	loans LoanService
}

// NewLoanHandler создаёт новый хэндлер.
func NewLoanHandler(loans LoanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

// ApplyLoan обрабатывает POST /contracts/:ref/loans.
func (h *LoanHandler) ApplyLoan(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	var req dto.ApplyLoanRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateOptionalText("цель займа", req.Purpose, validation.MaxCommentLength); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	loan, err := h.loans.Apply(c.Request.Context(), actor, c.Param("ref"), service.ApplyLoanInput{
		LoanType:     req.LoanType,
		Amount:       req.Amount,
		InterestRate: req.InterestRate,
		Tenure:       req.Tenure,
		Purpose:      req.Purpose,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, loan)
}

// ListContractLoans обрабатывает GET /contracts/:ref/loans.
func (h *LoanHandler) ListContractLoans(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	loans, err := h.loans.ListByContract(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loans)
}

// GetLoan обрабатывает GET /loans/:id.
func (h *LoanHandler) GetLoan(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	loan, err := h.loans.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loan)
}

// ApproveLoan обрабатывает POST /loans/:id/approve.
func (h *LoanHandler) ApproveLoan(c *gin.Context) {
	h.decide(c, h.loans.Approve)
}

// DisburseLoan обрабатывает POST /loans/:id/disburse.
func (h *LoanHandler) DisburseLoan(c *gin.Context) {
	h.decide(c, h.loans.Disburse)
}

func (h *LoanHandler) decide(c *gin.Context, op func(context.Context, service.Actor, uuid.UUID, *time.Time) (*models.RentalLoan, error)) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	// тело необязательно
	var req dto.LoanDecisionRequest
	if c.Request.ContentLength > 0 && !common.BindJSON(c, &req) {
		return
	}
	date, err := common.ParseDate(req.DisbursementDate)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	loan, err := op(c.Request.Context(), actor, id, date)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loan)
}

// RejectLoan обрабатывает POST /loans/:id/reject.
func (h *LoanHandler) RejectLoan(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req dto.RejectRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateReason(req.Reason); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	loan, err := h.loans.Reject(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loan)
}

// MarkLoanDefaulted обрабатывает POST /loans/:id/default.
func (h *LoanHandler) MarkLoanDefaulted(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	loan, err := h.loans.MarkDefaulted(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loan)
}

// RecordEMIPayment обрабатывает POST /loans/:id/payments.
func (h *LoanHandler) RecordEMIPayment(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req dto.RecordEMIPaymentRequest
	if !common.BindJSON(c, &req) {
		return
	}

	loan, err := h.loans.RecordEMIPayment(c.Request.Context(), actor, id, req.Installment, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loan)
}
