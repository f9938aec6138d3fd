package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/dto"
	"github.com/ignatzorin/rental-backend/internal/http/handlers/common"
	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/service"
	"github.com/ignatzorin/rental-backend/internal/validation"
)

// ContractService - операции над договорами, которые нужны хэндлеру.
type ContractService interface {
	Create(ctx context.Context, actor service.Actor, in service.CreateContractInput) (*models.Contract, error)
	Get(ctx context.Context, actor service.Actor, ref string) (*models.Contract, error)
	List(ctx context.Context, actor service.Actor, limit, offset int) ([]models.Contract, error)
	Sign(ctx context.Context, actor service.Actor, ref string, in service.SignInput) (*models.Contract, error)
	SetStatus(ctx context.Context, actor service.Actor, ref string, in service.StatusInput) (*models.Contract, error)
	DocumentBundle(ctx context.Context, actor service.Actor, ref string) (*service.ContractBundle, error)
	OnBookingRejected(ctx context.Context, bookingID uuid.UUID) (*service.CascadeResult, error)
}

// ContractHandler обслуживает маршруты договоров. Договор адресуется
// параметром :ref - UUID или человекочитаемым кодом.
type ContractHandler struct {
	contracts ContractService
}

// NewContractHandler создаёт новый хэндлер.
func NewContractHandler(contracts ContractService) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// CreateContract обрабатывает POST /contracts.
func (h *ContractHandler) CreateContract(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	var req dto.CreateContractRequest
	if !common.BindJSON(c, &req) {
		return
	}

	start, err := common.ParseDate(req.StartDate)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	end, err := common.ParseDate(req.EndDate)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.Create(c.Request.Context(), actor, service.CreateContractInput{
		BookingID:          req.BookingID,
		RentLockPlan:       req.RentLockPlan,
		LockDuration:       req.LockDuration,
		LockedRentAmount:   req.LockedRentAmount,
		StartDate:          *start,
		EndDate:            end,
		DueDate:            req.DueDate,
		SecurityDeposit:    req.SecurityDeposit,
		MaintenanceCharges: req.MaintenanceCharges,
		LateFeePercentage:  req.LateFeePercentage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewContractResponse(actor, contract))
}

// GetContract обрабатывает GET /contracts/:ref.
func (h *ContractHandler) GetContract(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	contract, err := h.contracts.Get(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.NewContractResponse(actor, contract))
}

// ListContracts обрабатывает GET /contracts.
func (h *ContractHandler) ListContracts(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	contracts, err := h.contracts.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]*dto.ContractResponse, 0, len(contracts))
	for i := range contracts {
		items = append(items, dto.NewContractResponse(actor, &contracts[i]))
	}
	response.Paginated(c, items, len(items), limit, offset)
}

// SignContract обрабатывает POST /contracts/:ref/sign.
// IP и User-Agent подписанта берутся из запроса.
func (h *ContractHandler) SignContract(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	contract, err := h.contracts.Sign(c.Request.Context(), actor, c.Param("ref"), service.SignInput{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.NewContractResponse(actor, contract))
}

// SetContractStatus обрабатывает PATCH /contracts/:ref/status.
func (h *ContractHandler) SetContractStatus(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	var req dto.SetContractStatusRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateReason(req.Reason); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.SetStatus(c.Request.Context(), actor, c.Param("ref"), service.StatusInput{
		Status: req.Status,
		Reason: req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.NewContractResponse(actor, contract))
}

// GetDocumentBundle обрабатывает GET /contracts/:ref/document.
func (h *ContractHandler) GetDocumentBundle(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	bundle, err := h.contracts.DocumentBundle(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, bundle)
}

// BookingRejected обрабатывает POST /internal/bookings/rejected - уведомление
// модуля бронирований об отклонении или отмене брони.
func (h *ContractHandler) BookingRejected(c *gin.Context) {
	var req dto.BookingRejectedRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.contracts.OnBookingRejected(c.Request.Context(), req.BookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
