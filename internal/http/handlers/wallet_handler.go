package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/rental-backend/internal/dto"
	"github.com/ignatzorin/rental-backend/internal/http/handlers/common"
	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/service"
)

// WalletService - график платежей по договору.
type WalletService interface {
	Get(ctx context.Context, actor service.Actor, ref string) (*models.Wallet, error)
	RecordPayment(ctx context.Context, actor service.Actor, ref string, in service.RecordPaymentInput) (*models.Wallet, error)
}

// WalletHandler обслуживает маршруты графика платежей.
type WalletHandler struct {
	wallets WalletService
}

// NewWalletHandler создаёт новый хэндлер.
func NewWalletHandler(wallets WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// GetWallet обрабатывает GET /contracts/:ref/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	wallet, err := h.wallets.Get(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, wallet)
}

// RecordPayment обрабатывает POST /contracts/:ref/wallet/payments.
func (h *WalletHandler) RecordPayment(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	var req dto.RecordPaymentRequest
	if !common.BindJSON(c, &req) {
		return
	}

	wallet, err := h.wallets.RecordPayment(c.Request.Context(), actor, c.Param("ref"), service.RecordPaymentInput{
		Month:     req.Month,
		Year:      req.Year,
		Status:    req.Status,
		Reference: req.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, wallet)
}
