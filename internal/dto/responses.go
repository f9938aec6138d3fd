package dto

import (
	"time"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/service"
)

// ContractResponse - договор вместе с правами текущего пользователя на него.
type ContractResponse struct {
	*models.Contract
	Permissions ContractPermissions `json:"permissions"`
}

// ContractPermissions - что текущий пользователь может сделать с договором.
type ContractPermissions struct {
	IsTenant   bool `json:"is_tenant"`
	IsLandlord bool `json:"is_landlord"`
	IsAdmin    bool `json:"is_admin"`
	CanSign    bool `json:"can_sign"`
}

// NewContractResponse собирает ответ по договору для пользователя.
func NewContractResponse(actor service.Actor, c *models.Contract) *ContractResponse {
	caps := service.ContractCapabilities(actor, c)
	party, isParty := caps.Party()
	canSign := isParty && c.Status == valueobject.ContractStatusPendingSignature && !c.SignedBy(party)
	return &ContractResponse{
		Contract: c,
		Permissions: ContractPermissions{
			IsTenant:   caps.Tenant,
			IsLandlord: caps.Landlord,
			IsAdmin:    caps.Admin,
			CanSign:    canSign,
		},
	}
}

// UnreadCountResponse - количество непрочитанных уведомлений.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MediaUploadResponse - сохранённое вложение.
type MediaUploadResponse struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
	MIME string `json:"mime"`
}

// TokenResponse - выпущенный access токен.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// HealthResponse - состояние сервиса и пула соединений.
type HealthResponse struct {
	Status          string `json:"status"`
	Database        string `json:"database"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
}
