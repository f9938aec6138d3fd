package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
)

// Actor - пользователь, от имени которого выполняется операция.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Capabilities - отношения пользователя к договору или спору.
// Права проверяются по этим флагам, а не по строке роли.
type Capabilities struct {
	Tenant     bool
	Landlord   bool
	Admin      bool
	Raiser     bool
	Respondent bool
}

// ContractCapabilities вычисляет отношения пользователя к договору.
func ContractCapabilities(a Actor, c *models.Contract) Capabilities {
	return Capabilities{
		Tenant:   a.UserID == c.TenantID,
		Landlord: a.UserID == c.LandlordID,
		Admin:    a.IsAdmin(),
	}
}

// DisputeCapabilities дополняет отношения к договору ролями в споре.
func DisputeCapabilities(a Actor, c *models.Contract, d *models.Dispute) Capabilities {
	caps := ContractCapabilities(a, c)
	caps.Raiser = a.UserID == d.RaisedBy
	caps.Respondent = a.UserID == d.RespondentID
	return caps
}

// Party возвращает сторону договора. Администратор стороной не является.
func (c Capabilities) Party() (models.Party, bool) {
	switch {
	case c.Tenant:
		return models.PartyTenant, true
	case c.Landlord:
		return models.PartyLandlord, true
	}
	return "", false
}

// CanView - пользователь имеет хоть какое-то отношение к сущности.
func (c Capabilities) CanView() bool {
	return c.Tenant || c.Landlord || c.Admin || c.Raiser || c.Respondent
}

// ContractReader - чтение договора по коду или идентификатору.
type ContractReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetByCode(ctx context.Context, code string) (*models.Contract, error)
}

// resolveContract ищет договор сначала по коду, затем по UUID.
func resolveContract(ctx context.Context, r ContractReader, ref string) (*models.Contract, error) {
	c, err := r.GetByCode(ctx, ref)
	if err == nil {
		return c, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	id, parseErr := uuid.Parse(ref)
	if parseErr != nil {
		return nil, apperror.ErrContractNotFound
	}
	return r.GetByID(ctx, id)
}

// contractForActor находит договор и проверяет, что пользователь может его видеть.
// Существующий, но чужой договор даёт Forbidden, а не NotFound.
func contractForActor(ctx context.Context, r ContractReader, actor Actor, ref string) (*models.Contract, Capabilities, error) {
	c, err := resolveContract(ctx, r, ref)
	if err != nil {
		return nil, Capabilities{}, err
	}
	caps := ContractCapabilities(actor, c)
	if !caps.CanView() {
		return nil, caps, apperror.ErrForbidden
	}
	return c, caps, nil
}
