package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/service"
)

type mockContractService struct {
	mock.Mock
}

func (m *mockContractService) Create(ctx context.Context, actor service.Actor, in service.CreateContractInput) (*models.Contract, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractService) Get(ctx context.Context, actor service.Actor, ref string) (*models.Contract, error) {
	args := m.Called(ctx, actor, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractService) List(ctx context.Context, actor service.Actor, limit, offset int) ([]models.Contract, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Contract), args.Error(1)
}

func (m *mockContractService) Sign(ctx context.Context, actor service.Actor, ref string, in service.SignInput) (*models.Contract, error) {
	args := m.Called(ctx, actor, ref, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractService) SetStatus(ctx context.Context, actor service.Actor, ref string, in service.StatusInput) (*models.Contract, error) {
	args := m.Called(ctx, actor, ref, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractService) DocumentBundle(ctx context.Context, actor service.Actor, ref string) (*service.ContractBundle, error) {
	args := m.Called(ctx, actor, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ContractBundle), args.Error(1)
}

func (m *mockContractService) OnBookingRejected(ctx context.Context, bookingID uuid.UUID) (*service.CascadeResult, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CascadeResult), args.Error(1)
}

func pendingContract(tenant, landlord uuid.UUID) *models.Contract {
	return &models.Contract{
		ID:         uuid.New(),
		Code:       "RLC-202610-K7QX2M",
		TenantID:   tenant,
		LandlordID: landlord,
		Status:     valueobject.ContractStatusPendingSignature,
	}
}

func TestContractHandler_GetContract_Unauthorized(t *testing.T) {
	r := newTestRouter(nil)
	handler := NewContractHandler(nil)
	r.GET("/contracts/:ref", handler.GetContract)

	w, env := doJSON(t, r, http.MethodGet, "/contracts/RLC-202610-K7QX2M", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestContractHandler_CreateContract(t *testing.T) {
	tenant := service.Actor{UserID: uuid.New(), Role: models.RoleTenant}
	landlord := uuid.New()
	svc := new(mockContractService)
	r := newTestRouter(&tenant)
	r.POST("/contracts", NewContractHandler(svc).CreateContract)

	bookingID := uuid.New()
	svc.On("Create", mock.Anything, tenant, mock.MatchedBy(func(in service.CreateContractInput) bool {
		return in.BookingID == bookingID &&
			in.StartDate.Equal(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)) &&
			in.EndDate == nil && in.DueDate == 5
	})).Return(pendingContract(tenant.UserID, landlord), nil).Once()

	w, env := doJSON(t, r, http.MethodPost, "/contracts", map[string]any{
		"booking_id":         bookingID,
		"rent_lock_plan":     "12m",
		"lock_duration":      12,
		"locked_rent_amount": 45000,
		"start_date":         "2026-01-01",
		"due_date":           5,
		"security_deposit":   90000,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var data struct {
		Code        string `json:"code"`
		Permissions struct {
			IsTenant bool `json:"is_tenant"`
			CanSign  bool `json:"can_sign"`
		} `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "RLC-202610-K7QX2M", data.Code)
	assert.True(t, data.Permissions.IsTenant)
	assert.True(t, data.Permissions.CanSign)
	svc.AssertExpectations(t)
}

func TestContractHandler_CreateContract_BadDate(t *testing.T) {
	tenant := service.Actor{UserID: uuid.New(), Role: models.RoleTenant}
	svc := new(mockContractService)
	r := newTestRouter(&tenant)
	r.POST("/contracts", NewContractHandler(svc).CreateContract)

	w, env := doJSON(t, r, http.MethodPost, "/contracts", map[string]any{
		"booking_id":         uuid.New(),
		"rent_lock_plan":     "12m",
		"lock_duration":      12,
		"locked_rent_amount": 45000,
		"start_date":         "01.01.2026",
		"due_date":           5,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestContractHandler_CreateContract_DueDateOutOfRange(t *testing.T) {
	tenant := service.Actor{UserID: uuid.New(), Role: models.RoleTenant}
	r := newTestRouter(&tenant)
	r.POST("/contracts", NewContractHandler(new(mockContractService)).CreateContract)

	w, _ := doJSON(t, r, http.MethodPost, "/contracts", map[string]any{
		"booking_id":         uuid.New(),
		"rent_lock_plan":     "12m",
		"lock_duration":      12,
		"locked_rent_amount": 45000,
		"start_date":         "2026-01-01",
		"due_date":           32,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContractHandler_CreateContract_LockDurationTooLong(t *testing.T) {
	tenant := service.Actor{UserID: uuid.New(), Role: models.RoleTenant}
	svc := new(mockContractService)
	r := newTestRouter(&tenant)
	r.POST("/contracts", NewContractHandler(svc).CreateContract)

	w, _ := doJSON(t, r, http.MethodPost, "/contracts", map[string]any{
		"booking_id":         uuid.New(),
		"rent_lock_plan":     "12m",
		"lock_duration":      1000000,
		"locked_rent_amount": 45000,
		"start_date":         "2026-01-01",
		"due_date":           5,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Create")
}

func TestContractHandler_SignContract_InvalidTransition(t *testing.T) {
	landlord := service.Actor{UserID: uuid.New(), Role: models.RoleLandlord}
	svc := new(mockContractService)
	r := newTestRouter(&landlord)
	r.POST("/contracts/:ref/sign", NewContractHandler(svc).SignContract)

	svc.On("Sign", mock.Anything, landlord, "RLC-202610-K7QX2M", mock.AnythingOfType("service.SignInput")).
		Return(nil, apperror.InvalidTransition("подписать можно только договор, ожидающий подписей", "active")).Once()

	w, env := doJSON(t, r, http.MethodPost, "/contracts/RLC-202610-K7QX2M/sign", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	assert.Equal(t, "active", env.Error.Details["current_status"])
	svc.AssertExpectations(t)
}

func TestContractHandler_GetContract_InternalErrorMasked(t *testing.T) {
	admin := service.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
	svc := new(mockContractService)
	r := newTestRouter(&admin)
	r.GET("/contracts/:ref", NewContractHandler(svc).GetContract)

	svc.On("Get", mock.Anything, admin, "x").Return(nil, assert.AnError).Once()

	w, env := doJSON(t, r, http.MethodGet, "/contracts/x", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, env.Error.Message, assert.AnError.Error())
}

func TestContractHandler_ListContracts_Paginates(t *testing.T) {
	tenant := service.Actor{UserID: uuid.New(), Role: models.RoleTenant}
	svc := new(mockContractService)
	r := newTestRouter(&tenant)
	r.GET("/contracts", NewContractHandler(svc).ListContracts)

	contracts := []models.Contract{*pendingContract(tenant.UserID, uuid.New()), *pendingContract(tenant.UserID, uuid.New())}
	svc.On("List", mock.Anything, tenant, 2, 0).Return(contracts, nil).Once()

	w, _ := doJSON(t, r, http.MethodGet, "/contracts?limit=2", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			HasMore bool `json:"has_more"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
	assert.True(t, body.Pagination.HasMore)
}

func TestContractHandler_BookingRejected(t *testing.T) {
	admin := service.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
	svc := new(mockContractService)
	r := newTestRouter(&admin)
	r.POST("/internal/bookings/rejected", NewContractHandler(svc).BookingRejected)

	bookingID := uuid.New()
	svc.On("OnBookingRejected", mock.Anything, bookingID).Return(&service.CascadeResult{NoOp: true}, nil).Once()

	w, env := doJSON(t, r, http.MethodPost, "/internal/bookings/rejected", map[string]any{"booking_id": bookingID})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"no_op":true}`, string(env.Data))
	svc.AssertExpectations(t)
}
