package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
)

type mockStatusSetter struct {
	mock.Mock
}

func (m *mockStatusSetter) SetStatus(ctx context.Context, actor Actor, ref string, in StatusInput) (*models.Contract, error) {
	args := m.Called(ctx, actor, ref, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func newDisputeHarness(t *testing.T, statuses ContractStatusSetter) (*lifecycle, *models.Contract, *DisputeService) {
	t.Helper()
	lc := newLifecycle(t)
	c := lc.activate(t)
	if statuses == nil {
		statuses = lc.contractSvc
	}
	svc := NewDisputeService(newFakeDisputes(), lc.contracts, statuses, lc.outbox)
	svc.now = fixedClock(lc.now)
	lc.outbox.reset()
	return lc, c, svc
}

func rentDispute() RaiseDisputeInput {
	return RaiseDisputeInput{
		Category:    models.DisputeCategoryMaintenance,
		Title:       "Не работает отопление",
		Description: "Батареи холодные третью неделю",
		Evidence:    []string{"/media/photo-1.jpg"},
	}
}

func TestDisputeService_Raise(t *testing.T) {
	lc, c, svc := newDisputeHarness(t, nil)
	ctx := context.Background()

	_, err := svc.Raise(ctx, lc.admin, c.Code, rentDispute())
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	bad := rentDispute()
	bad.Category = "weather"
	_, err = svc.Raise(ctx, lc.tenant, c.Code, bad)
	assert.True(t, apperror.IsValidation(err))

	d, err := svc.Raise(ctx, lc.tenant, c.Code, rentDispute())
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusOpen, d.Status)
	assert.Equal(t, lc.landlord.UserID, d.RespondentID)
	assert.Equal(t, []string{"/media/photo-1.jpg"}, []string(d.Evidence))

	raised := lc.outbox.eventsFor("dispute.raised")
	require.Len(t, raised, 1)
	assert.Equal(t, lc.landlord.UserID, raised[0].UserID)

	_, err = svc.Raise(ctx, lc.landlord, c.Code, rentDispute())
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, d.ID.String(), appErr.Details["dispute_id"])
}

func TestDisputeService_MessagesAndClose(t *testing.T) {
	lc, c, svc := newDisputeHarness(t, nil)
	ctx := context.Background()

	d, err := svc.Raise(ctx, lc.tenant, c.Code, rentDispute())
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, lc.landlord, d.ID, "  ", nil)
	assert.True(t, apperror.IsValidation(err))

	m, err := svc.PostMessage(ctx, lc.landlord, d.ID, "Мастер придёт в пятницу", nil)
	require.NoError(t, err)
	assert.True(t, m.IsReadBy(lc.landlord.UserID))
	assert.False(t, m.IsReadBy(lc.tenant.UserID))

	got, err := svc.Get(ctx, lc.tenant, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.True(t, got.Messages[0].IsReadBy(lc.tenant.UserID))

	_, err = svc.Close(ctx, lc.landlord, d.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	closed, err := svc.Close(ctx, lc.tenant, d.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusClosed, closed.Status)

	_, err = svc.PostMessage(ctx, lc.tenant, d.ID, "ещё вопрос", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "closed", appErr.Details["current_status"])

	_, err = svc.AddEvidence(ctx, lc.tenant, d.ID, []string{"/media/late.jpg"})
	assert.True(t, apperror.IsInvalidTransition(err))

	// после закрытия можно открыть новый спор
	_, err = svc.Raise(ctx, lc.landlord, c.Code, rentDispute())
	assert.NoError(t, err)
}

func TestDisputeService_EscalateAndReview(t *testing.T) {
	lc, c, svc := newDisputeHarness(t, nil)
	ctx := context.Background()

	d, err := svc.Raise(ctx, lc.tenant, c.Code, rentDispute())
	require.NoError(t, err)

	_, err = svc.StartReview(ctx, lc.tenant, d.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	reviewed, err := svc.StartReview(ctx, lc.admin, d.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusUnderReview, reviewed.Status)
	assert.Len(t, lc.outbox.eventsFor("dispute.under_review"), 2)

	_, err = svc.Escalate(ctx, lc.landlord, d.ID, "")
	assert.True(t, apperror.IsValidation(err))

	escalated, err := svc.Escalate(ctx, lc.landlord, d.ID, "нет ответа")
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusEscalated, escalated.Status)
	assert.Equal(t, &lc.landlord.UserID, escalated.EscalatedBy)

	_, err = svc.StartReview(ctx, lc.admin, d.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestDisputeService_Resolve_TerminatesContract(t *testing.T) {
	lc, c, svc := newDisputeHarness(t, nil)
	ctx := context.Background()

	d, err := svc.Raise(ctx, lc.tenant, c.Code, rentDispute())
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, lc.admin, d.ID, ResolveDisputeInput{Decision: "расторгнуть", Action: "evict"})
	assert.True(t, apperror.IsValidation(err))

	resolved, err := svc.Resolve(ctx, lc.admin, d.ID, ResolveDisputeInput{
		Decision: "расторгнуть договор",
		Action:   models.DisputeActionTerminateContract,
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionAction)
	assert.Equal(t, models.DisputeActionTerminateContract, *resolved.ResolutionAction)

	contract, err := lc.contracts.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ContractStatusTerminated, contract.Status)
	assert.Equal(t, valueobject.AvailabilityAvailable, lc.listingState(t).AvailabilityStatus)

	_, err = svc.Resolve(ctx, lc.admin, d.ID, ResolveDisputeInput{Decision: "ещё раз", Action: models.DisputeActionNone})
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestDisputeService_Resolve_KeepsDecisionWhenTerminationFails(t *testing.T) {
	statuses := new(mockStatusSetter)
	lc, c, svc := newDisputeHarness(t, statuses)
	ctx := context.Background()

	d, err := svc.Raise(ctx, lc.landlord, c.Code, rentDispute())
	require.NoError(t, err)

	statuses.On("SetStatus", mock.Anything, lc.admin, c.ID.String(),
		mock.MatchedBy(func(in StatusInput) bool { return in.Status == "terminated" })).
		Return(nil, errors.New("db unavailable")).Once()

	amount := 5000.0
	resolved, err := svc.Resolve(ctx, lc.admin, d.ID, ResolveDisputeInput{
		Decision: "нарушение условий",
		Action:   models.DisputeActionTerminateContract,
		Amount:   &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, resolved.Status)
	assert.Equal(t, &amount, resolved.ResolutionAmount)
	statuses.AssertExpectations(t)
}
