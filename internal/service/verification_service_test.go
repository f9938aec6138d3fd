package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/rental-backend/internal/config"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

type fakeVerifications struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.PropertyVerification
}

func newFakeVerifications() *fakeVerifications {
	return &fakeVerifications{byID: make(map[uuid.UUID]*models.PropertyVerification)}
}

func (f *fakeVerifications) Create(ctx context.Context, v *models.PropertyVerification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.ListingID == v.ListingID {
			return fmt.Errorf("verification repository: create %w", common.ErrAlreadyExists)
		}
	}
	v.ID = uuid.New()
	cp := *v
	f.byID[v.ID] = &cp
	return nil
}

func (f *fakeVerifications) Reopen(ctx context.Context, id, requestedBy uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[id]
	if !ok || v.Status != models.VerificationStatusRejected {
		return false, nil
	}
	*v = models.PropertyVerification{ID: v.ID, ListingID: v.ListingID, RequestedBy: requestedBy, Status: models.VerificationStatusPending}
	return true, nil
}

func (f *fakeVerifications) GetByID(ctx context.Context, id uuid.UUID) (*models.PropertyVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[id]
	if !ok {
		return nil, apperror.ErrVerificationNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVerifications) GetByListingID(ctx context.Context, listingID uuid.UUID) (*models.PropertyVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.byID {
		if v.ListingID == listingID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, apperror.ErrVerificationNotFound
}

func (f *fakeVerifications) open(id uuid.UUID) (*models.PropertyVerification, bool) {
	v, ok := f.byID[id]
	if !ok || v.IsFinal() {
		return nil, false
	}
	return v, true
}

func (f *fakeVerifications) UpdateDocument(ctx context.Context, id uuid.UUID, kind string, document *string, verified bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.open(id)
	if !ok {
		return false, nil
	}
	switch kind {
	case models.VerificationDocOwnership:
		v.OwnershipDocument, v.OwnershipVerified = document, verified
	case models.VerificationDocIdentity:
		v.IdentityDocument, v.IdentityVerified = document, verified
	case models.VerificationDocAddress:
		v.AddressDocument, v.AddressVerified = document, verified
	}
	v.Status = models.VerificationStatusInProgress
	return true, nil
}

func (f *fakeVerifications) UpdateInspection(ctx context.Context, id uuid.UUID, completed, passed bool, notes *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.open(id)
	if !ok {
		return false, nil
	}
	v.InspectionCompleted, v.InspectionPassed, v.InspectionNotes = completed, passed, notes
	v.Status = models.VerificationStatusInProgress
	return true, nil
}

func (f *fakeVerifications) Approve(ctx context.Context, id, actor uuid.UUID, at, badgeExpiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.open(id)
	if !ok || !v.AllChecksPassed() {
		return false, nil
	}
	v.Status, v.VerifiedBy, v.VerifiedAt, v.BadgeExpiresAt = models.VerificationStatusVerified, &actor, &at, &badgeExpiresAt
	return true, nil
}

func (f *fakeVerifications) Reject(ctx context.Context, id, actor uuid.UUID, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[id]
	if !ok || v.Status == models.VerificationStatusRejected {
		return false, nil
	}
	v.Status, v.VerifiedBy, v.RejectionReason, v.BadgeExpiresAt = models.VerificationStatusRejected, &actor, &reason, nil
	return true, nil
}

func newVerificationHarness(t *testing.T) (*lifecycle, *VerificationService) {
	t.Helper()
	lc := newLifecycle(t)
	svc := NewVerificationService(newFakeVerifications(), lc.listings, lc.outbox, config.DefaultPolicy())
	svc.now = fixedClock(lc.now)
	return lc, svc
}

func passAllChecks(t *testing.T, svc *VerificationService, admin Actor, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	for _, kind := range []string{models.VerificationDocOwnership, models.VerificationDocIdentity, models.VerificationDocAddress} {
		doc := "/media/" + kind + ".pdf"
		_, err := svc.UpdateDocument(ctx, admin, id, DocumentInput{Kind: kind, Document: &doc, Verified: true})
		require.NoError(t, err)
	}
	_, err := svc.UpdateInspection(ctx, admin, id, InspectionInput{Completed: true, Passed: true})
	require.NoError(t, err)
}

func TestVerificationService_ApproveIssuesBadge(t *testing.T) {
	lc, svc := newVerificationHarness(t)
	ctx := context.Background()

	_, err := svc.Request(ctx, lc.tenant, lc.listing.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	v, err := svc.Request(ctx, lc.landlord, lc.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusPending, v.Status)

	_, err = svc.Request(ctx, lc.landlord, lc.listing.ID)
	assert.True(t, apperror.IsConflict(err))

	_, err = svc.UpdateDocument(ctx, lc.landlord, v.ID, DocumentInput{Kind: models.VerificationDocIdentity, Verified: true})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = svc.UpdateDocument(ctx, lc.admin, v.ID, DocumentInput{Kind: "passport", Verified: true})
	assert.True(t, apperror.IsValidation(err))
	_, err = svc.UpdateInspection(ctx, lc.admin, v.ID, InspectionInput{Passed: true})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Approve(ctx, lc.admin, v.ID)
	assert.True(t, apperror.IsValidation(err))

	passAllChecks(t, svc, lc.admin, v.ID)
	approved, err := svc.Approve(ctx, lc.admin, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusVerified, approved.Status)
	require.NotNil(t, approved.BadgeExpiresAt)
	assert.Equal(t, lc.now.AddDate(0, 0, 365), *approved.BadgeExpiresAt)

	listing := lc.listingState(t)
	assert.True(t, listing.VerifiedBadge)
	assert.Equal(t, approved.BadgeExpiresAt, listing.BadgeExpiresAt)

	notified := lc.outbox.eventsFor("verification.approved")
	require.Len(t, notified, 1)
	assert.Equal(t, lc.landlord.UserID, notified[0].UserID)

	_, err = svc.Approve(ctx, lc.admin, v.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
	_, err = svc.UpdateInspection(ctx, lc.admin, v.ID, InspectionInput{Completed: true})
	assert.True(t, apperror.IsInvalidTransition(err))

	got, err := svc.Get(ctx, lc.landlord, v.ID)
	require.NoError(t, err)
	assert.Equal(t, approved.ID, got.ID)
	_, err = svc.Get(ctx, lc.tenant, v.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestVerificationService_RejectAndReopen(t *testing.T) {
	lc, svc := newVerificationHarness(t)
	ctx := context.Background()

	v, err := svc.Request(ctx, lc.landlord, lc.listing.ID)
	require.NoError(t, err)
	passAllChecks(t, svc, lc.admin, v.ID)
	_, err = svc.Approve(ctx, lc.admin, v.ID)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, lc.admin, v.ID, "")
	assert.True(t, apperror.IsValidation(err))

	rejected, err := svc.Reject(ctx, lc.admin, v.ID, "документы поддельные")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusRejected, rejected.Status)
	assert.False(t, lc.listingState(t).VerifiedBadge)
	assert.Len(t, lc.outbox.eventsFor("verification.rejected"), 1)

	reopened, err := svc.Request(ctx, lc.landlord, lc.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, reopened.ID)
	assert.Equal(t, models.VerificationStatusPending, reopened.Status)
	assert.False(t, reopened.OwnershipVerified)
}

func TestVerificationService_ExpireBadges(t *testing.T) {
	lc, svc := newVerificationHarness(t)
	ctx := context.Background()

	v, err := svc.Request(ctx, lc.landlord, lc.listing.ID)
	require.NoError(t, err)
	passAllChecks(t, svc, lc.admin, v.ID)
	_, err = svc.Approve(ctx, lc.admin, v.ID)
	require.NoError(t, err)

	report, err := svc.ExpireBadges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)

	svc.now = fixedClock(lc.now.AddDate(1, 0, 1))
	report, err = svc.ExpireBadges(ctx)
	require.NoError(t, err)
	assert.Equal(t, "badges", report.Name)
	assert.Equal(t, 1, report.Processed)
	assert.False(t, lc.listingState(t).VerifiedBadge)

	expired := lc.outbox.eventsFor("verification.badge_expired")
	require.Len(t, expired, 1)
	assert.Equal(t, lc.landlord.UserID, expired[0].UserID)
}
