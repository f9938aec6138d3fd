package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/rental-backend/internal/config"
	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
)

func TestSweeper_RunAll(t *testing.T) {
	lc := newLifecycle(t)
	ctx := context.Background()
	c := lc.activate(t)

	policy := config.DefaultPolicy()
	loans := NewLoanService(newFakeLoans(), lc.contracts, lc.outbox, policy)
	verifications := NewVerificationService(newFakeVerifications(), lc.listings, lc.outbox, policy)

	after := fixedClock(time.Date(2027, time.January, 2, 6, 0, 0, 0, time.UTC))
	lc.contractSvc.now = after
	lc.walletSvc.now = after
	loans.now = after
	verifications.now = after

	sweeper := NewSweeper(lc.contractSvc, lc.walletSvc, loans, verifications, 2)
	reports, err := sweeper.RunAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 4)

	names := make([]string, len(reports))
	for i, r := range reports {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"expiry", "reminders", "emi", "badges"}, names)
	assert.Equal(t, 1, reports[0].Processed)

	expired, err := lc.contracts.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ContractStatusExpired, expired.Status)
	assert.Equal(t, valueobject.AvailabilityAvailable, lc.listingState(t).AvailabilityStatus)
}
