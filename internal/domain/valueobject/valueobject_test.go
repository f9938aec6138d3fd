package valueobject

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMI_ReferenceLoan(t *testing.T) {
	emi, err := EMI(120000, 12, 12)
	require.NoError(t, err)

	// 120000 × 0.01 × 1.01^12 / (1.01^12 − 1) = 10661.85
	assert.Equal(t, float64(10662), emi)
	assert.GreaterOrEqual(t, emi*12, float64(120000))
}

func TestEMI_ZeroRate(t *testing.T) {
	emi, err := EMI(12000, 0, 12)
	require.NoError(t, err)
	assert.Equal(t, float64(1000), emi)
}

func TestEMI_Validation(t *testing.T) {
	_, err := EMI(0, 12, 12)
	assert.Error(t, err)

	_, err = EMI(1000, -1, 12)
	assert.Error(t, err)

	_, err = EMI(1000, 12, 0)
	assert.Error(t, err)

	_, err = EMI(120000, 13.7, MaxTenureMonths+1)
	assert.Error(t, err)
}

func TestEMI_LongTenure(t *testing.T) {
	emi, err := EMI(120000, 12, MaxTenureMonths)
	require.NoError(t, err)

	// 120000 × 0.01 × 1.01^360 / (1.01^360 − 1) = 1234.34
	assert.Equal(t, float64(1234), emi)
}

func TestCompound(t *testing.T) {
	base := decimal.RequireFromString("1.01")
	assert.True(t, compound(base, 0).Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "1.126825030131969720661201", compound(base, 12).String())
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, 1250.0, PercentOf(25000, 5))
	assert.Equal(t, 0.0, PercentOf(25000, 0))
}

func TestContractStatus_Transitions(t *testing.T) {
	assert.True(t, ContractStatusPendingSignature.CanTransitionTo(ContractStatusActive))
	assert.True(t, ContractStatusActive.CanTransitionTo(ContractStatusTerminated))
	assert.False(t, ContractStatusTerminated.CanTransitionTo(ContractStatusActive))
	assert.False(t, ContractStatusActive.CanTransitionTo(ContractStatusRejected))

	assert.True(t, ContractStatusExpired.IsTerminal())
	assert.False(t, ContractStatusPendingSignature.IsTerminal())

	_, err := NewContractStatus("archived")
	assert.Error(t, err)
}

func TestAvailabilityStatus(t *testing.T) {
	for _, s := range []AvailabilityStatus{AvailabilityReserved, AvailabilityUnderContract, AvailabilityRented, AvailabilitySold, AvailabilitySuspended} {
		assert.False(t, s.IsBookable(), s)
	}
	assert.True(t, AvailabilityAvailable.IsBookable())
	assert.True(t, AvailabilityUnderContract.RequiresOwner())
	assert.False(t, AvailabilitySold.RequiresOwner())
}

func TestDisputeAndLoanStatus(t *testing.T) {
	assert.True(t, DisputeStatusEscalated.CanTransitionTo(DisputeStatusResolved))
	assert.False(t, DisputeStatusResolved.CanTransitionTo(DisputeStatusOpen))
	assert.False(t, DisputeStatusEscalated.IsTerminal())

	assert.True(t, LoanStatusPending.CanTransitionTo(LoanStatusDisbursed))
	assert.False(t, LoanStatusRejected.CanTransitionTo(LoanStatusApproved))
	assert.True(t, LoanStatusDefaulted.IsTerminal())
}

func TestDueDateIn_ClampsShortMonths(t *testing.T) {
	feb := DueDateIn(2026, time.February, 31, time.UTC)
	assert.Equal(t, 28, feb.Day())

	mar := DueDateIn(2026, time.March, 31, time.UTC)
	assert.Equal(t, 31, mar.Day())
}

func TestAddMonths_EndOfMonth(t *testing.T) {
	jan31 := time.Date(2028, time.January, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2028, time.February, 29, 10, 0, 0, 0, time.UTC), AddMonths(jan31, 1))
	assert.Equal(t, time.Date(2028, time.December, 31, 10, 0, 0, 0, time.UTC), AddMonths(jan31, 11))
}

func TestMonthsBetween_Inclusive(t *testing.T) {
	start := time.Date(2026, time.November, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2027, time.October, 14, 0, 0, 0, 0, time.UTC)

	months := MonthsBetween(start, end)
	require.Len(t, months, 12)
	assert.Equal(t, time.November, months[0].Month())
	assert.Equal(t, time.October, months[11].Month())

	assert.Nil(t, MonthsBetween(end, start))
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, time.October, 19, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, 5, DaysUntil(time.Date(2026, time.October, 24, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 0, DaysUntil(time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, -3, DaysUntil(time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC), now))
}
