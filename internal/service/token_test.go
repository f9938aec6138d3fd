package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	m := NewTokenManager("secret", 15*time.Minute)
	m.now = fixedClock(now)
	userID := uuid.New()

	token, exp, err := m.GenerateAccess(userID, models.RoleLandlord)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), exp)

	actor, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{UserID: userID, Role: models.RoleLandlord}, actor)

	m.now = fixedClock(now.Add(16 * time.Minute))
	_, err = m.ParseAccess(token)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	_, _, err := m.GenerateAccess(uuid.New(), "superuser")
	assert.True(t, apperror.IsValidation(err))

	other := NewTokenManager("another-secret", time.Hour)
	foreign, _, err := other.GenerateAccess(uuid.New(), models.RoleTenant)
	require.NoError(t, err)
	_, err = m.ParseAccess(foreign)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uuid.New().String(),
		"role": "superuser",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.ParseAccess(forged)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = m.ParseAccess("not-a-token")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
