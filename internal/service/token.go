package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
)

// TokenManager отвечает за выпуск и проверку JWT.
// Пользователи заводятся во внешнем сервисе учётных записей, здесь только access токены.
type TokenManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// GenerateAccess выпускает access токен.
func (m *TokenManager) GenerateAccess(userID uuid.UUID, role string) (string, time.Time, error) {
	if _, ok := models.ValidRoles[role]; !ok {
		return "", time.Time{}, apperror.Validation("неизвестная роль").With("role", role)
	}
	now := m.now()
	exp := now.Add(m.accessTTL)
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token manager: sign %w", err)
	}
	return token, exp, nil
}

// ParseAccess извлекает пользователя и роль из access токена.
func (m *TokenManager) ParseAccess(token string) (Actor, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return Actor{}, apperror.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, apperror.ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)

	userID, err := uuid.Parse(sub)
	if err != nil {
		return Actor{}, apperror.ErrUnauthorized
	}
	if _, ok := models.ValidRoles[role]; !ok {
		return Actor{}, apperror.ErrUnauthorized
	}
	return Actor{UserID: userID, Role: role}, nil
}
