package common

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/http/middleware"
	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/service"
)

var (
	// ErrUserNotFound возвращается, когда в контексте нет пользователя.
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID возвращается при неверном UUID в пути.
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// DateLayout - формат дат в запросах.
const DateLayout = "2006-01-02"

// CurrentActor извлекает пользователя и роль, выставленные AuthMiddleware.
func CurrentActor(c *gin.Context) (service.Actor, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return service.Actor{}, ErrUserNotFound
	}
	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return service.Actor{}, ErrUserNotFound
	}

	return service.Actor{UserID: userID, Role: c.GetString(middleware.ContextRoleKey)}, nil
}

// MustActor возвращает пользователя или отвечает 401. Второе значение false -
// ответ уже отправлен.
func MustActor(c *gin.Context) (service.Actor, bool) {
	actor, err := CurrentActor(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return service.Actor{}, false
	}
	return actor, true
}

// ParseUUIDParam разбирает UUID из параметра пути.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// BindJSON читает тело запроса и при ошибке сразу отвечает 400.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, fmt.Sprintf("ошибка валидации запроса: %v", err))
		return false
	}
	return true
}

// ParseDate разбирает дату вида 2026-01-31 в UTC. Пустая строка даёт nil.
func ParseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("дата %q должна быть в формате ГГГГ-ММ-ДД", value)
	}
	return &t, nil
}

// ParseIntQuery читает целый query параметр со значением по умолчанию.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination извлекает limit и offset с дефолтами.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
