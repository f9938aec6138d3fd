package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/http/response"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: router.GET("/disputes/:id", UUIDValidator("id"), handler.Get)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			response.BadRequest(c, "параметр "+paramName+" обязателен")
			c.Abort()
			return
		}

		if _, err := uuid.Parse(idStr); err != nil {
			response.BadRequest(c, "параметр "+paramName+" должен быть валидным UUID")
			c.Abort()
			return
		}

		c.Next()
	}
}

// Код договора: префикс, год и месяц, шесть символов без похожих букв и цифр.
var contractCodePattern = regexp.MustCompile(`^[A-Z]{2,8}-\d{6}-[A-HJ-NP-Z2-9]{6}$`)

// ContractRefValidator пропускает параметр, если это UUID договора или его код.
func ContractRefValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Param(paramName)
		if _, err := uuid.Parse(ref); err == nil || contractCodePattern.MatchString(ref) {
			c.Next()
			return
		}
		response.BadRequest(c, "параметр "+paramName+" должен быть UUID или кодом договора")
		c.Abort()
	}
}
