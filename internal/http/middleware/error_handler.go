package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/logger"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки, добавленные через c.Error, централизованно.
// Внутренние ошибки маскируются, AppError отдаются клиенту с кодом и деталями.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		fields := logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}
		if apperror.CodeOf(err) == apperror.ErrCodeInternal {
			logger.WithFields(fields).Error("request error")
		} else {
			logger.WithFields(fields).Debug("request rejected")
		}

		response.Error(c, err)
	}
}

// Recovery превращает панику обработчика в 500 с логом.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			"panic":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("panic in handler")
		response.Error(c, apperror.New(apperror.ErrCodeInternal, "внутренняя ошибка сервера"))
		c.Abort()
	})
}
