package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/http/handlers/common"
	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/service"
)

// actorAndID - пользователь из контекста и UUID из параметра :id.
// При ошибке ответ уже отправлен.
func actorAndID(c *gin.Context) (service.Actor, uuid.UUID, bool) {
	actor, ok := common.MustActor(c)
	if !ok {
		return service.Actor{}, uuid.Nil, false
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return service.Actor{}, uuid.Nil, false
	}

	return actor, id, true
}

// firstError возвращает первую ненулевую ошибку проверок.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
