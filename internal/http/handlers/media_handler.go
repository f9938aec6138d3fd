package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/dto"
	"github.com/ignatzorin/rental-backend/internal/http/handlers/common"
	"github.com/ignatzorin/rental-backend/internal/http/response"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/storage"
	"github.com/ignatzorin/rental-backend/internal/validation"
)

// Разрешённые расширения вложений. Реальный тип проверяет хранилище по содержимому.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".heic": true,
	".pdf":  true,
	".mp4":  true,
	".mov":  true,
}

// MediaSaver сохраняет вложение в каталог договора.
type MediaSaver interface {
	Save(ctx context.Context, ownerID uuid.UUID, originalName string, r io.Reader) (*storage.StoredFile, error)
}

// MediaHandler принимает фото осмотра и доказательства по спорам.
// Файлы раскладываются по каталогам договоров.
type MediaHandler struct {
	contracts ContractService
	storage   MediaSaver
}

// NewMediaHandler создаёт новый хэндлер.
func NewMediaHandler(contracts ContractService, storage MediaSaver) *MediaHandler {
	return &MediaHandler{contracts: contracts, storage: storage}
}

// UploadContractMedia обрабатывает POST /contracts/:ref/media.
// Загружать может только тот, кто видит договор.
func (h *MediaHandler) UploadContractMedia(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "поле file обязательно")
		return
	}
	if file.Size == 0 {
		response.BadRequest(c, "файл не может быть пустым")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		response.BadRequest(c, fmt.Sprintf("неподдерживаемый формат файла. Разрешены: %s", strings.Join(getAllowedExtensions(), ", ")))
		return
	}

	contract, err := h.contracts.Get(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer src.Close()

	stored, err := h.storage.Save(c.Request.Context(), contract.ID, file.Filename, src)
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		response.BadRequest(c, "не удалось определить тип файла или он не разрешён")
		return
	case errors.Is(err, storage.ErrTooLarge):
		response.BadRequest(c, "файл превышает допустимый размер")
		return
	case err != nil:
		response.Error(c, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить файл"))
		return
	}

	response.Created(c, dto.MediaUploadResponse{
		URL:  validation.MediaPrefix + stored.Path,
		Size: stored.Size,
		MIME: stored.MIME,
	})
}

// getAllowedExtensions возвращает отсортированный список разрешённых расширений.
func getAllowedExtensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
