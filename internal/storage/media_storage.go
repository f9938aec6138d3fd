package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// ErrUnsupportedType возвращается, когда содержимое файла не похоже на разрешённый тип.
var ErrUnsupportedType = errors.New("storage: неподдерживаемый тип файла")

// ErrTooLarge возвращается, когда файл больше лимита загрузки.
var ErrTooLarge = errors.New("storage: размер файла превышает лимит")

// Фото осмотра, сканы документов и видео обхода квартиры.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heif":      true,
	"application/pdf": true,
	"video/mp4":       true,
	"video/quicktime": true,
}

// filetype определяет тип по первым 262 байтам.
const sniffLen = 262

// StoredFile - результат сохранения вложения.
type StoredFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	MIME string `json:"mime"`
}

// MediaStorage хранит вложения к чек-листам и спорам на локальном диске.
type MediaStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewMediaStorage создаёт файловое хранилище.
func NewMediaStorage(rootPath string, maxUploadMB int64) (*MediaStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &MediaStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Root возвращает корневой каталог для раздачи файлов.
func (s *MediaStorage) Root() string {
	return s.rootPath
}

// Save проверяет реальный тип содержимого и сохраняет файл в каталог владельца
// (договора или спора). Возвращает путь относительно корня.
func (s *MediaStorage) Save(ctx context.Context, ownerID uuid.UUID, originalName string, r io.Reader) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || !allowedMimeTypes[kind.MIME.Value] {
		return nil, ErrUnsupportedType
	}

	ownerDir := filepath.Join(s.rootPath, ownerID.String())
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог: %w", err)
	}

	// расширение берём из содержимого, а не из имени файла
	base := sanitizeFilename(strings.TrimSuffix(originalName, filepath.Ext(originalName)))
	fileName := fmt.Sprintf("%s_%d.%s", base, time.Now().UnixNano(), kind.Extension)
	targetPath := filepath.Join(ownerDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limited := &io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return nil, ErrTooLarge
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return nil, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return &StoredFile{
		Path: ownerID.String() + "/" + fileName,
		Size: written,
		MIME: kind.MIME.Value,
	}, nil
}

// Delete удаляет файл из хранилища.
func (s *MediaStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, filepath.Clean("/"+relativePath))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		name = "file"
	}
	return name
}
