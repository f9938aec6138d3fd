package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/service"
	"github.com/ignatzorin/rental-backend/internal/storage"
)

type mockMediaSaver struct {
	mock.Mock
}

func (m *mockMediaSaver) Save(ctx context.Context, ownerID uuid.UUID, originalName string, r io.Reader) (*storage.StoredFile, error) {
	args := m.Called(ctx, ownerID, originalName, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.StoredFile), args.Error(1)
}

func uploadRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestMediaHandler_UploadContractMedia(t *testing.T) {
	tenant := service.Actor{UserID: uuid.New(), Role: models.RoleTenant}
	contracts := new(mockContractService)
	saver := new(mockMediaSaver)
	r := newTestRouter(&tenant)
	r.POST("/contracts/:ref/media", NewMediaHandler(contracts, saver).UploadContractMedia)

	contract := pendingContract(tenant.UserID, uuid.New())
	contracts.On("Get", mock.Anything, tenant, contract.Code).Return(contract, nil).Once()
	saver.On("Save", mock.Anything, contract.ID, "kitchen.jpg", mock.Anything).
		Return(&storage.StoredFile{Path: contract.ID.String() + "/kitchen_1.jpg", Size: 4, MIME: "image/jpeg"}, nil).Once()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/contracts/"+contract.Code+"/media", "kitchen.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"url":"/media/`+contract.ID.String()+`/kitchen_1.jpg"`)
	contracts.AssertExpectations(t)
	saver.AssertExpectations(t)
}

func TestMediaHandler_UploadContractMedia_RejectsExtension(t *testing.T) {
	tenant := service.Actor{UserID: uuid.New(), Role: models.RoleTenant}
	r := newTestRouter(&tenant)
	r.POST("/contracts/:ref/media", NewMediaHandler(nil, nil).UploadContractMedia)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/contracts/RLC-202610-K7QX2M/media", "script.sh", []byte("#!/bin/sh")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMediaHandler_UploadContractMedia_UnsupportedContent(t *testing.T) {
	tenant := service.Actor{UserID: uuid.New(), Role: models.RoleTenant}
	contracts := new(mockContractService)
	saver := new(mockMediaSaver)
	r := newTestRouter(&tenant)
	r.POST("/contracts/:ref/media", NewMediaHandler(contracts, saver).UploadContractMedia)

	contract := pendingContract(tenant.UserID, uuid.New())
	contracts.On("Get", mock.Anything, tenant, contract.Code).Return(contract, nil).Once()
	saver.On("Save", mock.Anything, contract.ID, "photo.png", mock.Anything).Return(nil, storage.ErrUnsupportedType).Once()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/contracts/"+contract.Code+"/media", "photo.png", []byte("not a png")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
