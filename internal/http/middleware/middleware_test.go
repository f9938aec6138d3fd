package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/service"
)

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenManager("test-secret-test-secret-test-secret", 15*time.Minute)
	userID := uuid.New()

	r := gin.New()
	r.Use(AuthMiddleware(tokens))
	r.GET("/me", RequireRole(models.RoleTenant, models.RoleLandlord), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.MustGet(ContextUserIDKey).(uuid.UUID).String(), "role": c.GetString(ContextRoleKey)})
	})

	w := serve(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := tokens.GenerateAccess(userID, models.RoleTenant)
	require.NoError(t, err)
	w = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())

	adminToken, _, err := tokens.GenerateAccess(uuid.New(), models.RoleAdmin)
	require.NoError(t, err)
	w = serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + adminToken})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestContractRefValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/contracts/:ref", ContractRefValidator("ref"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/contracts/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/contracts/RLC-202610-K7QX2M", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/contracts/RLC-202610-K7QX2I", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/contracts/drop-table", nil).Code)
}

func TestErrorHandler_RendersAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(apperror.InvalidTransition("спор закрыт", "closed"))
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
	})

	w := serve(r, http.MethodGet, "/fail", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"current_status":"closed"`)

	w = serve(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(2, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping", nil).Code)
	w := serve(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodOptions, "/ping", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
