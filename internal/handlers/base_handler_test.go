package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commune_backend/internal/services/dto"
	"commune_backend/internal/validator"
)

type stubAuthService struct {
	registered *dto.RegisterRequest
}

func (s *stubAuthService) Register(req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	s.registered = req
	return &dto.AuthResponse{Token: "t", UserID: "u1", Handle: req.Handle}, nil
}

func (s *stubAuthService) Login(*dto.LoginRequest) (*dto.AuthResponse, error) {
	return &dto.AuthResponse{Token: "t", UserID: "u1"}, nil
}

func newAuthRouter(service *stubAuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewAuthHandler(NewBaseHandler(validator.New()), service)
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func TestRegisterRejectsMissingFieldsPerField(t *testing.T) {
	t.Parallel()

	service := &stubAuthService{}
	router := newAuthRouter(service)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, service.registered, "the service must not see an invalid request")

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Equal(t, "is required", body.Error.Details["handle"])
	assert.Equal(t, "is required", body.Error.Details["displayName"])
	assert.Equal(t, "is required", body.Error.Details["email"])
	assert.Equal(t, "is required", body.Error.Details["password"])
}

func TestRegisterRejectsRuleViolationsPerField(t *testing.T) {
	t.Parallel()

	router := newAuthRouter(&stubAuthService{})

	payload := `{"handle":"a!","displayName":"Dana","email":"nope","password":"short"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "must be at least 3 characters", body.Error.Details["handle"])
	assert.Equal(t, "must be a valid email address", body.Error.Details["email"])
	assert.Equal(t, "must be at least 8 characters", body.Error.Details["password"])
	assert.NotContains(t, body.Error.Details, "displayName")
}

func TestRegisterAcceptsValidRequest(t *testing.T) {
	t.Parallel()

	service := &stubAuthService{}
	router := newAuthRouter(service)

	payload := `{"handle":"dana99","displayName":"Dana","email":"dana@example.com","password":"longenough"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, service.registered)
	assert.Equal(t, "dana99", service.registered.Handle)
}
