package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code contextutils.ErrorCode
		want int
	}{
		{contextutils.ErrorCodeInvalidInput, http.StatusBadRequest},
		{contextutils.ErrorCodeMissingRequired, http.StatusBadRequest},
		{contextutils.ErrorCodeValidationFailed, http.StatusBadRequest},
		{contextutils.ErrorCodeRecordNotFound, http.StatusNotFound},
		{contextutils.ErrorCodeTimeout, http.StatusGatewayTimeout},
		{contextutils.ErrorCodeServiceUnavailable, http.StatusServiceUnavailable},
		{contextutils.ErrorCodeAIProviderUnavailable, http.StatusServiceUnavailable},
		{contextutils.ErrorCodeAIRequestFailed, http.StatusBadGateway},
		{contextutils.ErrorCodeAIResponseShapeMismatch, http.StatusBadGateway},
		{contextutils.ErrorCodeDatabaseQuery, http.StatusInternalServerError},
		{contextutils.ErrorCodeInternalError, http.StatusInternalServerError},
		{contextutils.ErrorCode("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func serveError(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/err", func(c *gin.Context) {
		HandleAppError(c, err)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/err", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHandleAppError(t *testing.T) {
	status, body := serveError(t, contextutils.WrapErrorf(contextutils.ErrMissingRequired, "missing required fields: %s", "Model"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "MISSING_REQUIRED_FIELD", body["code"])
	assert.Equal(t, "missing required fields: Model", body["message"])
	assert.Equal(t, false, body["retryable"])
}

func TestHandleAppError_PlainError(t *testing.T) {
	status, body := serveError(t, errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body["code"])
	assert.Equal(t, "disk on fire", body["cause"])
}
