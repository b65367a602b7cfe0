package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botgate/internal/models"
	"botgate/internal/version"
)

func TestHealthCheck(t *testing.T) {
	handlers := NewHandlers(version.Info{Version: "1.2.3"})
	router := SetupRoutes(handlers)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp models.HealthCheckResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestProtectedRoutes(t *testing.T) {
	handlers := NewHandlers(version.Info{})
	router := SetupRoutes(handlers)

	tests := []struct {
		method string
		path   string
		kind   string
	}{
		{"POST", "/api/chat", "chat"},
		{"POST", "/api/voice/transcribe", "voice"},
		{"POST", "/api/upload", "upload"},
		{"GET", "/api/data", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body["kind"])
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handlers := NewHandlers(version.Info{})
	router := SetupRoutes(handlers)

	req := httptest.NewRequest("DELETE", "/api/chat", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrorCodeInvalidRequest, resp.Code)
}
