package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubPinger is a Pinger returning a fixed error.
type stubPinger struct {
	pingErr error
}

func (s *stubPinger) Ping(_ context.Context) error {
	return s.pingErr
}

func performRequest(handler gin.HandlerFunc, method, path string) *httptest.ResponseRecorder {
	router := gin.New()
	router.Handle(method, path, handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler(nil, "test")

	w := performRequest(h.Health, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealthHandler_Ready_MemoryBackend(t *testing.T) {
	h := NewHealthHandler(nil, "test")

	w := performRequest(h.Ready, http.MethodGet, "/health/ready")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "memory", resp.Store)
}

func TestHealthHandler_Ready_StoreConnected(t *testing.T) {
	h := NewHealthHandler(&stubPinger{}, "test")

	w := performRequest(h.Ready, http.MethodGet, "/health/ready")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "connected", resp.Store)
}

func TestHealthHandler_Ready_StoreDown(t *testing.T) {
	h := NewHealthHandler(&stubPinger{pingErr: errors.New("connection refused")}, "test")

	w := performRequest(h.Ready, http.MethodGet, "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "disconnected", resp.Store)
}

func TestHealthHandler_Info(t *testing.T) {
	h := NewHealthHandler(nil, "production")

	w := performRequest(h.Info, http.MethodGet, "/api/v1/info")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, APIVersion, resp.Version)
	assert.Equal(t, "production", resp.Environment)
	assert.NotEmpty(t, resp.Uptime)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{name: "seconds only", duration: 42 * time.Second, expected: "0h 0m 42s"},
		{name: "minutes and seconds", duration: 3*time.Minute + 5*time.Second, expected: "0h 3m 5s"},
		{name: "hours", duration: 2*time.Hour + 30*time.Minute, expected: "2h 30m 0s"},
		{name: "days", duration: 50 * time.Hour, expected: "2d 2h 0m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatUptime(tt.duration))
		})
	}
}
