package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveHealth(t *testing.T, handler *HealthHandler, path string) (int, map[string]interface{}) {
	t.Helper()

	router := gin.New()
	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadinessCheck)
	router.GET("/live", handler.LivenessCheck)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w.Code, response
}

func TestHealthCheck(t *testing.T) {
	code, response := serveHealth(t, NewHealthHandler(nil), "/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "oti", response["service"])
	assert.Contains(t, response, "timestamp")
	assert.Contains(t, response, "version")
}

func TestLivenessCheck(t *testing.T) {
	code, response := serveHealth(t, NewHealthHandler(nil), "/live")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", response["status"])
}

func TestReadinessCheckWithNilChecker(t *testing.T) {
	code, response := serveHealth(t, NewHealthHandler(nil), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", response["status"])
}

func TestReadinessCheckHealthy(t *testing.T) {
	code, response := serveHealth(t, NewHealthHandler(&mockRunner{}), "/ready")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", response["status"])

	checks, ok := response["checks"].(map[string]interface{})
	require.True(t, ok)
	database, ok := checks["database"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "healthy", database["status"])
}

func TestReadinessCheckPingFailure(t *testing.T) {
	runner := &mockRunner{pingErr: errors.New("connection refused")}
	code, response := serveHealth(t, NewHealthHandler(runner), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", response["status"])
}

func TestReadinessCheckOpenBreaker(t *testing.T) {
	runner := breakerRunner{&mockRunner{breaker: "open"}}
	code, response := serveHealth(t, NewHealthHandler(runner), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	checks := response["checks"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"state": "open"}, checks["index_circuit_breaker"])
}

func TestReadinessCheckClosedBreaker(t *testing.T) {
	runner := breakerRunner{&mockRunner{breaker: "closed"}}
	code, _ := serveHealth(t, NewHealthHandler(runner), "/ready")

	assert.Equal(t, http.StatusOK, code)
}
