package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rent-market/internal/engine"
	"github.com/talgya/rent-market/internal/telemetry"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	p := engine.DefaultParams()
	p.Households, p.Units, p.Landlords, p.Years, p.Seed = 30, 25, 3, 2, 5
	ctrl, err := engine.NewController(p, nil)
	require.NoError(t, err)

	s := &Server{Ctrl: ctrl, Metrics: telemetry.New(), AdminKey: testKey}
	ctrl.OnFrame = s.Metrics.Observe
	return s, s.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/v1/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["step"])
	assert.EqualValues(t, 4, body["horizon"])
	assert.Equal(t, "none", body["policy"])
}

func TestAdminRequiresToken(t *testing.T) {
	_, h := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/step", "", false).Code)

	s, _ := newTestServer(t)
	s.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, do(t, s.Router(), http.MethodPost, "/api/v1/step", "", true).Code)
}

func TestStepAndFrames(t *testing.T) {
	s, h := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/frames/latest", "", false).Code)

	rec := do(t, h, http.MethodPost, "/api/v1/step", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var f engine.WireFrame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, 1, f.Step)
	assert.Len(t, f.Units, 25)

	rec = do(t, h, http.MethodGet, "/api/v1/frames/1", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/frames/9", "", false).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/frames/abc", "", false).Code)

	rec = do(t, h, http.MethodGet, "/api/v1/metrics", "", false)
	var history []engine.PeriodMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)

	rec = do(t, h, http.MethodGet, "/metrics", "", false)
	assert.Contains(t, rec.Body.String(), "rentsim_steps_total 1")
	assert.Equal(t, 1, s.Ctrl.CurrentStep())
}

func TestSeekAndReset(t *testing.T) {
	s, h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/seek", `{"step":3}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, s.Ctrl.CurrentStep())

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/seek", `{`, true).Code)

	before := s.Ctrl.RunID()
	rec = do(t, h, http.MethodPost, "/api/v1/reset", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.Ctrl.CurrentStep())
	assert.NotEqual(t, before, s.Ctrl.RunID())
}

func TestStepPastHorizonConflicts(t *testing.T) {
	s, h := newTestServer(t)
	require.NoError(t, s.Ctrl.Seek(4))
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/step", "", true).Code)
}

func TestPauseResume(t *testing.T) {
	s, h := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/pause", "", true).Code)
	assert.True(t, s.Ctrl.Paused())
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/resume", "", true).Code)
	assert.False(t, s.Ctrl.Paused())
}

func TestEntityEndpoints(t *testing.T) {
	s, h := newTestServer(t)
	_, err := s.Ctrl.Step()
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/api/v1/households?limit=5", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var hs []engine.HouseholdSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hs))
	require.NotEmpty(t, hs)
	assert.LessOrEqual(t, len(hs), 5)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/households/"+jsonID(hs[0].ID), "", false).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/households/99999", "", false).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/units/1", "", false).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/units/999", "", false).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/landlords", "", false).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/market", "", false).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/policy", "", false).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/runs", "", false).Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t)
	s.Limiter = NewRateLimiter(1, 2)
	h := s.Router()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/pause", "", true).Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/pause", "", true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/status", "", false).Code, "reads are not limited")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(r))
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

func jsonID(id any) string {
	b, _ := json.Marshal(id)
	return string(b)
}
