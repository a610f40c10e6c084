package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/assessment"
	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/fixture"
	"github.com/sells-group/posture/internal/model"
	"github.com/sells-group/posture/internal/scorer"
	"github.com/sells-group/posture/internal/store"
	"github.com/sells-group/posture/internal/strategy"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestServer(t *testing.T, cfg config.ServerConfig) (*Server, *strategy.MemoryCache) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	cache := strategy.NewMemoryCache(time.Hour)
	engine := assessment.NewEngine(st, cache, config.Default())
	b, err := fixture.Load(filepath.Join("..", "fixture", "testdata", "acme.yaml"))
	require.NoError(t, err)
	_, err = engine.Import(ctx, b)
	require.NoError(t, err)

	return New(engine, cfg), cache
}

func openConfig() config.ServerConfig {
	return config.ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, openConfig())

	w := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestScore(t *testing.T) {
	srv, _ := newTestServer(t, openConfig())

	w := do(t, srv, http.MethodGet, "/assessments/asm-acme/score", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var res scorer.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.InDelta(t, 80, res.OverallScore, 0.0001)
	assert.Equal(t, scorer.BandLow, res.RiskBand)
}

func TestScore_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, openConfig())

	w := do(t, srv, http.MethodGet, "/assessments/nope/score", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestLegacyScore(t *testing.T) {
	srv, _ := newTestServer(t, openConfig())

	w := do(t, srv, http.MethodGet, "/assessments/asm-acme/legacy-score", "")
	require.Equal(t, http.StatusOK, w.Code)

	var res assessment.LegacyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 70, res.OverallRiskScore)
	assert.Equal(t, model.RiskMedium, res.RiskLevel)
}

func TestStrategyMatrix_CacheLifecycle(t *testing.T) {
	srv, cache := newTestServer(t, openConfig())

	w := do(t, srv, http.MethodGet, "/assessments/asm-acme/strategy-matrix", "")
	require.Equal(t, http.StatusOK, w.Code)
	var m strategy.Matrix
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, 1, m.Immediate.GapCount)
	assert.Equal(t, 1, cache.Len())

	w = do(t, srv, http.MethodDelete, "/assessments/asm-acme/strategy-matrix", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, cache.Len())
}

func TestPutGap_InvalidatesMatrix(t *testing.T) {
	srv, cache := newTestServer(t, openConfig())

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/assessments/asm-acme/strategy-matrix", "").Code)
	require.Equal(t, 1, cache.Len())

	w := do(t, srv, http.MethodPut, "/assessments/asm-acme/gaps/gap-new",
		`{"category":"vendor_risk","severity":"HIGH","priority_score":8,"estimated_cost":"UNDER_10K"}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, cache.Len())

	w = do(t, srv, http.MethodGet, "/assessments/asm-acme/strategy-matrix", "")
	var m strategy.Matrix
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, 2, m.Immediate.GapCount)
}

func TestPutGap_Errors(t *testing.T) {
	srv, _ := newTestServer(t, openConfig())

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"malformed", "/assessments/asm-acme/gaps/g1", `{"severity":`, http.StatusBadRequest},
		{"unknown field", "/assessments/asm-acme/gaps/g1", `{"severity":"LOW","colour":"red"}`, http.StatusBadRequest},
		{"unknown severity", "/assessments/asm-acme/gaps/g1", `{"severity":"SEVERE","priority_score":3}`, http.StatusUnprocessableEntity},
		{"unknown assessment", "/assessments/nope/gaps/g1", `{"severity":"LOW","priority_score":3}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestDeleteGap(t *testing.T) {
	srv, _ := newTestServer(t, openConfig())

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/assessments/asm-acme/gaps/gap-dpa", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/assessments/asm-acme/gaps/gap-dpa", "").Code)
}

func TestPutVendor_InvalidatesAll(t *testing.T) {
	srv, cache := newTestServer(t, openConfig())

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/assessments/asm-acme/strategy-matrix", "").Code)

	w := do(t, srv, http.MethodPut, "/vendors/v-new", `{"name":"Vantage","categories":["governance"]}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, cache.Len())
}

func TestPutVendor_UnknownEnum(t *testing.T) {
	srv, cache := newTestServer(t, openConfig())

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/assessments/asm-acme/strategy-matrix", "").Code)

	w := do(t, srv, http.MethodPut, "/vendors/v-new", `{"name":"Vantage","categories":["governance"],"deployment_models":["satellite"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 1, cache.Len())
}

func TestVendorMatches(t *testing.T) {
	srv, _ := newTestServer(t, openConfig())

	w := do(t, srv, http.MethodGet, "/assessments/asm-acme/vendor-matches?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res assessment.Matches
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Overall, 1)
	assert.Equal(t, "v-guard", res.Overall[0].VendorID)

	w = do(t, srv, http.MethodGet, "/assessments/asm-acme/vendor-matches?limit=-2", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScoreBatch(t *testing.T) {
	srv, _ := newTestServer(t, openConfig())

	w := do(t, srv, http.MethodPost, "/assessments/score-batch", `{"assessment_ids":["asm-acme","ghost"],"concurrency":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	var sum assessment.BatchSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)

	w = do(t, srv, http.MethodPost, "/assessments/score-batch", `{"assessment_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := openConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	srv, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/health", "").Code)
	w := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestCORS_Preflight(t *testing.T) {
	cfg := openConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	srv, _ := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/assessments/asm-acme/score", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

// failingEngine returns err from every operation.
type failingEngine struct {
	Engine
	err error
}

func (f failingEngine) Ping(context.Context) error { return f.err }

func (f failingEngine) Score(context.Context, string) (*scorer.Result, error) { return nil, f.err }

func TestInternalErrorsAreHidden(t *testing.T) {
	srv := New(failingEngine{err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}, openConfig())

	w := do(t, srv, http.MethodGet, "/assessments/a1/score", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{model.ErrUnknownValue, http.StatusUnprocessableEntity},
		{strategy.ErrPriorityScoreRange, http.StatusUnprocessableEntity},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
