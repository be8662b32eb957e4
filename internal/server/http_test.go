package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall/speakscore/internal/config"
	httphandler "github.com/windfall/speakscore/internal/handler/http"
	"github.com/windfall/speakscore/internal/logger"
	"github.com/windfall/speakscore/internal/repository"
	"github.com/windfall/speakscore/internal/service"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return newTestRouterForEnv(t, "production")
}

func newTestRouterForEnv(t *testing.T, env string) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Environment:        env,
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type"},
	}
	log := logger.NewNop()

	assessments := service.NewAssessmentService(nil, nil, nil, nil, service.AssessmentConfig{UploadDir: t.TempDir()}, log)
	users := service.NewUserService(repository.NewInMemoryUserRepository())

	return NewRouter(cfg, log,
		httphandler.NewHealthHandler(nil),
		httphandler.NewAssessmentHandler(log, assessments, 0),
		httphandler.NewUserHandler(log, users),
	)
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/analyze-writing", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/analyze-writing", `{"text":""}`, http.StatusBadRequest},
		{http.MethodPost, "/transcribe", "", http.StatusBadRequest},
		{http.MethodPost, "/user", `{"name":"Ana","email":"ana@example.com"}`, http.StatusCreated},
		{http.MethodGet, "/results/unknown", "", http.StatusNotFound},
		{http.MethodGet, "/live", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("Content-Type"))
		})
	}
}

func TestRouter_UnknownRouteIsJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Route not found"}`, rec.Body.String())
}

func TestRouter_ProfilerOnlyInDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"development", http.StatusOK},
		{"production", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouterForEnv(t, tt.env).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
