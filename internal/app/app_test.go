package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SGK112/CRM-sub002/internal/observability"
	"github.com/SGK112/CRM-sub002/internal/shared"
	_ "github.com/SGK112/CRM-sub002/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SHARE_PDF_CACHE_TTL", "2m")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 20, cfg.NumberingProbeLimit)
	assert.Equal(t, 5, cfg.NumberingInsertRetries)
	assert.Equal(t, "2m0s", cfg.SharePDFCacheTTL.String())
	assert.False(t, cfg.DBAutoMigrate)
}

func TestLoadConfigRejectsBadNumbering(t *testing.T) {
	t.Setenv("NUMBERING_PROBE_LIMIT", "0")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestInTestModeFollowsGuard(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "false")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv(testModeEnv, "true")
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{LogFormat: "json", AppEnv: "production"}).Info("started", slog.Int64("workspace_id", 7))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "crm", line["service"])
	assert.EqualValues(t, 7, line["workspace_id"])
}

func TestIdentityMiddleware(t *testing.T) {
	var seen shared.Identity
	h := IdentityMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name      string
		workspace string
		user      string
		code      int
	}{
		{"valid", "3", "42", http.StatusNoContent},
		{"read only", "3", "", http.StatusNoContent},
		{"missing workspace", "", "42", http.StatusUnauthorized},
		{"zero workspace", "0", "42", http.StatusUnauthorized},
		{"garbage workspace", "abc", "42", http.StatusUnauthorized},
		{"garbage user", "3", "x", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/estimates", nil)
			if tc.workspace != "" {
				req.Header.Set(HeaderWorkspaceID, tc.workspace)
			}
			if tc.user != "" {
				req.Header.Set(HeaderUserID, tc.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
	assert.Equal(t, shared.Identity{WorkspaceID: 3}, seen)
}

func TestRouterServesHealthAndGuardsAPI(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  &Config{AppEnv: "test"},
		Metrics: metrics,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invoices", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crm_http_requests_total")
}
