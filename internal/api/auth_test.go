package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"matchwell/internal/config"

	"github.com/stretchr/testify/assert"
)

func adminTestConfig() config.AdminConfig {
	return config.AdminConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{
			{Key: "ops-key", Extra: "ops-extra", Name: "ops", Permissions: []string{"read:leads", "read:stats"}},
			{Key: "root-key", Extra: "root-extra", Name: "root"},
		},
	}
}

func doAuthRequest(auth *AdminAuth, method, path, key, extra string) *httptest.ResponseRecorder {
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	if extra != "" {
		req.Header.Set("x-api-extra", extra)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuthDisabledPassesThrough(t *testing.T) {
	auth := NewAdminAuth(config.AdminConfig{Enabled: false})

	rec := doAuthRequest(auth, http.MethodGet, "/api/v1/admin/leads", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuthMissingHeaders(t *testing.T) {
	auth := NewAdminAuth(adminTestConfig())

	rec := doAuthRequest(auth, http.MethodGet, "/api/v1/admin/leads", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doAuthRequest(auth, http.MethodGet, "/api/v1/admin/leads", "ops-key", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthInvalidCredentials(t *testing.T) {
	auth := NewAdminAuth(adminTestConfig())

	rec := doAuthRequest(auth, http.MethodGet, "/api/v1/admin/leads", "unknown-key", "ops-extra")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doAuthRequest(auth, http.MethodGet, "/api/v1/admin/leads", "ops-key", "wrong-extra")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthPermissions(t *testing.T) {
	auth := NewAdminAuth(adminTestConfig())

	// ops can read leads and stats but not write.
	rec := doAuthRequest(auth, http.MethodGet, "/api/v1/admin/leads", "ops-key", "ops-extra")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doAuthRequest(auth, http.MethodGet, "/api/v1/admin/stats/funnel", "ops-key", "ops-extra")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doAuthRequest(auth, http.MethodPost, "/api/v1/admin/leads/1/archive", "ops-key", "ops-extra")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doAuthRequest(auth, http.MethodGet, "/api/v1/admin/export/leads", "ops-key", "ops-extra")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// An empty permission list allows everything.
	rec = doAuthRequest(auth, http.MethodPost, "/api/v1/admin/bookings/1/confirm", "root-key", "root-extra")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuthRateLimit(t *testing.T) {
	cfg := adminTestConfig()
	cfg.RPS = 0.001
	cfg.Burst = 2
	auth := NewAdminAuth(cfg)

	for i := 0; i < 2; i++ {
		rec := doAuthRequest(auth, http.MethodGet, "/api/v1/admin/leads", "ops-key", "ops-extra")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doAuthRequest(auth, http.MethodGet, "/api/v1/admin/leads", "ops-key", "ops-extra")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different key gets its own bucket.
	rec = doAuthRequest(auth, http.MethodGet, "/api/v1/admin/bookings/1", "root-key", "root-extra")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuthCustomHeaders(t *testing.T) {
	cfg := adminTestConfig()
	cfg.HeaderAPIKey = "X-Matchwell-Key"
	cfg.HeaderExtra = "X-Matchwell-Extra"
	auth := NewAdminAuth(cfg)

	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/leads", nil)
	req.Header.Set("x-matchwell-key", "ops-key")
	req.Header.Set("x-matchwell-extra", "ops-extra")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
