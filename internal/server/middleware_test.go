package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"keystone/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

func TestSetupMiddleware_RateLimitedResponseIncludesCORSHeaders(t *testing.T) {
	srv := &Server{config: testutil.NewConfig(t)}

	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Get("/limited", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.Header.Set("Origin", testOrigin)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.Header.Set("Origin", testOrigin)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSetupMiddleware_PreflightBypassesLimiter(t *testing.T) {
	srv := &Server{config: testutil.NewConfig(t)}

	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Post("/limited", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodPost, "/limited", nil)
		req.Header.Set("Origin", testOrigin)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	limitedReq := httptest.NewRequest(http.MethodPost, "/limited", nil)
	limitedReq.Header.Set("Origin", testOrigin)
	limitedResp, err := app.Test(limitedReq, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, limitedResp.StatusCode)
	_ = limitedResp.Body.Close()

	preflightReq := httptest.NewRequest(http.MethodOptions, "/limited", nil)
	preflightReq.Header.Set("Origin", testOrigin)
	preflightReq.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflightReq.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	preflightResp, err := app.Test(preflightReq, -1)
	require.NoError(t, err)
	defer func() { _ = preflightResp.Body.Close() }()

	assert.Equal(t, fiber.StatusNoContent, preflightResp.StatusCode)
	assert.Equal(t, testOrigin, preflightResp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, preflightResp.Header.Get("Access-Control-Allow-Methods"), http.MethodPatch)
}

func TestSetupMiddleware_SecurityHeadersAndRequestID(t *testing.T) {
	_, app := newTestServer(t, nil, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "cross-origin", resp.Header.Get("Cross-Origin-Resource-Policy"))
}

func TestHealthEndpoints(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	s, app := newTestServer(t, nil, rdb)

	status, data := doJSON(t, app, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	status, data = doJSON(t, app, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", decode[map[string]any](t, data)["status"])

	type readiness struct {
		Status string            `json:"status"`
		Apps   []string          `json:"apps"`
		Checks map[string]string `json:"checks"`
	}

	status, data = doJSON(t, app, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status, string(data))
	ready := decode[readiness](t, data)
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, []string{"store", "tracker"}, ready.Apps)
	assert.Equal(t, map[string]string{"database": "healthy", "redis": "healthy"}, ready.Checks)

	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	status, data = doJSON(t, app, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	ready = decode[readiness](t, data)
	assert.Equal(t, "unhealthy", ready.Status)
	assert.Equal(t, "unhealthy", ready.Checks["database"])
}

func TestReadiness_WithoutRedis(t *testing.T) {
	_, app := newTestServer(t, nil, nil)

	status, data := doJSON(t, app, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status)
	checks := decode[map[string]any](t, data)["checks"].(map[string]any)
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestUnknownRoute(t *testing.T) {
	_, app := newTestServer(t, nil, nil)

	status, data := doJSON(t, app, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, errorMessage(t, data))
}

func TestFeatureFlags(t *testing.T) {
	cfg := testutil.NewConfig(t)
	cfg.FeatureFlags = "catalog_cache=off"
	_, app := newTestServer(t, cfg, nil)
	token, _ := register(t, app, "alice")

	status, data := doJSON(t, app, http.MethodGet, "/api/feature-flags", token, nil)
	require.Equal(t, http.StatusOK, status)
	body := decode[struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}](t, data)
	assert.Equal(t, "off", body.Raw["catalog_cache"])
	assert.False(t, body.Evaluated["catalog_cache"])
	assert.True(t, body.Evaluated["task_notifications"])
}
