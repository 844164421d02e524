package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"keystone/internal/config"
	"keystone/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// newTestServer builds a server over an in-memory database. rdb may be nil.
func newTestServer(t *testing.T, cfg *config.Config, rdb *redis.Client) (*Server, *fiber.App) {
	t.Helper()
	if cfg == nil {
		cfg = testutil.NewConfig(t)
	}
	s, err := NewServerWithDeps(cfg, testutil.NewDB(t), rdb)
	require.NoError(t, err)
	return s, s.App()
}

// doJSON sends body (if any) as JSON and returns the status and raw response body.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

type authBody struct {
	Token string `json:"token"`
	User  struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

// register creates an account through the store API and returns its token and id.
func register(t *testing.T, app *fiber.App, username string) (string, uint) {
	t.Helper()
	status, data := doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": username,
		"email":    username + "@x.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusCreated, status, string(data))
	res := decode[authBody](t, data)
	require.NotEmpty(t, res.Token)
	return res.Token, res.User.ID
}

// trackerSignup creates an account through the tracker API.
func trackerSignup(t *testing.T, app *fiber.App, username string) (string, uint) {
	t.Helper()
	status, data := doJSON(t, app, http.MethodPost, "/auth/signup", "", fiber.Map{
		"username": username,
		"email":    username + "@x.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusCreated, status, string(data))
	res := decode[authBody](t, data)
	return res.Token, res.User.ID
}

func errorMessage(t *testing.T, data []byte) string {
	t.Helper()
	return decode[map[string]any](t, data)["error"].(string)
}
