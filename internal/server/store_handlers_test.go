package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"keystone/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart(t *testing.T) {
	_, app := newTestServer(t, nil, nil)
	token, uid := register(t, app, "alice")

	status, data := doJSON(t, app, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", string(data))

	item := fiber.Map{"gameId": "elden-ring", "name": "Elden Ring", "price": 59.99}
	status, data = doJSON(t, app, http.MethodPost, "/api/cart", token, item)
	require.Equal(t, http.StatusCreated, status, string(data))
	created := decode[map[string]any](t, data)
	assert.Equal(t, "elden-ring", created["gameId"])
	assert.EqualValues(t, uid, created["userId"])

	status, data = doJSON(t, app, http.MethodPost, "/api/cart/add", token, item)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Game already in cart", errorMessage(t, data))

	status, data = doJSON(t, app, http.MethodPost, "/api/cart/add", token, fiber.Map{"gameId": "god-of-war"})
	assert.Equal(t, http.StatusOK, status, string(data))

	status, _ = doJSON(t, app, http.MethodPost, "/api/cart", token, fiber.Map{"name": "no id"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/cart", token, fiber.Map{"gameId": "x", "price": "free"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, data = doJSON(t, app, http.MethodPost, "/api/cart/remove", token, fiber.Map{"gameId": "elden-ring"})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"success":true}`, string(data))

	// Removing a game that is not in the cart still succeeds.
	status, _ = doJSON(t, app, http.MethodPost, "/api/cart/remove", token, fiber.Map{"gameId": "elden-ring"})
	assert.Equal(t, http.StatusOK, status)

	status, data = doJSON(t, app, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, status)
	cart := decode[[]map[string]any](t, data)
	require.Len(t, cart, 1)
	assert.Equal(t, "god-of-war", cart[0]["gameId"])

	status, data = doJSON(t, app, http.MethodPost, "/api/cart", token, fiber.Map{"gameId": 3498, "name": "GTA V"})
	require.Equal(t, http.StatusCreated, status, string(data))
	assert.Equal(t, "3498", decode[map[string]any](t, data)["gameId"])
	status, _ = doJSON(t, app, http.MethodPost, "/api/cart/add", token, fiber.Map{"gameId": "3498"})
	assert.Equal(t, http.StatusConflict, status, "numeric and string ids name the same game")
	status, _ = doJSON(t, app, http.MethodPost, "/api/cart/remove", token, fiber.Map{"gameId": 3498})
	require.Equal(t, http.StatusOK, status)

	status, data = doJSON(t, app, http.MethodPost, "/api/cart", token, fiber.Map{"gameId": true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "gameId must be a string or a number", errorMessage(t, data))

	other, _ := register(t, app, "bob")
	status, data = doJSON(t, app, http.MethodGet, "/api/cart", other, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", string(data))
}

func TestProfile(t *testing.T) {
	_, app := newTestServer(t, nil, nil)
	token, _ := register(t, app, "alice")
	other, _ := register(t, app, "bob")

	status, data := doJSON(t, app, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "{}", string(data))

	status, data = doJSON(t, app, http.MethodPost, "/api/users/upsert", token, fiber.Map{
		"name": "Alice", "username": "ally", "phone": "555", "isComplete": true,
	})
	require.Equal(t, http.StatusOK, status, string(data))

	status, data = doJSON(t, app, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	profile := decode[map[string]any](t, data)
	assert.Equal(t, "Alice", profile["name"])
	assert.Equal(t, "ally", profile["username"])
	assert.Equal(t, true, profile["isComplete"])

	// The upsert replaces every field.
	status, _ = doJSON(t, app, http.MethodPost, "/api/users/upsert", token, fiber.Map{"name": "A"})
	require.Equal(t, http.StatusOK, status)
	_, data = doJSON(t, app, http.MethodGet, "/api/users/profile", token, nil)
	profile = decode[map[string]any](t, data)
	assert.Equal(t, "", profile["username"])
	assert.Equal(t, false, profile["isComplete"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/users/upsert", other, fiber.Map{"username": "ally"})
	assert.Equal(t, http.StatusOK, status, "the username was released by the previous upsert")
	status, _ = doJSON(t, app, http.MethodPost, "/api/users/upsert", token, fiber.Map{"username": "ally"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestGames_Sponsored(t *testing.T) {
	_, app := newTestServer(t, nil, nil)

	status, data := doJSON(t, app, http.MethodGet, "/api/games/sponsored", "", nil)
	require.Equal(t, http.StatusOK, status)
	games := decode[[]map[string]any](t, data)
	require.NotEmpty(t, games)
	assert.Equal(t, "elden-ring", games[0]["id"])
	assert.NotEmpty(t, games[0]["coverUrl"])
}

func TestGames_PopularWithoutKey(t *testing.T) {
	_, app := newTestServer(t, nil, nil)

	status, data := doJSON(t, app, http.MethodGet, "/api/games/popular", "", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "RAWG_API_KEY not set", errorMessage(t, data))
}

func TestGames_PopularProxiesAndCaches(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/games", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.Equal(t, "40", r.URL.Query().Get("page_size"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"results":[{"id":3498,"name":"GTA V","background_image":"https://img/gta.jpg","rating":4.47}]}`)
	}))
	t.Cleanup(upstream.Close)

	_, rdb := testutil.NewRedis(t)
	cfg := testutil.NewConfig(t)
	cfg.RAWGAPIKey = "k"
	cfg.RAWGBaseURL = upstream.URL
	_, app := newTestServer(t, cfg, rdb)

	for i := 0; i < 2; i++ {
		status, data := doJSON(t, app, http.MethodGet, "/api/games/popular?page_size=500", "", nil)
		require.Equal(t, http.StatusOK, status, string(data))
		games := decode[[]map[string]any](t, data)
		require.Len(t, games, 1)
		assert.Equal(t, float64(3498), games[0]["id"], "RAWG ids stay numeric")
		assert.Equal(t, "https://img/gta.jpg", games[0]["coverUrl"])
	}
	assert.EqualValues(t, 1, calls.Load(), "second request is served from cache")
}

func TestGames_PopularUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(upstream.Close)

	cfg := testutil.NewConfig(t)
	cfg.RAWGAPIKey = "bad"
	cfg.RAWGBaseURL = upstream.URL
	_, app := newTestServer(t, cfg, nil)

	status, data := doJSON(t, app, http.MethodGet, "/api/games/popular", "", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Failed to fetch from RAWG", errorMessage(t, data))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadAvatar(t *testing.T, app *fiber.App, token, field, contentType string, content []byte) (int, []byte) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="avatar.png"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/users/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestUploadAvatar(t *testing.T) {
	_, app := newTestServer(t, nil, nil)
	token, _ := register(t, app, "alice")
	status, _ := doJSON(t, app, http.MethodPost, "/api/users/upsert", token, fiber.Map{"name": "Alice"})
	require.Equal(t, http.StatusOK, status)

	status, data := uploadAvatar(t, app, token, "avatar", "image/png", pngBytes(t, 40, 20))
	require.Equal(t, http.StatusOK, status, string(data))
	url, _ := decode[map[string]any](t, data)["avatarUrl"].(string)
	require.True(t, strings.HasPrefix(url, "/images/avatars/"), url)
	assert.True(t, strings.HasSuffix(url, ".webp"), url)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, data = doJSON(t, app, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, url, decode[map[string]any](t, data)["avatarUrl"])
	_, data = doJSON(t, app, http.MethodGet, "/api/users/profile", token, nil)
	assert.Equal(t, url, decode[map[string]any](t, data)["avatarUrl"])

	status, data = uploadAvatar(t, app, token, "file", "image/png", pngBytes(t, 4, 4))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "No file uploaded", errorMessage(t, data))

	status, data = uploadAvatar(t, app, token, "avatar", "text/plain", []byte("plain text, not an image"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid image type", errorMessage(t, data))
}
