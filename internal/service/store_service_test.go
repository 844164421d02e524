package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"keystone/internal/cache"
	"keystone/internal/featureflags"
	"keystone/internal/models"
	"keystone/internal/repository"
	"keystone/internal/testutil"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService(t *testing.T) {
	env := newTestEnv(t, "")
	svc := NewCartService(repository.NewCartRepository(env.db))
	alice := env.user(t, "alice")
	ctx := context.Background()

	item, err := svc.Add(ctx, AddToCartInput{UserID: alice.ID, GameID: "elden-ring", Name: "Elden Ring", Price: 59.99})
	require.NoError(t, err)
	assert.NotZero(t, item.ID)

	_, err = svc.Add(ctx, AddToCartInput{UserID: alice.ID, GameID: "elden-ring"})
	assert.Equal(t, 409, models.StatusFor(err))

	_, err = svc.Add(ctx, AddToCartInput{UserID: alice.ID})
	assert.EqualError(t, err, "gameId required")

	assert.EqualError(t, svc.Remove(ctx, alice.ID, " "), "gameId required")
	require.NoError(t, svc.Remove(ctx, alice.ID, "elden-ring"))
	require.NoError(t, svc.Remove(ctx, alice.ID, "never-added"))

	items, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUserService_Profile(t *testing.T) {
	env := newTestEnv(t, "")
	svc := NewUserService(env.users, env.profiles)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	ctx := context.Background()

	none, err := svc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	p, err := svc.UpsertProfile(ctx, UpsertProfileInput{UserID: alice.ID, Username: "ali", Name: "Alice", IsComplete: true})
	require.NoError(t, err)
	assert.True(t, p.IsComplete)

	_, err = svc.UpsertProfile(ctx, UpsertProfileInput{UserID: bob.ID, Username: "ali"})
	assert.Equal(t, 409, models.StatusFor(err))
	assert.EqualError(t, err, "Username already in use")

	// Re-saving your own username is fine, and omitted fields are cleared.
	p, err = svc.UpsertProfile(ctx, UpsertProfileInput{UserID: alice.ID, Username: "ali"})
	require.NoError(t, err)
	assert.Empty(t, p.Name)
	assert.False(t, p.IsComplete)

	me, err := svc.Me(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
	assert.Empty(t, me.Password)
}

func newCatalogTestService(t *testing.T, upstream *httptest.Server, apiKey string, c *cache.Cache, flags string) *CatalogService {
	t.Helper()
	cfg := testutil.NewConfig(t)
	cfg.RAWGAPIKey = apiKey
	if upstream != nil {
		cfg.RAWGBaseURL = upstream.URL
	}
	return NewCatalogService(cfg, c, featureflags.NewManager(flags))
}

func TestCatalogService_Sponsored(t *testing.T) {
	svc := newCatalogTestService(t, nil, "", nil, "")
	games, err := svc.Sponsored()
	require.NoError(t, err)
	require.Len(t, games, 5)
	assert.Equal(t, models.GameID("elden-ring"), games[0].ID)
	assert.NotEmpty(t, games[0].CoverURL)

	games[0].Name = "mutated"
	again, err := svc.Sponsored()
	require.NoError(t, err)
	assert.Equal(t, "Elden Ring", again[0].Name)
}

func TestCatalogService_Popular(t *testing.T) {
	var calls int32
	var lastQuery atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		lastQuery.Store(r.URL.RawQuery)
		if r.URL.Path != "/games" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":3498,"name":"GTA V","background_image":"https://img/gta.jpg","released":"2013-09-17","rating":4.47}]}`))
	}))
	defer upstream.Close()

	_, rdb := testutil.NewRedis(t)
	svc := newCatalogTestService(t, upstream, "k", cache.New(rdb), "")
	ctx := context.Background()

	games, err := svc.Popular(ctx, PopularQuery{PageSize: 500, Publisher: "rockstar"})
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, models.Game{ID: "3498", Name: "GTA V", CoverURL: "https://img/gta.jpg", Released: "2013-09-17", Rating: 4.47}, games[0])

	query, _ := lastQuery.Load().(string)
	assert.Contains(t, query, "page_size=40")
	assert.Contains(t, query, "page=1")
	assert.Contains(t, query, "ordering=-rating")
	assert.Contains(t, query, "publishers=rockstar")
	assert.Contains(t, query, "key=k")

	_, err = svc.Popular(ctx, PopularQuery{PageSize: 500, Publisher: "rockstar"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call should be served from cache")

	t.Run("cache flag off always calls upstream", func(t *testing.T) {
		uncached := newCatalogTestService(t, upstream, "k", cache.New(rdb), "catalog_cache=off")
		before := atomic.LoadInt32(&calls)
		_, err := uncached.Popular(ctx, PopularQuery{PageSize: 500, Publisher: "rockstar"})
		require.NoError(t, err)
		assert.Equal(t, before+1, atomic.LoadInt32(&calls))
	})
}

func TestPopularQuery_CacheKeyEscapesValues(t *testing.T) {
	a := PopularQuery{Ordering: "x", Publisher: "y&pub="}.normalized()
	b := PopularQuery{Ordering: "x&pub=y", Publisher: ""}.normalized()
	assert.NotEqual(t, a.cacheKey(), b.cacheKey())

	same := PopularQuery{Page: 2, PageSize: 20, Ordering: "-added", Publisher: "rockstar"}.normalized()
	assert.Equal(t, same.cacheKey(), PopularQuery{Page: 2, PageSize: 20, Ordering: " -added ", Publisher: "rockstar "}.normalized().cacheKey())
}

func TestCatalogService_PopularErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		svc := newCatalogTestService(t, nil, "", nil, "")
		_, err := svc.Popular(context.Background(), PopularQuery{})
		assert.Equal(t, 500, models.StatusFor(err))
		assert.EqualError(t, err, "RAWG_API_KEY not set")
	})

	t.Run("upstream failure", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer upstream.Close()

		svc := newCatalogTestService(t, upstream, "bad", nil, "")
		_, err := svc.Popular(context.Background(), PopularQuery{})
		assert.Equal(t, 502, models.StatusFor(err))
		assert.True(t, strings.HasPrefix(err.Error(), "Failed to fetch from RAWG"))
	})
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// withPNGSize rewrites the IHDR dimensions of a PNG, leaving the pixel data untouched.
func withPNGSize(data []byte, w, h uint32) []byte {
	out := bytes.Clone(data)
	// signature(8) + length(4) + "IHDR"(4), then width and height.
	binary.BigEndian.PutUint32(out[16:], w)
	binary.BigEndian.PutUint32(out[20:], h)
	binary.BigEndian.PutUint32(out[29:], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestAvatarService_Upload(t *testing.T) {
	env := newTestEnv(t, "")
	cfg := testutil.NewConfig(t)
	svc := NewAvatarService(env.users, env.profiles, cfg)
	alice := env.user(t, "alice")
	ctx := context.Background()

	_, err := env.profiles.Upsert(ctx, &models.Profile{UserID: alice.ID, Username: "ali"})
	require.NoError(t, err)

	url, err := svc.Upload(ctx, UploadAvatarInput{UserID: alice.ID, ContentType: "image/png", Content: testPNG(t, 600, 300)})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, AvatarURLPrefix))

	path := filepath.Join(cfg.UploadDir, "avatars", strings.TrimPrefix(url, AvatarURLPrefix))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfgImg, err := webp.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, AvatarSize, cfgImg.Width)
	assert.Equal(t, AvatarSize, cfgImg.Height)

	me, err := env.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, url, me.AvatarURL)
	profile, err := env.profiles.GetByUserID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, url, profile.AvatarURL)

	t.Run("rejects non-images and oversize files", func(t *testing.T) {
		_, err := svc.Upload(ctx, UploadAvatarInput{UserID: alice.ID, Content: []byte("plain text, not an image")})
		assert.EqualError(t, err, "Invalid image type")

		_, err = svc.Upload(ctx, UploadAvatarInput{UserID: alice.ID})
		assert.EqualError(t, err, "No file uploaded")

		_, err = svc.Upload(ctx, UploadAvatarInput{UserID: alice.ID, Content: make([]byte, cfg.MaxUploadBytes()+1)})
		assert.Equal(t, 400, models.StatusFor(err))
	})

	t.Run("rejects huge dimensions before decoding", func(t *testing.T) {
		small := testPNG(t, 8, 8)
		for _, size := range [][2]uint32{{30000, 30000}, {MaxAvatarDimension + 1, 16}, {16, MaxAvatarDimension + 1}} {
			content := withPNGSize(small, size[0], size[1])
			require.Less(t, int64(len(content)), cfg.MaxUploadBytes())

			_, err := svc.Upload(ctx, UploadAvatarInput{UserID: alice.ID, ContentType: "image/png", Content: content})
			assert.EqualError(t, err, "Image too large", "%dx%d", size[0], size[1])
			assert.Equal(t, 400, models.StatusFor(err))
		}

		me, err := env.users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, url, me.AvatarURL, "rejected uploads keep the previous avatar")
	})
}
