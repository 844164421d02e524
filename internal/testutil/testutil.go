// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"keystone/internal/config"
	"keystone/internal/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TestJWTSecret signs tokens in tests.
const TestJWTSecret = "test-secret-that-is-long-enough-for-hs256"

// NewDB returns a migrated in-memory SQLite database. The pool is pinned to one
// connection because every new ":memory:" connection is a separate empty database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewRedis starts a miniredis server and a client connected to it.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

// NewConfig returns a test configuration with both surfaces enabled.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	return &config.Config{
		Port:               "0",
		Env:                "test",
		JWTSecret:          TestJWTSecret,
		StoreTokenTTL:      168 * time.Hour,
		TrackerTokenTTL:    24 * time.Hour,
		DBDriver:           "sqlite",
		DBDSN:              ":memory:",
		AllowedOrigins:     "http://localhost:5173",
		EnabledApps:        "store,tracker",
		RAWGBaseURL:        "http://127.0.0.1:0",
		CatalogTimeout:     2 * time.Second,
		CatalogCacheTTL:    time.Minute,
		UploadDir:          filepath.Join(t.TempDir(), "uploads"),
		MaxUploadMB:        2,
		TracingSampleRatio: 1,
	}
}
