package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keystone/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	UserKeyPrefix        = "user:%d"
	CatalogPopularPrefix = "catalog:popular:%s"
	RevokedTokenPrefix   = "blacklist:%s"
)

const (
	UserTTL = 5 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func CatalogPopularKey(query string) string {
	return fmt.Sprintf(CatalogPopularPrefix, query)
}

func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(RevokedTokenPrefix, jti)
}

// Cache wraps an optional Redis client. Every method is a no-op (or a miss) when the
// client is nil, so the API keeps working without Redis.
type Cache struct {
	rdb *redis.Client
}

// New returns a Cache backed by rdb, which may be nil.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Client exposes the underlying Redis client, or nil.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetJSON decodes the value at key into dest. It reports false on a miss or any error.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if !c.Enabled() {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		middleware.Logger.WarnContext(ctx, "cache entry corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// SetJSON stores value at key for ttl. Failures are logged and otherwise ignored.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Aside serves dest from key when present; otherwise it calls fetch, which must fill dest,
// and caches the result for ttl.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if c.GetJSON(ctx, key, dest) {
		return nil
	}
	if err := fetch(); err != nil {
		return err
	}
	c.SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate deletes key.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	c.rdb.Del(ctx, key)
}

func (c *Cache) InvalidateUser(ctx context.Context, userID uint) {
	c.Invalidate(ctx, UserKey(userID))
}

// RevokeToken blacklists a token id until its natural expiry.
func (c *Cache) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if !c.Enabled() || jti == "" || ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, RevokedTokenKey(jti), "1", ttl).Err()
}

// IsTokenRevoked reports whether jti was revoked. Lookup errors count as not revoked.
func (c *Cache) IsTokenRevoked(ctx context.Context, jti string) bool {
	if !c.Enabled() || jti == "" {
		return false
	}
	n, err := c.rdb.Exists(ctx, RevokedTokenKey(jti)).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "revocation lookup failed", slog.String("error", err.Error()))
		return false
	}
	return n > 0
}
