// Package bootstrap wires the process-wide runtime: database, Redis, tracing and demo data.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"keystone/internal/cache"
	"keystone/internal/config"
	"keystone/internal/database"
	"keystone/internal/middleware"
	"keystone/internal/models"
	"keystone/internal/observability"
	"keystone/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with demo data.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis. The Redis client is nil when Redis is
// unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	if opts.SeedDemo {
		if err := ensureDemoData(context.Background(), cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, rdb, nil
}

// InitTracing configures OpenTelemetry from cfg and returns its shutdown function.
func InitTracing(cfg *config.Config) (func(context.Context) error, error) {
	return observability.InitTracing(observability.TracingConfig{
		ServiceName:    "keystone-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
}

func ensureDemoData(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if !strings.EqualFold(cfg.Env, "development") {
		return nil
	}

	var users int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}

	opts := seed.DefaultOptions()
	opts.Clean = false
	if _, err := seed.NewSeeder(db, 0).Run(ctx, opts); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "demo data seeded", slog.String("password", seed.DemoPassword))
	return nil
}
