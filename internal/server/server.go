// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "keystone/docs" // swagger docs
	"keystone/internal/auth"
	"keystone/internal/bootstrap"
	"keystone/internal/cache"
	"keystone/internal/config"
	"keystone/internal/database"
	"keystone/internal/featureflags"
	"keystone/internal/middleware"
	"keystone/internal/models"
	"keystone/internal/notifications"
	"keystone/internal/repository"
	"keystone/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	cache          *cache.Cache
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	featureFlags   *featureflags.Manager

	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	cartRepo    repository.CartRepository
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	notifRepo   repository.NotificationRepository

	notifier *notifications.Notifier
	hub      *notifications.Hub

	authService         *service.AuthService
	userService         *service.UserService
	cartService         *service.CartService
	catalogService      *service.CatalogService
	avatarService       *service.AvatarService
	projectService      *service.ProjectService
	taskService         *service.TaskService
	notificationService *service.NotificationService
	progressService     *service.ProgressService
}

// NewServer connects to the database and Redis described by cfg and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, revocation and route limits are then disabled and
// notifications are delivered in-process.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires a config and a database")
	}

	c := cache.New(redisClient)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		cache:          c,
		promMiddleware: middleware.InitMetrics("keystone-api"),
		featureFlags:   flags,
		userRepo:       repository.NewUserRepository(db, c),
		profileRepo:    repository.NewProfileRepository(db),
		cartRepo:       repository.NewCartRepository(db),
		projectRepo:    repository.NewProjectRepository(db),
		taskRepo:       repository.NewTaskRepository(db),
		notifRepo:      repository.NewNotificationRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret)
	s.authService = service.NewAuthService(s.userRepo, tokens, auth.NewPasswordHasher(auth.DefaultCost), c)
	s.userService = service.NewUserService(s.userRepo, s.profileRepo)
	s.cartService = service.NewCartService(s.cartRepo)
	s.catalogService = service.NewCatalogService(cfg, c, flags)
	s.avatarService = service.NewAvatarService(s.userRepo, s.profileRepo, cfg)
	s.notificationService = service.NewNotificationService(s.notifRepo, s.notifier, flags)
	s.projectService = service.NewProjectService(s.projectRepo, s.notificationService)
	s.taskService = service.NewTaskService(s.taskRepo, s.userRepo, s.notificationService)
	s.progressService = service.NewProgressService(s.projectRepo)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing runs before the context middleware so the trace ID reaches log records.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so 429 responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes mounts the shared routes plus the route groups of every enabled surface.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/health", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Keystone API Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Avatar files, served as /images/avatars/<file>.webp
	app.Static("/images", s.config.UploadDir, fiber.Static{Browse: false})

	storeEnabled := s.config.AppEnabled(config.AppStore)
	trackerEnabled := s.config.AppEnabled(config.AppTracker)

	// Public routes must be registered before the protected group's auth middleware.
	if storeEnabled {
		s.setupStorePublicRoutes(api)
	}
	if trackerEnabled {
		s.setupTrackerPublicRoutes(app, api, !storeEnabled)
	}

	protected := api.Group("", s.AuthRequired())
	protected.Get("/feature-flags", s.GetFeatureFlags)

	if storeEnabled {
		s.setupStoreRoutes(protected)
	}
	if trackerEnabled {
		s.setupTrackerRoutes(app, protected)
	}
}

func (s *Server) setupStorePublicRoutes(api fiber.Router) {
	authGroup := api.Group("/auth")
	authGroup.Post("/register", s.routeLimit(5, 10*time.Minute, "register"), s.Register)
	authGroup.Post("/login", s.routeLimit(10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/logout", s.AuthRequired(), s.Logout)

	games := api.Group("/games")
	games.Get("/sponsored", s.GetSponsoredGames)
	games.Get("/popular", s.GetPopularGames)
}

func (s *Server) setupStoreRoutes(protected fiber.Router) {
	users := protected.Group("/users")
	users.Get("/me", s.GetMe)
	users.Post("/upsert", s.UpsertProfile)
	users.Get("/profile", s.GetProfile)
	users.Post("/avatar", s.UploadAvatar)

	cart := protected.Group("/cart")
	cart.Get("/", s.GetCart)
	cart.Post("/", s.CreateCartItem)
	cart.Post("/add", s.AddToCart)
	cart.Post("/remove", s.RemoveFromCart)
}

func (s *Server) setupTrackerPublicRoutes(app, api fiber.Router, mountAPIAuth bool) {
	authGroup := app.Group("/auth")
	authGroup.Post("/signup", s.routeLimit(5, 10*time.Minute, "register"), s.Signup)
	authGroup.Post("/register", s.routeLimit(5, 10*time.Minute, "register"), s.Signup)
	authGroup.Post("/login", s.routeLimit(10, 5*time.Minute, "login"), s.TrackerLogin)
	authGroup.Post("/logout", s.AuthRequired(), s.Logout)

	// Without the store surface the /api/auth routes belong to the tracker.
	if mountAPIAuth {
		apiAuth := api.Group("/auth")
		apiAuth.Post("/register", s.routeLimit(5, 10*time.Minute, "register"), s.Signup)
		apiAuth.Post("/login", s.routeLimit(10, 5*time.Minute, "login"), s.TrackerLogin)
		apiAuth.Post("/logout", s.AuthRequired(), s.Logout)
	}
}

func (s *Server) setupTrackerRoutes(app, protected fiber.Router) {
	projects := app.Group("/projects", s.AuthRequired())
	projects.Get("/", s.GetProjects)
	projects.Post("/", s.CreateProject)
	projects.Get("/:id", s.GetProject)
	projects.Put("/:id", s.UpdateProject)
	projects.Delete("/:id", s.DeleteProject)

	tasks := app.Group("/tasks", s.AuthRequired())
	tasks.Get("/", s.GetTasks)
	tasks.Post("/", s.CreateTask)
	// Specific /:id/complete before the generic /:id routes
	tasks.Patch("/:id/complete", s.CompleteTask)
	tasks.Get("/:id", s.GetTask)
	tasks.Put("/:id", s.UpdateTask)
	tasks.Delete("/:id", s.DeleteTask)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Put("/:id/read", s.MarkNotificationRead)

	protected.Get("/progress", s.GetProgress)
	protected.Get("/ws/notifications", s.WebSocketNotificationsHandler())
}

// routeLimit applies a Redis-backed per-route limit outside development and test.
func (s *Server) routeLimit(limit int, window time.Duration, name string) fiber.Handler {
	if s.config.Env == "development" || s.config.Env == "test" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.RateLimit(s.redis, limit, window, name)
}

// HealthCheck handles GET /api/health
// @Summary Basic health check
// @Tags health
// @Produce json
// @Success 200 {object} object{ok=bool}
// @Router /health [get]
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: without it the
// server still serves every route, so only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus, redisStatus := "healthy", "unavailable"
	var probes errgroup.Group
	probes.Go(func() error {
		if err := database.Ping(ctx, s.db); err != nil {
			dbStatus = "unhealthy"
		}
		return nil
	})
	if s.redis != nil {
		probes.Go(func() error {
			redisStatus = "healthy"
			if err := s.redis.Ping(ctx).Err(); err != nil {
				redisStatus = "unhealthy"
			}
			return nil
		})
	}
	_ = probes.Wait()

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"apps":   s.config.Apps(),
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware. Browsers cannot set headers on a
// websocket handshake, so /api/ws routes also accept the token as a query parameter.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""
		if parts := strings.Fields(c.Get(fiber.HeaderAuthorization)); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenString = parts[1]
		}
		if tokenString == "" && strings.HasPrefix(c.Path(), "/api/ws") {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Missing token"))
		}

		claims, err := s.authService.Authenticate(c.UserContext(), tokenString)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		userID, err := claims.UserID()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token"))
		}

		c.Locals("userID", userID)
		c.Locals("claims", claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))

		return c.Next()
	}
}

// App builds the Fiber application without listening. Tests drive it with app.Test.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName:   "Keystone API",
		BodyLimit: int(s.config.MaxUploadBytes()) + 1<<20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, errors.New(fe.Message))
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// StartWiring connects the notifier to the websocket hub until ctx is cancelled.
func (s *Server) StartWiring(ctx context.Context) error {
	return s.hub.StartWiring(ctx, s.notifier)
}

// baseContext outlives single requests and ends at shutdown.
func (s *Server) baseContext() context.Context {
	if s.shutdownCtx != nil {
		return s.shutdownCtx
	}
	return context.Background()
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if err := s.StartWiring(s.shutdownCtx); err != nil {
		middleware.Logger.Error("failed to start notification wiring", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("server starting",
		slog.String("port", s.config.Port),
		slog.Any("apps", s.config.Apps()),
	)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down notification hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
