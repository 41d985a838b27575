// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "inspiro/docs" // swagger docs
	"inspiro/internal/bootstrap"
	"inspiro/internal/config"
	"inspiro/internal/featureflags"
	"inspiro/internal/imaging"
	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/notifications"
	"inspiro/internal/repository"
	"inspiro/internal/service"
	"inspiro/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	host     storage.Host
	notifier *notifications.Notifier
	hub      *notifications.Hub
	eventLog *notifications.EventLog
	reaper   *service.AssetReaper
	flags    *featureflags.Manager

	postService       *service.PostService
	engagementService *service.EngagementService
	accountService    *service.AccountService
	profileService    *service.ProfileService
	procedures        map[string]procedure
}

// NewServer connects every backing service named by cfg and builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	host, err := bootstrap.NewImageHost(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("image host: %w", err)
	}
	return NewServerWithDeps(cfg, db, redisClient, host)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, rate limits, token revocation and live
// notifications then degrade to no-ops.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, host storage.Host) (*Server, error) {
	if host == nil {
		return nil, fmt.Errorf("image host is required")
	}

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db)
	edgeRepo := repository.NewEngagementRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	normalizer := imaging.NewNormalizer(cfg.ImageMaxUploadSizeMB, cfg.ImageFormat)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("inspiro-api"),
		host:           host,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		eventLog:       notifications.NewEventLog(cfg.KafkaBrokerList(), cfg.KafkaTopic),
		flags:          featureflags.NewManager(cfg.FeatureFlags),
	}
	events := notifications.Fanout{s.notifier, s.eventLog}

	s.postService = service.NewPostService(postRepo, assetRepo, host, normalizer, events)
	s.engagementService = service.NewEngagementService(postRepo, edgeRepo, events, cfg.AllowSelfEngagement)
	s.accountService = service.NewAccountService(userRepo, profileRepo, assetRepo, host, normalizer, events)
	s.profileService = service.NewProfileService(userRepo, profileRepo, postRepo, edgeRepo)
	s.reaper = service.NewAssetReaper(postRepo, assetRepo, host)
	s.procedures = s.registerProcedures()

	return s, nil
}

// NewApp builds a Fiber app with the full middleware chain and every route.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Inspiro API",
		BodyLimit: (s.config.ImageMaxUploadSizeMB + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return s.respondError(c, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagates request ID and trace ID to the logger context.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
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

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	if root, ok := storage.LocalRoot(s.host); ok {
		app.Static("/media", root, fiber.Static{MaxAge: 86400})
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	required := middleware.AuthRequired(s.config.JWTSecret, s.redis)
	optional := middleware.OptionalAuth(s.config.JWTSecret, s.redis)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", required, s.Logout)

	posts := api.Group("/posts")
	posts.Get("/", optional, middleware.RateLimit(s.redis, 60, time.Minute, "search"), s.GetPosts)
	posts.Post("/", required, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/tags", optional, s.GetPostTags)
	// Specific /:id/:resource routes before the generic /:id routes
	posts.Get("/:id/likes", optional, s.requireFlag(featureflags.LikerLists), s.GetPostLikers)
	posts.Post("/:id/like", required, s.LikePost)
	posts.Post("/:id/save", required, s.SavePost)
	posts.Get("/:id", optional, s.GetPost)
	posts.Patch("/:id", required, s.UpdatePost)
	posts.Delete("/:id", required, s.DeletePost)

	me := api.Group("/me")
	me.Get("/", optional, s.GetMe)
	me.Delete("/", required, s.DeleteAccount)
	me.Get("/likes", required, s.GetMyLikes)
	me.Get("/saves", required, s.GetMySaves)
	me.Get("/account", required, s.GetAccountData)
	me.Get("/features", optional, s.GetFeatures)
	me.Put("/profile", required, s.CreateProfile)
	me.Patch("/profile", required, s.UpdateProfile)
	me.Put("/password", required, middleware.RateLimit(s.redis, 5, 15*time.Minute, "password"), s.UpdatePassword)

	api.Get("/users/:username", optional, s.GetUserProfile)

	api.Get("/ws", required, s.requireFlag(featureflags.LiveNotifications), s.WebsocketUpgrade, s.WebsocketHandler())

	rpc := api.Group("/rpc", optional)
	rpc.Get("/:procedure", s.HandleRPC)
	rpc.Post("/:procedure", s.HandleRPC)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	// Redis is optional outside production.
	if dbStatus != "healthy" || redisStatus == "unhealthy" || (s.config.IsProduction() && redisStatus != "healthy") {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database":   dbStatus,
			"redis":      redisStatus,
			"image_host": s.host.Name(),
		},
		"time": time.Now(),
	})
}

// Start wires live notifications, schedules the reaper and serves HTTP.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start notification wiring", slog.String("error", err.Error()))
		}
	}
	if err := s.reaper.Start(s.config.AssetReaperSchedule); err != nil {
		return err
	}

	middleware.Logger.Info("server starting",
		slog.String("port", s.config.Port),
		slog.String("image_host", s.host.Name()),
		slog.Bool("event_log", s.eventLog.Enabled()),
	)
	return s.app.Listen(":" + s.config.Port)
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
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}
	s.reaper.Stop()
	if err := s.eventLog.Close(); err != nil {
		middleware.Logger.Error("error closing event log", slog.String("error", err.Error()))
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
