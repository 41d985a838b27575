// Command server is the entry point for the Inspiro API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inspiro/internal/config"
	"inspiro/internal/middleware"
	"inspiro/internal/observability"
	"inspiro/internal/server"
)

// @title Inspiro API
// @version 1.0
// @description Design inspiration sharing API with posts, likes, saves and profiles
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@inspiro.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		middleware.Logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.ConfigureLogger(cfg.Env, os.Getenv("LOG_LEVEL"), os.Stdout)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "inspiro-api",
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		middleware.Logger.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		middleware.Logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
		if err := shutdownTracing(ctx); err != nil {
			middleware.Logger.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Start(); err != nil {
		middleware.Logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
