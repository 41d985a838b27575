// Command migrate applies, inspects and rolls back the Inspiro schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"inspiro/internal/config"
	"inspiro/internal/database"
	"inspiro/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() error {
	return fmt.Errorf("usage: migrate <up|auto|status|down> [version]")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, os.Getenv("LOG_LEVEL"), os.Stdout)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		middleware.Logger.Info("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		middleware.Logger.Info("automigrations applied")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		middleware.Logger.Info("schema status",
			slog.String("mode", status.Mode),
			slog.String("env", status.Environment),
			slog.Bool("run_sql", status.WillRunSQL),
			slog.Bool("run_auto", status.WillRunAutoMigrate),
			slog.Int("applied", len(status.AppliedVersions)),
			slog.Int("pending", len(status.PendingMigrations)),
		)
		for _, m := range status.PendingMigrations {
			middleware.Logger.Info("pending migration", slog.String("migration", fmt.Sprintf("%06d_%s", m.Version, m.Name)))
		}
	case "down":
		if flag.NArg() < 2 {
			return fmt.Errorf("usage: migrate down <version>")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		middleware.Logger.Info("rolled back migration", slog.Int("version", version))
	default:
		return usage()
	}

	return nil
}
