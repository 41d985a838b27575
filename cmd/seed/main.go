// Command seed fills the database with demo users, posts and engagement.
package main

import (
	"flag"
	"log/slog"
	"os"

	"inspiro/internal/config"
	"inspiro/internal/database"
	"inspiro/internal/middleware"
	"inspiro/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	maxEngagements := flag.Int("engagements", 15, "Maximum likes handed out per user")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Use the cheapest bcrypt cost for seeded passwords")
	dryRun := flag.Bool("dry-run", false, "Build entities without writing them")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		middleware.Logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.ConfigureLogger(cfg.Env, os.Getenv("LOG_LEVEL"), os.Stdout)
	if cfg.IsProduction() {
		middleware.Logger.Error("refusing to seed a production database")
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		middleware.Logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if _, err := seed.Seed(db, seed.Options{
		NumUsers:       *numUsers,
		NumPosts:       *numPosts,
		MaxEngagements: *maxEngagements,
		ShouldClean:    *shouldClean,
		SeedOptions:    seed.SeedOptions{SkipBcrypt: *fast, DryRun: *dryRun},
	}); err != nil {
		middleware.Logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	middleware.Logger.Info("all seeded users share one password", slog.String("password", seed.DefaultPassword))
}
