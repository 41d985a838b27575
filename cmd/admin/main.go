// Command admin manages administrator flags and runs maintenance jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"inspiro/internal/bootstrap"
	"inspiro/internal/config"
	"inspiro/internal/database"
	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/repository"
	"inspiro/internal/service"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  admin promote <username>   - Grant admin rights")
	fmt.Println("  admin demote <username>    - Revoke admin rights")
	fmt.Println("  admin list-admins          - List all admins")
	fmt.Println("  admin reap                 - Run one asset reaper pass")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		middleware.Logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.ConfigureLogger(cfg.Env, os.Getenv("LOG_LEVEL"), os.Stdout)

	db, err := database.Connect(cfg)
	if err != nil {
		middleware.Logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	switch os.Args[1] {
	case "promote", "demote":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		err = setAdmin(db, os.Args[2], os.Args[1] == "promote")
	case "list-admins":
		err = listAdmins(db)
	case "reap":
		err = reap(cfg, db)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		middleware.Logger.Error("admin command failed", slog.String("command", os.Args[1]), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func setAdmin(db *gorm.DB, username string, admin bool) error {
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return err
	}
	if user.IsAdmin == admin {
		fmt.Printf("%s (ID: %d) already has is_admin=%t\n", user.Username, user.ID, admin)
		return nil
	}
	if err := db.Model(&user).Update("is_admin", admin).Error; err != nil {
		return err
	}
	fmt.Printf("Updated %s (ID: %d): is_admin=%t\n", user.Username, user.ID, admin)
	return nil
}

func listAdmins(db *gorm.DB) error {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Order("id").Find(&admins).Error; err != nil {
		return err
	}
	if len(admins) == 0 {
		fmt.Println("No admins found")
		return nil
	}
	for _, a := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", a.ID, a.Username, a.Email)
	}
	return nil
}

func reap(cfg *config.Config, db *gorm.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	host, err := bootstrap.NewImageHost(ctx, cfg)
	if err != nil {
		return err
	}
	reaper := service.NewAssetReaper(repository.NewPostRepository(db), repository.NewAssetRepository(db), host)
	report, err := reaper.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%+v\n", report)
	return nil
}
