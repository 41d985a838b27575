// Package bootstrap connects the backing services named by the configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inspiro/internal/cache"
	"inspiro/internal/config"
	"inspiro/internal/database"
	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/storage"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis. The Redis client is nil
// when Redis is unreachable.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	return db, r, nil
}

// NewImageHost builds the configured image host wrapped with metrics and
// tracing. A MinIO bucket is created when missing.
func NewImageHost(ctx context.Context, cfg *config.Config) (storage.Host, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ImageHost)) {
	case "", "disk":
		h, err := storage.NewDiskHost(cfg.ImageUploadDir, cfg.ImagePublicBaseURL)
		if err != nil {
			return nil, err
		}
		return storage.Instrument(h), nil
	case "minio", "s3":
		h, err := storage.NewMinioHost(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.MinioBucket,
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := h.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.MinioBucket, err)
		}
		return storage.Instrument(h), nil
	default:
		return nil, fmt.Errorf("unknown IMAGE_HOST %q", cfg.ImageHost)
	}
}

func ensureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "inspiro_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@inspiro.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.First(&root, 1).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				ID:           1,
				Username:     username,
				Email:        email,
				PasswordHash: string(hashedPassword),
				Name:         username,
				IsAdmin:      true,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			updates := map[string]any{"is_admin": true}
			if cfg.DevRootForceCredentials {
				updates["username"] = username
				updates["email"] = email
				updates["password_hash"] = string(hashedPassword)
			}
			if err := tx.Model(&models.User{}).Where("id = ?", 1).Updates(updates).Error; err != nil {
				return err
			}
		}

		if err := tx.Where(models.Profile{UserID: 1}).FirstOrCreate(&models.Profile{}).Error; err != nil {
			return err
		}

		// Explicit ID insertion leaves the postgres sequence behind.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(`
				SELECT setval(
					pg_get_serial_sequence('users', 'id'),
					GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), 1),
					true
				)
			`).Error; err != nil {
				return fmt.Errorf("failed to reset users sequence: %w", err)
			}
		}

		return nil
	}); err != nil {
		return err
	}

	middleware.Logger.Info("development root admin ensured", slog.Uint64("user_id", 1), slog.String("email", email))
	return nil
}
