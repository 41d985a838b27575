// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"inspiro/internal/cache"
	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/observability"
	"inspiro/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const reasonAccountDeleted = "account_deleted"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	CreateWithProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	DeleteCascade(ctx context.Context, id uint) ([]string, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no account uses email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByUsername returns nil, nil when the username is free.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// CreateWithProfile inserts the user and an empty profile together.
func (r *userRepository) CreateWithProfile(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profile").Create(user).Error; err != nil {
			return err
		}
		profile := &models.Profile{UserID: user.ID}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Email or username already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// DeleteCascade removes the user with everything that hangs off the account:
// engagement edges made by the user or on the user's posts, the posts with
// their labels, and the profile. Hosted images referenced by the removed rows
// are queued as orphaned assets in the same transaction; their IDs are
// returned.
func (r *userRepository) DeleteCascade(ctx context.Context, id uint) ([]string, error) {
	var queued []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}

		var urls []string
		var postImages []string
		if err := tx.Unscoped().Model(&models.Post{}).Where("author_id = ?", id).
			Pluck("image_url", &postImages).Error; err != nil {
			return err
		}
		urls = append(urls, postImages...)

		var profile models.Profile
		if err := tx.Where("user_id = ?", id).Limit(1).Find(&profile).Error; err != nil {
			return err
		}
		for _, u := range []string{profile.Avatar, profile.Banner} {
			if u != "" {
				urls = append(urls, u)
			}
		}

		ownPosts := tx.Unscoped().Model(&models.Post{}).Select("id").Where("author_id = ?", id)
		if err := tx.Where("user_id = ? OR post_id IN (?)", id, ownPosts).Delete(&models.LikedPost{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? OR post_id IN (?)", id, ownPosts).Delete(&models.SavedPost{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN (?)", ownPosts).Delete(&models.PostLabel{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("author_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Profile{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&user).Error; err != nil {
			return err
		}

		for _, u := range urls {
			assetID, err := storage.ParseAssetID(u)
			if err != nil {
				middleware.Logger.WarnContext(ctx, "skipping unidentifiable asset of deleted account",
					"url", u, "error", err.Error())
				continue
			}
			orphan := &models.OrphanedAsset{AssetID: assetID, Reason: reasonAccountDeleted}
			if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "asset_id"}}, DoNothing: true}).
				Create(orphan).Error; err != nil {
				return err
			}
			queued = append(queued, assetID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	observability.OrphanedAssetsQueued.WithLabelValues(reasonAccountDeleted).Add(float64(len(queued)))
	cache.InvalidateBrowse(ctx)
	return queued, nil
}
