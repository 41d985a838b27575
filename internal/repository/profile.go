package repository

import (
	"context"
	"errors"

	"inspiro/internal/cache"
	"inspiro/internal/models"

	"gorm.io/gorm"
)

// ProfileChanges lists the fields a profile write may touch. Nil fields are
// left as they are.
type ProfileChanges struct {
	Username *string
	Name     *string
	Avatar   *string
	Banner   *string
	Bio      *string
}

// ProfileRepository persists profiles.
type ProfileRepository interface {
	GetOrCreate(ctx context.Context, userID uint) (*models.Profile, error)
	Apply(ctx context.Context, userID uint, changes ProfileChanges) (*models.User, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// GetOrCreate returns the user's profile, creating an empty one on first use.
func (r *profileRepository) GetOrCreate(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).
		Where(models.Profile{UserID: userID}).
		FirstOrCreate(&profile).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			// lost a creation race; the row exists now
			if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err == nil {
				return &profile, nil
			}
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

// Apply writes the account and profile fields in a single transaction and
// returns the updated user with its profile.
func (r *profileRepository) Apply(ctx context.Context, userID uint, ch ProfileChanges) (*models.User, error) {
	var user models.User
	authorChanged := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}

		userUpdates := map[string]interface{}{}
		if ch.Username != nil && *ch.Username != user.Username {
			userUpdates["username"] = *ch.Username
		}
		if ch.Name != nil {
			userUpdates["name"] = *ch.Name
		}
		if len(userUpdates) > 0 {
			if err := tx.Model(&user).Updates(userUpdates).Error; err != nil {
				return err
			}
			authorChanged = true
		}

		var profile models.Profile
		if err := tx.Where(models.Profile{UserID: userID}).FirstOrCreate(&profile).Error; err != nil {
			return err
		}
		profileUpdates := map[string]interface{}{}
		if ch.Avatar != nil {
			profileUpdates["avatar"] = *ch.Avatar
		}
		if ch.Banner != nil {
			profileUpdates["banner"] = *ch.Banner
		}
		if ch.Bio != nil {
			profileUpdates["bio"] = *ch.Bio
		}
		if len(profileUpdates) > 0 {
			if err := tx.Model(&profile).Updates(profileUpdates).Error; err != nil {
				return err
			}
		}
		user.Profile = &profile
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", userID)
		}
		if isUniqueConstraintError(err) {
			return nil, models.NewConflictError("Username already taken")
		}
		return nil, models.NewInternalError(err)
	}
	// Browse pages embed the author.
	if authorChanged {
		cache.InvalidateBrowse(ctx)
	}
	return &user, nil
}
