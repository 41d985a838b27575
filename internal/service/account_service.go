package service

import (
	"context"
	"strings"

	"inspiro/internal/imaging"
	"inspiro/internal/models"
	"inspiro/internal/repository"
	"inspiro/internal/storage"
	"inspiro/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// DeleteAccountPhrase must be typed verbatim to delete an account.
const DeleteAccountPhrase = "delete my account"

const (
	reasonProfileImageReplaced = "profile_image_replaced"
	reasonProfileUpdateFailed  = "profile_update_failed"
)

var passwordCost = bcrypt.DefaultCost

// AccountService covers registration, credentials and the account's own
// profile data.
type AccountService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	media    *media
	events   EventPublisher
}

type SignupInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// ProfileInput carries profile changes. Nil fields keep their current value.
// Username is only honored by CreateProfile and Name only by UpdateProfile.
type ProfileInput struct {
	UserID   uint
	Username *string
	Name     *string
	Bio      *string
	Avatar   *ImageInput
	Banner   *ImageInput
}

type UpdatePasswordInput struct {
	UserID          uint
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

func NewAccountService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	assets repository.AssetRepository,
	host storage.Host,
	normalizer *imaging.Normalizer,
	events EventPublisher,
) *AccountService {
	return &AccountService{
		users:    users,
		profiles: profiles,
		media:    &media{host: host, normalizer: normalizer, assets: assets},
		events:   publisherOrNoop(events),
	}
}

func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	if existing != nil {
		return nil, models.NewConflictError("Email already registered")
	}
	existing, err = s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	if existing != nil {
		return nil, models.NewConflictError("Username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), passwordCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	name := in.Name
	if name == "" {
		name = in.Username
	}
	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         name,
	}
	if err := s.users.CreateWithProfile(ctx, user); err != nil {
		return nil, models.AsAppError(err)
	}
	return user, nil
}

// Login checks credentials. Every failure looks the same to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Invalid credentials")
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, models.AsAppError(err)
	}
	if user == nil || !user.HasPassword() {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}
	return user, nil
}

// Me returns the viewer with their profile, or nil for anonymous viewers.
func (s *AccountService) Me(ctx context.Context, viewerID uint) (*models.User, error) {
	if viewerID == 0 {
		return nil, nil
	}
	user, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	profile, err := s.profiles.GetOrCreate(ctx, viewerID)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	user.Profile = profile
	return user, nil
}

func (s *AccountService) RequestUserData(ctx context.Context, viewerID uint) (*models.AccountData, error) {
	if viewerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	user, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	return &models.AccountData{HasOldPassword: user.HasPassword()}, nil
}

// CreateProfile completes the profile after registration, optionally
// claiming a new username.
func (s *AccountService) CreateProfile(ctx context.Context, in ProfileInput) (*models.User, error) {
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		existing, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return nil, models.AsAppError(err)
		}
		if existing != nil && existing.ID != in.UserID {
			return nil, models.NewConflictError("Username already taken")
		}
		in.Username = &username
	}
	in.Name = nil
	return s.applyProfile(ctx, in)
}

// UpdateProfile replaces the supplied profile fields and display name.
func (s *AccountService) UpdateProfile(ctx context.Context, in ProfileInput) (*models.User, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validation.ValidateName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		in.Name = &name
	}
	in.Username = nil
	return s.applyProfile(ctx, in)
}

func (s *AccountService) applyProfile(ctx context.Context, in ProfileInput) (*models.User, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	current, err := s.profiles.GetOrCreate(ctx, in.UserID)
	if err != nil {
		return nil, models.AsAppError(err)
	}

	changes := repository.ProfileChanges{Username: in.Username, Name: in.Name, Bio: in.Bio}
	var uploaded []storage.Asset
	var replacedURLs []string
	rollback := func() {
		for _, a := range uploaded {
			s.media.discardID(ctx, a.ID, reasonProfileUpdateFailed)
		}
	}

	if in.Avatar != nil && len(in.Avatar.Data) > 0 {
		asset, err := s.media.upload(ctx, storage.FolderProfiles, in.Avatar, imaging.Avatar)
		if err != nil {
			return nil, err
		}
		uploaded = append(uploaded, asset)
		changes.Avatar = &asset.URL
		replacedURLs = append(replacedURLs, current.Avatar)
	}
	if in.Banner != nil && len(in.Banner.Data) > 0 {
		asset, err := s.media.upload(ctx, storage.FolderProfiles, in.Banner, imaging.Banner)
		if err != nil {
			rollback()
			return nil, err
		}
		uploaded = append(uploaded, asset)
		changes.Banner = &asset.URL
		replacedURLs = append(replacedURLs, current.Banner)
	}

	user, err := s.profiles.Apply(ctx, in.UserID, changes)
	if err != nil {
		rollback()
		return nil, models.AsAppError(err)
	}
	for _, u := range replacedURLs {
		s.media.discard(ctx, u, reasonProfileImageReplaced)
	}
	return user, nil
}

func (s *AccountService) UpdatePassword(ctx context.Context, in UpdatePasswordInput) error {
	if in.UserID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return models.AsAppError(err)
	}
	if user.HasPassword() {
		if in.OldPassword == "" {
			return models.NewValidationError("Current password is required")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.OldPassword)); err != nil {
			return models.NewUnauthorizedError("Current password is incorrect")
		}
	}
	if in.NewPassword != in.ConfirmPassword {
		return models.NewValidationError("Passwords do not match")
	}
	if err := validation.ValidatePassword(in.NewPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), passwordCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, in.UserID, string(hash)); err != nil {
		return models.AsAppError(err)
	}
	return nil
}

// DeleteAccount removes the account and everything it owns. Hosted images
// are left to the reaper.
func (s *AccountService) DeleteAccount(ctx context.Context, userID uint, confirmation string) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	if strings.TrimSpace(strings.ToLower(confirmation)) != DeleteAccountPhrase {
		return models.NewValidationError(`Type "` + DeleteAccountPhrase + `" to confirm`)
	}
	queued, err := s.users.DeleteCascade(ctx, userID)
	if err != nil {
		return models.AsAppError(err)
	}
	s.events.Publish(ctx, newEvent(models.EventAccountDeleted, userID, 0, 0, map[string]any{
		"queued_assets": len(queued),
	}))
	return nil
}
