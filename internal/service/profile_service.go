package service

import (
	"context"

	"inspiro/internal/models"
	"inspiro/internal/repository"
)

// ProfileService assembles a user's public page.
type ProfileService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	posts    repository.PostRepository
	edges    repository.EngagementRepository
}

func NewProfileService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	posts repository.PostRepository,
	edges repository.EngagementRepository,
) *ProfileService {
	return &ProfileService{users: users, profiles: profiles, posts: posts, edges: edges}
}

// GetProfile returns the profile aggregate of username as seen by viewerID.
// Visitors only see public posts in every list; the owner sees everything.
func (s *ProfileService) GetProfile(ctx context.Context, username string, viewerID uint) (*models.ProfileView, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	profile, err := s.profiles.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, models.AsAppError(err)
	}

	vis := profileVisibility(user.ID, viewerID)
	posts, err := s.posts.ListByAuthor(ctx, user.ID, vis)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	liked, err := s.edges.ListEngaged(ctx, models.EngagementLike, user.ID, vis)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	saved, err := s.edges.ListEngaged(ctx, models.EngagementSave, user.ID, vis)
	if err != nil {
		return nil, models.AsAppError(err)
	}

	return &models.ProfileView{
		User:       *user,
		Profile:    *profile,
		Posts:      FilterPosts(posts, viewerID, vis.PublicOnly),
		LikedPosts: FilterPosts(liked, viewerID, vis.PublicOnly),
		SavedPosts: FilterPosts(saved, viewerID, vis.PublicOnly),
		IsOwner:    !vis.PublicOnly,
	}, nil
}
