package service

import (
	"context"
	"log/slog"

	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/observability"
	"inspiro/internal/repository"
)

// EngagementService toggles and lists like and save edges.
type EngagementService struct {
	posts     repository.PostRepository
	edges     repository.EngagementRepository
	events    EventPublisher
	allowSelf bool
}

// NewEngagementService creates the service. allowSelf controls whether
// authors may like or save their own posts.
func NewEngagementService(
	posts repository.PostRepository,
	edges repository.EngagementRepository,
	events EventPublisher,
	allowSelf bool,
) *EngagementService {
	return &EngagementService{
		posts:     posts,
		edges:     edges,
		events:    publisherOrNoop(events),
		allowSelf: allowSelf,
	}
}

func (s *EngagementService) ToggleLike(ctx context.Context, viewerID, postID uint) (*models.EngagementState, error) {
	return s.toggle(ctx, models.EngagementLike, viewerID, postID)
}

func (s *EngagementService) ToggleSave(ctx context.Context, viewerID, postID uint) (*models.EngagementState, error) {
	return s.toggle(ctx, models.EngagementSave, viewerID, postID)
}

func (s *EngagementService) toggle(ctx context.Context, kind models.EngagementKind, viewerID, postID uint) (*models.EngagementState, error) {
	if viewerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.posts.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	if _, err := FilterPostForViewer(post, viewerID); err != nil {
		return nil, err
	}
	if !s.allowSelf && post.AuthorID == viewerID {
		return nil, models.NewForbiddenError("You cannot " + string(kind) + " your own post")
	}

	engaged, err := s.edges.Toggle(ctx, kind, viewerID, postID)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	count, err := s.edges.Count(ctx, kind, postID)
	if err != nil {
		return nil, models.AsAppError(err)
	}

	state := "removed"
	if engaged {
		state = "added"
	}
	observability.EngagementToggles.WithLabelValues(string(kind), state).Inc()
	middleware.Logger.DebugContext(ctx, "engagement toggled",
		slog.String("kind", string(kind)),
		slog.Uint64("post_id", uint64(postID)),
		slog.Bool("engaged", engaged),
	)

	if engaged && post.AuthorID != viewerID {
		typ := models.EventPostLiked
		if kind == models.EngagementSave {
			typ = models.EventPostSaved
		}
		s.events.Publish(ctx, newEvent(typ, viewerID, post.AuthorID, postID, map[string]any{
			"title": post.Title,
			"count": count,
		}))
	}

	return &models.EngagementState{
		PostID:  postID,
		Kind:    kind,
		Engaged: engaged,
		Count:   count,
	}, nil
}

// LikedPosts returns the viewer's liked posts. Anonymous viewers get none.
func (s *EngagementService) LikedPosts(ctx context.Context, viewerID uint) ([]models.Post, error) {
	return s.listOwn(ctx, models.EngagementLike, viewerID)
}

// SavedPosts returns the viewer's saved posts. Anonymous viewers get none.
func (s *EngagementService) SavedPosts(ctx context.Context, viewerID uint) ([]models.Post, error) {
	return s.listOwn(ctx, models.EngagementSave, viewerID)
}

func (s *EngagementService) listOwn(ctx context.Context, kind models.EngagementKind, viewerID uint) ([]models.Post, error) {
	if viewerID == 0 {
		return []models.Post{}, nil
	}
	posts, err := s.edges.ListEngaged(ctx, kind, viewerID, repository.Visibility{ViewerID: viewerID})
	if err != nil {
		return nil, models.AsAppError(err)
	}
	return FilterPosts(posts, viewerID, false), nil
}

// ListLikers returns users who liked a post the viewer may see.
func (s *EngagementService) ListLikers(ctx context.Context, postID, viewerID uint, limit int) ([]models.User, error) {
	post, err := s.posts.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	if _, err := FilterPostForViewer(post, viewerID); err != nil {
		return nil, err
	}
	users, err := s.edges.ListLikers(ctx, postID, limit)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	return users, nil
}
