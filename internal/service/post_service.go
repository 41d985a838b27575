package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inspiro/internal/cache"
	"inspiro/internal/imaging"
	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/repository"
	"inspiro/internal/storage"
	"inspiro/internal/validation"
)

const (
	reasonPostCreateFailed  = "post_create_failed"
	reasonPostUpdateFailed  = "post_update_failed"
	reasonPostImageReplaced = "post_image_replaced"
)

type PostService struct {
	posts  repository.PostRepository
	media  *media
	events EventPublisher
}

type CreatePostInput struct {
	AuthorID  uint
	Title     string
	Tags      []string
	Softwares []string
	IsPrivate bool
	Image     *ImageInput
}

// UpdatePostInput carries a partial update; nil fields are left untouched.
type UpdatePostInput struct {
	ActorID   uint
	PostID    uint
	Title     *string
	Tags      []string
	Softwares []string
	IsPrivate *bool
	Image     *ImageInput
}

func NewPostService(
	posts repository.PostRepository,
	assets repository.AssetRepository,
	host storage.Host,
	normalizer *imaging.Normalizer,
	events EventPublisher,
) *PostService {
	return &PostService{
		posts:  posts,
		media:  &media{host: host, normalizer: normalizer, assets: assets},
		events: publisherOrNoop(events),
	}
}

// GetPost returns the post if the viewer may see it.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	return FilterPostForViewer(post, viewerID)
}

// ListTags returns every tag the viewer can see, for suggestions when
// composing a post.
func (s *PostService) ListTags(ctx context.Context, viewerID uint) ([]string, error) {
	tags, err := s.posts.ListTags(ctx, repository.Visibility{ViewerID: viewerID})
	if err != nil {
		return nil, models.AsAppError(err)
	}
	return tags, nil
}

// SearchPosts lists public posts matching query. Anonymous browsing without a
// query is served from the cache.
func (s *PostService) SearchPosts(ctx context.Context, query string, limit, offset int, viewerID uint) ([]models.Post, error) {
	limit, offset = repository.ClampPage(limit, offset)
	query = strings.TrimSpace(query)

	var posts []models.Post
	fetch := func() error {
		var err error
		posts, err = s.posts.Search(ctx, query, limit, offset, viewerID)
		return err
	}

	var err error
	if query == "" && viewerID == 0 {
		err = cache.Aside(ctx, cache.BrowseKey(ctx, limit, offset), &posts, cache.BrowseTTL, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, models.AsAppError(err)
	}
	return FilterPosts(posts, viewerID, true), nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	title, err := validation.ValidateTitle(in.Title)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	tags, softwares, err := normalizeLabelSets(nonNil(in.Tags), nonNil(in.Softwares))
	if err != nil {
		return nil, err
	}
	if in.Image == nil || len(in.Image.Data) == 0 {
		return nil, models.NewValidationError("Image is required")
	}

	asset, err := s.media.upload(ctx, storage.FolderPosts, in.Image, imaging.PostImage)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:     title,
		ImageURL:  asset.URL,
		IsPrivate: in.IsPrivate,
		AuthorID:  in.AuthorID,
		Tags:      tags,
		Softwares: softwares,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.media.discardID(ctx, asset.ID, reasonPostCreateFailed)
		return nil, models.AsAppError(err)
	}

	created, err := s.posts.GetByID(ctx, post.ID, in.AuthorID)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	event := newEvent(models.EventPostCreated, in.AuthorID, 0, post.ID, map[string]any{
		"title":      created.Title,
		"is_private": created.IsPrivate,
	})
	// Public posts announce themselves to every open feed.
	event.Broadcast = !created.IsPrivate
	s.events.Publish(ctx, event)
	return created, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if in.ActorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.GetPost(ctx, in.PostID, in.ActorID)
	if err != nil {
		return nil, err
	}
	if err := AssertCanMutate(post, in.ActorID); err != nil {
		return nil, err
	}

	upd := repository.PostUpdate{IsPrivate: in.IsPrivate}
	if in.Title != nil {
		title, err := validation.ValidateTitle(*in.Title)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		upd.Title = &title
	}
	upd.Tags, upd.Softwares, err = normalizeLabelSets(in.Tags, in.Softwares)
	if err != nil {
		return nil, err
	}

	var replaced *storage.Asset
	if in.Image != nil && len(in.Image.Data) > 0 {
		asset, err := s.media.upload(ctx, storage.FolderPosts, in.Image, imaging.PostImage)
		if err != nil {
			return nil, err
		}
		replaced = &asset
		upd.ImageURL = &asset.URL
	}

	if err := s.posts.Update(ctx, post.ID, upd); err != nil {
		if replaced != nil {
			s.media.discardID(ctx, replaced.ID, reasonPostUpdateFailed)
		}
		return nil, models.AsAppError(err)
	}
	if replaced != nil {
		s.media.discard(ctx, post.ImageURL, reasonPostImageReplaced)
	}

	updated, err := s.posts.GetByID(ctx, post.ID, in.ActorID)
	if err != nil {
		return nil, models.AsAppError(err)
	}
	s.events.Publish(ctx, newEvent(models.EventPostUpdated, in.ActorID, 0, post.ID, nil))
	return updated, nil
}

// DeletePost removes a post and its hosted image. The row is hidden first and
// only purged once the image host confirmed the removal; a failed removal
// brings the post back. A failed purge leaves the post hidden for the reaper.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID uint) error {
	if actorID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.GetPost(ctx, postID, actorID)
	if err != nil {
		return err
	}
	if err := AssertCanMutate(post, actorID); err != nil {
		return err
	}

	assetID, err := storage.ParseAssetID(post.ImageURL)
	if err != nil {
		return models.NewInternalError(fmt.Errorf("post %d image: %w", post.ID, err))
	}

	if err := s.posts.SoftDelete(ctx, post.ID); err != nil {
		return models.AsAppError(err)
	}

	if err := storage.IgnoreNotFound(s.media.host.Delete(ctx, assetID)); err != nil {
		if restoreErr := s.posts.Restore(ctx, post.ID); restoreErr != nil {
			middleware.Logger.ErrorContext(ctx, "failed to restore post after image removal failed",
				slog.Uint64("post_id", uint64(post.ID)),
				slog.String("error", restoreErr.Error()),
			)
		}
		return models.NewInternalError(fmt.Errorf("remove image %s: %w", assetID, err))
	}

	if err := s.posts.HardDelete(ctx, post.ID); err != nil {
		middleware.Logger.WarnContext(ctx, "post purge deferred to reaper",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("error", err.Error()),
		)
	}

	s.events.Publish(ctx, newEvent(models.EventPostDeleted, actorID, 0, post.ID, nil))
	return nil
}

func normalizeLabelSets(tags, softwares []string) ([]string, []string, error) {
	t, err := validation.NormalizeLabels("tags", tags)
	if err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}
	sw, err := validation.NormalizeLabels("softwares", softwares)
	if err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}
	return t, sw, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
