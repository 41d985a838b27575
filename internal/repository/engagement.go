package repository

import (
	"context"
	"fmt"

	"inspiro/internal/cache"
	"inspiro/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementRepository stores like and save edges.
type EngagementRepository interface {
	Toggle(ctx context.Context, kind models.EngagementKind, userID, postID uint) (bool, error)
	Count(ctx context.Context, kind models.EngagementKind, postID uint) (int64, error)
	ListEngaged(ctx context.Context, kind models.EngagementKind, userID uint, vis Visibility) ([]models.Post, error)
	ListLikers(ctx context.Context, postID uint, limit int) ([]models.User, error)
}

type engagementRepository struct {
	db    *gorm.DB
	posts *postRepository
}

// NewEngagementRepository creates a new engagement repository
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db, posts: &postRepository{db: db}}
}

func edgeTable(kind models.EngagementKind) (string, error) {
	switch kind {
	case models.EngagementLike:
		return "liked_posts", nil
	case models.EngagementSave:
		return "saved_posts", nil
	default:
		return "", fmt.Errorf("unknown engagement kind %q", kind)
	}
}

func newEdge(kind models.EngagementKind, userID, postID uint) interface{} {
	if kind == models.EngagementSave {
		return &models.SavedPost{UserID: userID, PostID: postID}
	}
	return &models.LikedPost{UserID: userID, PostID: postID}
}

// Toggle flips the edge and reports whether it exists afterwards. Removal is
// tried first; when nothing was removed the edge is inserted, and a
// concurrent insert of the same pair is absorbed by the primary key.
func (r *engagementRepository) Toggle(ctx context.Context, kind models.EngagementKind, userID, postID uint) (bool, error) {
	if _, err := edgeTable(kind); err != nil {
		return false, models.NewInternalError(err)
	}
	db := r.db.WithContext(ctx)

	res := db.Where("user_id = ? AND post_id = ?", userID, postID).Delete(newEdge(kind, 0, 0))
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidateBrowse(ctx)
		return false, nil
	}

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(newEdge(kind, userID, postID)).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	cache.InvalidateBrowse(ctx)
	return true, nil
}

func (r *engagementRepository) Count(ctx context.Context, kind models.EngagementKind, postID uint) (int64, error) {
	table, err := edgeTable(kind)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	var count int64
	if err := r.db.WithContext(ctx).Table(table).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// ListEngaged returns the posts userID liked or saved that pass vis, most
// recently engaged first.
func (r *engagementRepository) ListEngaged(ctx context.Context, kind models.EngagementKind, userID uint, vis Visibility) ([]models.Post, error) {
	table, err := edgeTable(kind)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var posts []models.Post
	err = r.posts.withDetails(r.db.WithContext(ctx), vis.ViewerID).
		Joins(fmt.Sprintf("JOIN %[1]s edge ON edge.post_id = posts.id AND edge.user_id = ?", table), userID).
		Scopes(vis.scope).
		Order("edge.created_at DESC").Order("posts.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	hydrate(posts)
	return posts, nil
}

// ListLikers returns users who liked postID, most recent first.
func (r *engagementRepository) ListLikers(ctx context.Context, postID uint, limit int) ([]models.User, error) {
	limit, _ = ClampPage(limit, 0)
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN liked_posts ON liked_posts.user_id = users.id").
		Where("liked_posts.post_id = ?", postID).
		Order("liked_posts.created_at DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
