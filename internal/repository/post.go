package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"inspiro/internal/cache"
	"inspiro/internal/models"

	"gorm.io/gorm"
)

// PostUpdate carries the supplied fields of an update. Nil means untouched;
// non-nil label slices replace the stored set.
type PostUpdate struct {
	Title     *string
	ImageURL  *string
	IsPrivate *bool
	Tags      []string
	Softwares []string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	Search(ctx context.Context, query string, limit, offset int, viewerID uint) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, vis Visibility) ([]models.Post, error)
	ListTags(ctx context.Context, vis Visibility) ([]string, error)
	Update(ctx context.Context, id uint, upd PostUpdate) error
	SoftDelete(ctx context.Context, id uint) error
	Restore(ctx context.Context, id uint) error
	HardDelete(ctx context.Context, id uint) error
	ListSoftDeleted(ctx context.Context, before time.Time, limit int) ([]models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post and its label rows in one transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "Labels").Create(post).Error; err != nil {
			return err
		}
		labels := models.BuildLabels(post.ID, post.Tags, post.Softwares)
		if len(labels) > 0 {
			if err := tx.Create(&labels).Error; err != nil {
				return err
			}
		}
		post.Labels = labels
		return nil
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	post.HydrateLabels()
	cache.InvalidateBrowse(ctx)
	return nil
}

// GetByID loads a live post regardless of privacy. Engagement flags are
// computed for viewerID.
func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.withDetails(r.db.WithContext(ctx), viewerID).
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	post.HydrateLabels()
	return &post, nil
}

// Search returns public posts, newest first. A non-blank query matches the
// author name or title by substring, or a tag or software exactly, ignoring
// case.
func (r *postRepository) Search(ctx context.Context, query string, limit, offset int, viewerID uint) ([]models.Post, error) {
	limit, offset = ClampPage(limit, offset)
	q := r.withDetails(r.db.WithContext(ctx), viewerID).Scopes(Public.scope)

	if query = strings.ToLower(strings.TrimSpace(query)); query != "" {
		like := "%" + escapeLike(query) + "%"
		q = q.Joins("JOIN users ON users.id = posts.author_id").
			Where(`(LOWER(users.name) LIKE ? ESCAPE '\' OR LOWER(posts.title) LIKE ? ESCAPE '\' OR EXISTS (
				SELECT 1 FROM post_labels WHERE post_labels.post_id = posts.id AND LOWER(post_labels.value) = ?))`,
				like, like, query)
	}

	var posts []models.Post
	err := q.Order("posts.created_at DESC").Order("posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	hydrate(posts)
	return posts, nil
}

// ListByAuthor returns the author's posts that pass vis, newest first.
func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, vis Visibility) ([]models.Post, error) {
	var posts []models.Post
	err := r.withDetails(r.db.WithContext(ctx), vis.ViewerID).
		Scopes(vis.scope).
		Where("posts.author_id = ?", authorID).
		Order("posts.created_at DESC").Order("posts.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	hydrate(posts)
	return posts, nil
}

// ListTags returns the distinct tags of live posts passing vis, sorted.
// Spellings differing only in case collapse to the first one seen.
func (r *postRepository) ListTags(ctx context.Context, vis Visibility) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Scopes(vis.scope).
		Joins("JOIN post_labels ON post_labels.post_id = posts.id").
		Where("post_labels.kind = ?", models.LabelTag).
		Distinct().
		Order("post_labels.value").
		Pluck("post_labels.value", &values).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	seen := make(map[string]struct{}, len(values))
	tags := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, v)
	}
	return tags, nil
}

// Update applies upd and replaces label sets in one transaction.
func (r *postRepository) Update(ctx context.Context, id uint, upd PostUpdate) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"updated_at": time.Now()}
		if upd.Title != nil {
			updates["title"] = *upd.Title
		}
		if upd.ImageURL != nil {
			updates["image_url"] = *upd.ImageURL
		}
		if upd.IsPrivate != nil {
			updates["is_private"] = *upd.IsPrivate
		}
		res := tx.Model(&models.Post{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := replaceLabels(tx, id, models.LabelTag, upd.Tags); err != nil {
			return err
		}
		return replaceLabels(tx, id, models.LabelSoftware, upd.Softwares)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", id)
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateBrowse(ctx)
	return nil
}

func replaceLabels(tx *gorm.DB, postID uint, kind models.LabelKind, values []string) error {
	if values == nil {
		return nil
	}
	if err := tx.Where("post_id = ? AND kind = ?", postID, kind).Delete(&models.PostLabel{}).Error; err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	labels := make([]models.PostLabel, 0, len(values))
	for _, v := range values {
		labels = append(labels, models.PostLabel{PostID: postID, Kind: kind, Value: v})
	}
	return tx.Create(&labels).Error
}

// SoftDelete hides the post from every read path.
func (r *postRepository) SoftDelete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidateBrowse(ctx)
	return nil
}

// Restore reverts SoftDelete.
func (r *postRepository) Restore(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Post{}).
		Where("id = ?", id).
		Update("deleted_at", nil).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateBrowse(ctx)
	return nil
}

// HardDelete removes the post row with its labels and engagement edges.
func (r *postRepository) HardDelete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.PostLabel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.LikedPost{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.SavedPost{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateBrowse(ctx)
	return nil
}

// ListSoftDeleted returns posts hidden before the cutoff that still await
// their purge.
func (r *postRepository) ListSoftDeleted(ctx context.Context, before time.Time, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", before).
		Order("deleted_at ASC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// withDetails selects engagement counts and the viewer's flags in the same
// query and preloads the author and labels.
func (r *postRepository) withDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM liked_posts WHERE liked_posts.post_id = posts.id) AS likes_count, " +
		"(SELECT COUNT(*) FROM saved_posts WHERE saved_posts.post_id = posts.id) AS saves_count"

	if viewerID != 0 {
		db = db.Select(selectQuery+
			", EXISTS(SELECT 1 FROM liked_posts WHERE liked_posts.post_id = posts.id AND liked_posts.user_id = ?) AS liked"+
			", EXISTS(SELECT 1 FROM saved_posts WHERE saved_posts.post_id = posts.id AND saved_posts.user_id = ?) AS saved",
			viewerID, viewerID)
	} else {
		db = db.Select(selectQuery + ", false AS liked, false AS saved")
	}
	return db.Model(&models.Post{}).Preload("Author").Preload("Labels")
}

func hydrate(posts []models.Post) {
	for i := range posts {
		posts[i].HydrateLabels()
	}
}
