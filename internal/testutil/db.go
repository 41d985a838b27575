package testutil

import (
	"fmt"
	"testing"
	"time"

	"inspiro/internal/database"
	"inspiro/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens an isolated in-memory SQLite database with the full schema.
// A single connection keeps every statement on the same database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts a user with an empty profile.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		Name:         username,
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.Profile{UserID: user.ID}).Error)
	return user
}

// PostFixture describes a post inserted by CreatePost.
type PostFixture struct {
	Title     string
	ImageURL  string
	Private   bool
	Tags      []string
	Softwares []string
	CreatedAt time.Time
}

// CreatePost inserts a post with its labels.
func CreatePost(t *testing.T, db *gorm.DB, author *models.User, f PostFixture) *models.Post {
	t.Helper()
	if f.ImageURL == "" {
		f.ImageURL = "https://images.test/posts_thumbnails/" + uuid.NewString() + ".jpg"
	}
	post := &models.Post{
		Title:     f.Title,
		ImageURL:  f.ImageURL,
		IsPrivate: f.Private,
		AuthorID:  author.ID,
		CreatedAt: f.CreatedAt,
	}
	require.NoError(t, db.Omit("Author", "Labels").Create(post).Error)
	labels := models.BuildLabels(post.ID, f.Tags, f.Softwares)
	if len(labels) > 0 {
		require.NoError(t, db.Create(&labels).Error)
	}
	return post
}

// Like inserts a like edge.
func Like(t *testing.T, db *gorm.DB, user *models.User, post *models.Post) {
	t.Helper()
	require.NoError(t, db.Create(&models.LikedPost{UserID: user.ID, PostID: post.ID}).Error)
}

// Save inserts a save edge.
func Save(t *testing.T, db *gorm.DB, user *models.User, post *models.Post) {
	t.Helper()
	require.NoError(t, db.Create(&models.SavedPost{UserID: user.ID, PostID: post.ID}).Error)
}
