// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Inspiro-Demo-2024!"

var (
	designTags = []string{
		"ui", "ux", "mobile", "landing", "dashboard", "typography", "branding",
		"illustration", "3d", "motion", "dark", "minimal", "ecommerce", "icons",
	}
	designSoftwares = []string{
		"figma", "sketch", "photoshop", "illustrator", "blender",
		"after effects", "framer", "webflow", "procreate",
	}
)

// SeedOptions tune how the Factory builds entities.
type SeedOptions struct {
	// DryRun assigns synthetic IDs instead of writing to the database.
	DryRun bool
	// SkipBcrypt stores a cheap hash; seeded logins are slower otherwise.
	SkipBcrypt bool
	// MaxDays spreads created_at over the last MaxDays days.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	opts   SeedOptions
	rng    *rand.Rand
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	return &Factory{db: db, opts: opts, rng: rand.New(rand.NewSource(seed)), nextID: 1000}
}

func (f *Factory) passwordHash() string {
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	return string(hash)
}

func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// CreateUser constructs and persists a user with a filled-in profile.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := fmt.Sprintf("%s_%s%d", slug(first), slug(last), gofakeit.Number(10, 9999))
	if len(username) > 30 {
		username = username[len(username)-30:]
	}
	user := &models.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@%s", username, gofakeit.DomainName()),
		Name:         first + " " + last,
		PasswordHash: f.passwordHash(),
		Profile: &models.Profile{
			Bio:    gofakeit.JobTitle() + ". " + gofakeit.Sentence(8),
			Avatar: fmt.Sprintf("https://i.pravatar.cc/300?u=%s", gofakeit.UUID()),
			Banner: fmt.Sprintf("https://picsum.photos/seed/banner-%s/1500/500", gofakeit.UUID()),
		},
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		middleware.Logger.Debug("[dry-run] CreateUser", "username", user.Username)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post with labels but does not persist it.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	id := storage.FolderPosts + "/" + gofakeit.UUID()
	post := &models.Post{
		Title:     strings.TrimSuffix(gofakeit.Sentence(f.rng.Intn(4)+2), "."),
		ImageURL:  fmt.Sprintf("https://picsum.photos/seed/%s/1200/900?id=%s", strings.TrimPrefix(id, storage.FolderPosts+"/"), id),
		IsPrivate: f.rng.Intn(10) == 0,
		AuthorID:  author.ID,
		Tags:      f.pick(designTags, 1+f.rng.Intn(3)),
		Softwares: f.pick(designSoftwares, f.rng.Intn(3)),
		CreatedAt: f.createdAt(),
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a post built by BuildPost together with its labels.
func (f *Factory) CreatePost(author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		middleware.Logger.Debug("[dry-run] CreatePost", "author_id", post.AuthorID, "title", post.Title)
		return post, nil
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "Labels").Create(post).Error; err != nil {
			return err
		}
		labels := models.BuildLabels(post.ID, post.Tags, post.Softwares)
		if len(labels) == 0 {
			return nil
		}
		return tx.Create(&labels).Error
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// CreateLike records that user liked post.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.LikedPost{UserID: user.ID, PostID: post.ID}).Error
}

// CreateSave records that user saved post.
func (f *Factory) CreateSave(user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.SavedPost{UserID: user.ID, PostID: post.ID}).Error
}

// pick returns n distinct values from pool.
func (f *Factory) pick(pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for _, i := range f.rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
