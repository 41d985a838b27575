package seed

import (
	"fmt"
	"log/slog"

	"inspiro/internal/middleware"
	"inspiro/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// MaxEngagements caps the likes and saves each user hands out.
	MaxEngagements int
	ShouldClean    bool
	SeedOptions
}

// Report counts what Seed created.
type Report struct {
	Users int
	Posts int
	Likes int
	Saves int
}

// Seed populates the database with demo users, posts and engagement.
func Seed(db *gorm.DB, opts Options) (*Report, error) {
	middleware.Logger.Info("starting database seeding",
		slog.Int("users", opts.NumUsers), slog.Int("posts", opts.NumPosts))

	if opts.ShouldClean && !opts.DryRun {
		if err := ClearAll(db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	f := NewFactory(db, opts.SeedOptions)
	report := &Report{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return report, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	report.Users = len(users)
	if len(users) == 0 {
		return report, nil
	}

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		author := users[f.rng.Intn(len(users))]
		p, err := f.CreatePost(author)
		if err != nil {
			return report, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, p)
	}
	report.Posts = len(posts)

	maxEngagements := opts.MaxEngagements
	if maxEngagements <= 0 {
		maxEngagements = 10
	}
	for _, u := range users {
		for _, i := range f.rng.Perm(len(posts))[:min(len(posts), f.rng.Intn(maxEngagements+1))] {
			p := posts[i]
			if p.AuthorID == u.ID || p.IsPrivate {
				continue
			}
			if err := f.CreateLike(u, p); err != nil {
				return report, fmt.Errorf("create like: %w", err)
			}
			report.Likes++
			if f.rng.Intn(3) == 0 {
				if err := f.CreateSave(u, p); err != nil {
					return report, fmt.Errorf("create save: %w", err)
				}
				report.Saves++
			}
		}
	}

	middleware.Logger.Info("database seeding completed",
		slog.Int("users", report.Users),
		slog.Int("posts", report.Posts),
		slog.Int("likes", report.Likes),
		slog.Int("saves", report.Saves),
	)
	return report, nil
}

// ClearAll removes every row in dependency order.
func ClearAll(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.LikedPost{},
			&models.SavedPost{},
			&models.PostLabel{},
			&models.OrphanedAsset{},
			&models.Post{},
			&models.Profile{},
			&models.User{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
