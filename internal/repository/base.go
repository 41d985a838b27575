package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Visibility restricts post queries. PublicOnly drops every private post;
// otherwise private posts are kept only when ViewerID authored them.
type Visibility struct {
	ViewerID   uint
	PublicOnly bool
}

// Public is the scope used by browse and search.
var Public = Visibility{PublicOnly: true}

func (v Visibility) scope(db *gorm.DB) *gorm.DB {
	if v.PublicOnly || v.ViewerID == 0 {
		return db.Where("posts.is_private = ?", false)
	}
	return db.Where("(posts.is_private = ? OR posts.author_id = ?)", false, v.ViewerID)
}

// ClampPage applies the default and maximum page size and rejects negative
// offsets.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	// SQLite reports "UNIQUE constraint failed: users.email"
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
