package models

import "time"

// EngagementKind names the two kinds of engagement edge.
type EngagementKind string

const (
	EngagementLike EngagementKind = "like"
	EngagementSave EngagementKind = "save"
)

// LikedPost is the like edge between a user and a post. The composite primary
// key allows at most one row per pair.
type LikedPost struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedPost is the save (bookmark) edge between a user and a post.
type SavedPost struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// EngagementState is the result of a toggle.
type EngagementState struct {
	PostID  uint           `json:"post_id"`
	Kind    EngagementKind `json:"kind"`
	Engaged bool           `json:"engaged"`
	Count   int64          `json:"count"`
}
