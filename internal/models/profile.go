package models

import "time"

// Profile holds the presentational data of a user. Exactly one row exists per
// user once it has been requested.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Avatar    string    `json:"avatar"`
	Banner    string    `json:"banner"`
	Bio       string    `gorm:"type:text" json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileView is the aggregate rendered on a user's page.
type ProfileView struct {
	User       User    `json:"user"`
	Profile    Profile `json:"profile"`
	Posts      []Post  `json:"posts"`
	LikedPosts []Post  `json:"liked_posts"`
	SavedPosts []Post  `json:"saved_posts"`
	IsOwner    bool    `json:"is_owner"`
}

// AccountData describes the credential state of the current account.
type AccountData struct {
	HasOldPassword bool `json:"has_old_password"`
}
