// Package models contains data structures for the application's domain models.
package models

import "time"

// User represents an Inspiro account. PasswordHash is empty for accounts
// created through an external identity provider.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null;size:50" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	IsAdmin      bool      `gorm:"default:false" json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Profile *Profile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// HasPassword reports whether the account can log in with credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
