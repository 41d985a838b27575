package models

import "time"

// OrphanedAsset is a hosted image that no row references anymore and that the
// reaper still has to remove from the image host.
type OrphanedAsset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AssetID   string    `gorm:"uniqueIndex;not null" json:"asset_id"`
	Reason    string    `json:"reason"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
