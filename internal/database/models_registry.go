package database

import "inspiro/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Profile{},
		&models.Post{},
		&models.PostLabel{},
		&models.LikedPost{},
		&models.SavedPost{},
		&models.OrphanedAsset{},
	}
}
