package repository

import (
	"context"

	"inspiro/internal/models"
	"inspiro/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetRepository is the queue of hosted assets waiting for removal.
type AssetRepository interface {
	Enqueue(ctx context.Context, assetID, reason string) error
	ListPending(ctx context.Context, maxAttempts, limit int) ([]models.OrphanedAsset, error)
	RecordFailure(ctx context.Context, id uint, cause error) error
	Remove(ctx context.Context, id uint) error
}

type assetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new orphaned asset repository
func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

// Enqueue records assetID for removal. Queuing the same asset twice is a no-op.
func (r *assetRepository) Enqueue(ctx context.Context, assetID, reason string) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "asset_id"}}, DoNothing: true}).
		Create(&models.OrphanedAsset{AssetID: assetID, Reason: reason})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		observability.OrphanedAssetsQueued.WithLabelValues(reason).Inc()
	}
	return nil
}

// ListPending returns queued assets that have not exhausted their attempts,
// oldest first.
func (r *assetRepository) ListPending(ctx context.Context, maxAttempts, limit int) ([]models.OrphanedAsset, error) {
	var assets []models.OrphanedAsset
	err := r.db.WithContext(ctx).
		Where("attempts < ?", maxAttempts).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&assets).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return assets, nil
}

func (r *assetRepository) RecordFailure(ctx context.Context, id uint, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	err := r.db.WithContext(ctx).Model(&models.OrphanedAsset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *assetRepository) Remove(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.OrphanedAsset{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
