package service

import (
	"context"
	"log/slog"

	"inspiro/internal/imaging"
	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/repository"
	"inspiro/internal/storage"
)

// ImageInput is a raw image supplied by a client.
type ImageInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageFromDataURL decodes a "data:" URL into an ImageInput.
func ImageFromDataURL(dataURL string) (*ImageInput, error) {
	ct, data, err := imaging.DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return &ImageInput{ContentType: ct, Data: data}, nil
}

// media uploads normalized images and retires assets no row references
// anymore. Retirement never fails the caller: an asset that cannot be removed
// now is queued for the reaper.
type media struct {
	host       storage.Host
	normalizer *imaging.Normalizer
	assets     repository.AssetRepository
}

func (m *media) upload(ctx context.Context, folder string, img *ImageInput, profile imaging.Profile) (storage.Asset, error) {
	res, err := m.normalizer.Normalize(img.Data, img.ContentType, profile)
	if err != nil {
		return storage.Asset{}, err
	}
	asset, err := m.host.Upload(ctx, storage.Upload{
		Folder:      folder,
		Filename:    "image." + res.Ext,
		ContentType: res.ContentType,
		Data:        res.Data,
	})
	if err != nil {
		return storage.Asset{}, models.NewInternalError(err)
	}
	return asset, nil
}

// discard removes the asset behind url, queuing it when removal fails.
func (m *media) discard(ctx context.Context, url, reason string) {
	if url == "" {
		return
	}
	id, err := storage.ParseAssetID(url)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cannot identify hosted asset",
			slog.String("url", url), slog.String("error", err.Error()))
		return
	}
	m.discardID(ctx, id, reason)
}

func (m *media) discardID(ctx context.Context, id, reason string) {
	err := storage.IgnoreNotFound(m.host.Delete(ctx, id))
	if err == nil {
		return
	}
	m.queue(ctx, id, reason, err)
}

func (m *media) queue(ctx context.Context, id, reason string, cause error) {
	attrs := []any{slog.String("asset_id", id), slog.String("reason", reason)}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	middleware.Logger.WarnContext(ctx, "queuing hosted asset for removal", attrs...)
	if err := m.assets.Enqueue(ctx, id, reason); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to queue orphaned asset",
			slog.String("asset_id", id), slog.String("error", err.Error()))
	}
}
