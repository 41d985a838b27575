package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inspiro/internal/middleware"
	"inspiro/internal/observability"
	"inspiro/internal/repository"
	"inspiro/internal/storage"

	"github.com/robfig/cron/v3"
)

const (
	maxReapAttempts  = 10
	reapBatchSize    = 100
	softDeleteGrace  = time.Minute
	reapKindAsset    = "orphaned_asset"
	reapKindPost     = "soft_deleted_post"
	outcomeRemoved   = "removed"
	outcomeFailed    = "failed"
	outcomeExhausted = "exhausted"
)

// ReapReport summarizes one reaper run.
type ReapReport struct {
	AssetsRemoved int
	AssetsFailed  int
	PostsPurged   int
	PostsFailed   int
}

// AssetReaper removes queued orphaned assets and finishes purging posts whose
// deletion was interrupted.
type AssetReaper struct {
	posts  repository.PostRepository
	assets repository.AssetRepository
	host   storage.Host
	now    func() time.Time
	cron   *cron.Cron
}

func NewAssetReaper(posts repository.PostRepository, assets repository.AssetRepository, host storage.Host) *AssetReaper {
	return &AssetReaper{posts: posts, assets: assets, host: host, now: time.Now}
}

// Start schedules RunOnce. Overlapping runs are skipped.
func (r *AssetReaper) Start(schedule string) error {
	logger := cron.VerbosePrintfLogger(slog.NewLogLogger(middleware.Logger.Handler(), slog.LevelDebug))
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			middleware.Logger.ErrorContext(ctx, "asset reaper run failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	c.Start()
	r.cron = c
	middleware.Logger.Info("asset reaper scheduled", slog.String("schedule", schedule))
	return nil
}

// Stop waits for a running job to finish.
func (r *AssetReaper) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce processes one batch of queued assets and soft-deleted posts.
func (r *AssetReaper) RunOnce(ctx context.Context) (ReapReport, error) {
	var report ReapReport
	span, ctx := observability.NewSpan(ctx, "asset_reaper.run")

	assetErr := r.reapAssets(ctx, &report)
	postErr := r.purgePosts(ctx, &report)
	err := errors.Join(assetErr, postErr)
	span.End(err)

	if report != (ReapReport{}) {
		middleware.Logger.InfoContext(ctx, "asset reaper finished",
			slog.Int("assets_removed", report.AssetsRemoved),
			slog.Int("assets_failed", report.AssetsFailed),
			slog.Int("posts_purged", report.PostsPurged),
			slog.Int("posts_failed", report.PostsFailed),
		)
	}
	return report, err
}

func (r *AssetReaper) reapAssets(ctx context.Context, report *ReapReport) error {
	pending, err := r.assets.ListPending(ctx, maxReapAttempts, reapBatchSize)
	if err != nil {
		return err
	}
	for _, a := range pending {
		delErr := storage.IgnoreNotFound(r.host.Delete(ctx, a.AssetID))
		if errors.Is(delErr, storage.ErrInvalidAssetID) {
			// can never succeed; drop it
			middleware.Logger.ErrorContext(ctx, "dropping invalid orphaned asset", slog.String("asset_id", a.AssetID))
			delErr = nil
		}
		if delErr == nil {
			if err := r.assets.Remove(ctx, a.ID); err != nil {
				return err
			}
			report.AssetsRemoved++
			observability.ReaperOutcomes.WithLabelValues(reapKindAsset, outcomeRemoved).Inc()
			continue
		}

		report.AssetsFailed++
		if err := r.assets.RecordFailure(ctx, a.ID, delErr); err != nil {
			return err
		}
		outcome := outcomeFailed
		if a.Attempts+1 >= maxReapAttempts {
			outcome = outcomeExhausted
			middleware.Logger.ErrorContext(ctx, "orphaned asset needs manual cleanup",
				slog.String("asset_id", a.AssetID),
				slog.Int("attempts", a.Attempts+1),
				slog.String("error", delErr.Error()),
			)
		}
		observability.ReaperOutcomes.WithLabelValues(reapKindAsset, outcome).Inc()
	}
	return nil
}

func (r *AssetReaper) purgePosts(ctx context.Context, report *ReapReport) error {
	hidden, err := r.posts.ListSoftDeleted(ctx, r.now().Add(-softDeleteGrace), reapBatchSize)
	if err != nil {
		return err
	}
	for _, p := range hidden {
		if id, err := storage.ParseAssetID(p.ImageURL); err == nil {
			if err := storage.IgnoreNotFound(r.host.Delete(ctx, id)); err != nil {
				report.PostsFailed++
				observability.ReaperOutcomes.WithLabelValues(reapKindPost, outcomeFailed).Inc()
				middleware.Logger.WarnContext(ctx, "soft-deleted post image removal failed",
					slog.Uint64("post_id", uint64(p.ID)), slog.String("error", err.Error()))
				continue
			}
		}
		if err := r.posts.HardDelete(ctx, p.ID); err != nil {
			report.PostsFailed++
			observability.ReaperOutcomes.WithLabelValues(reapKindPost, outcomeFailed).Inc()
			continue
		}
		report.PostsPurged++
		observability.ReaperOutcomes.WithLabelValues(reapKindPost, outcomeRemoved).Inc()
	}
	return nil
}
