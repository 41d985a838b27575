package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"inspiro/internal/models"
	"inspiro/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetReaper_RemovesQueuedAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.host.Put("profiles/a")
	require.NoError(t, f.assets.Enqueue(ctx, "profiles/a", "test"))
	require.NoError(t, f.assets.Enqueue(ctx, "profiles/already-gone", "test"))

	report, err := NewAssetReaper(f.posts, f.assets, f.host).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.AssetsRemoved)
	assert.False(t, f.host.Has("profiles/a"))

	pending, err := f.assets.ListPending(ctx, maxReapAttempts, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAssetReaper_RecordsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.host.Put("profiles/a")
	require.NoError(t, f.assets.Enqueue(ctx, "profiles/a", "test"))
	f.host.DeleteErr = errors.New("host down")

	reaper := NewAssetReaper(f.posts, f.assets, f.host)
	for i := 0; i < maxReapAttempts; i++ {
		report, err := reaper.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.AssetsFailed)
	}

	var row models.OrphanedAsset
	require.NoError(t, f.db.Where("asset_id = ?", "profiles/a").First(&row).Error)
	assert.Equal(t, maxReapAttempts, row.Attempts)
	assert.Equal(t, "host down", row.LastError)

	// Exhausted entries are no longer retried.
	report, err := reaper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.AssetsFailed)
}

func TestAssetReaper_PurgesStaleSoftDeletedPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, "author")

	stale := testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "stale", ImageURL: f.host.Put("posts_thumbnails/stale")})
	fresh := testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "fresh", ImageURL: f.host.Put("posts_thumbnails/fresh")})
	require.NoError(t, f.posts.SoftDelete(ctx, stale.ID))
	require.NoError(t, f.posts.SoftDelete(ctx, fresh.ID))
	require.NoError(t, f.db.Unscoped().Model(&models.Post{}).Where("id = ?", stale.ID).
		Update("deleted_at", time.Now().Add(-time.Hour)).Error)

	reaper := NewAssetReaper(f.posts, f.assets, f.host)
	report, err := reaper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PostsPurged)
	assert.False(t, f.host.Has("posts_thumbnails/stale"))
	assert.True(t, f.host.Has("posts_thumbnails/fresh"))

	var n int64
	f.db.Unscoped().Model(&models.Post{}).Where("id = ?", stale.ID).Count(&n)
	assert.Zero(t, n)

	reaper.now = func() time.Time { return time.Now().Add(time.Hour) }
	report, err = reaper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PostsPurged)
	assert.Zero(t, f.host.Len())
}

func TestAssetReaper_StartRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	reaper := NewAssetReaper(f.posts, f.assets, f.host)
	assert.Error(t, reaper.Start("not a schedule"))

	require.NoError(t, reaper.Start("@every 1h"))
	reaper.Stop()
}
