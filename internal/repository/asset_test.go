package repository

import (
	"context"
	"errors"
	"testing"

	"inspiro/internal/models"
	"inspiro/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetRepository_Queue(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAssetRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, "posts_thumbnails/a", "post_image_replaced"))
	require.NoError(t, repo.Enqueue(ctx, "posts_thumbnails/a", "duplicate"))
	require.NoError(t, repo.Enqueue(ctx, "profiles/b", "account_deleted"))

	pending, err := repo.ListPending(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "posts_thumbnails/a", pending[0].AssetID)
	assert.Equal(t, "post_image_replaced", pending[0].Reason)

	require.NoError(t, repo.RecordFailure(ctx, pending[0].ID, errors.New("host down")))
	require.NoError(t, repo.RecordFailure(ctx, pending[0].ID, errors.New("host down")))

	var stored models.OrphanedAsset
	require.NoError(t, db.First(&stored, pending[0].ID).Error)
	assert.Equal(t, 2, stored.Attempts)
	assert.Equal(t, "host down", stored.LastError)

	pending, err = repo.ListPending(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "profiles/b", pending[0].AssetID)

	require.NoError(t, repo.Remove(ctx, pending[0].ID))
	pending, err = repo.ListPending(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
