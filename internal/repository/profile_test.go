package repository

import (
	"context"
	"testing"

	"inspiro/internal/models"
	"inspiro/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestProfileRepository_GetOrCreate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "bare", Email: "bare@example.com"}
	require.NoError(t, db.Create(user).Error)

	first, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestProfileRepository_Apply(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "ada")
	testutil.CreateUser(t, db, "grace")

	updated, err := repo.Apply(ctx, user.ID, ProfileChanges{
		Username: strPtr("ada_l"),
		Bio:      strPtr("analytical"),
		Avatar:   strPtr("https://images.test/profiles/1.jpg"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ada_l", updated.Username)
	assert.Equal(t, "analytical", updated.Profile.Bio)
	assert.Equal(t, "https://images.test/profiles/1.jpg", updated.Profile.Avatar)

	updated, err = repo.Apply(ctx, user.ID, ProfileChanges{Name: strPtr("Ada Lovelace")})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.Equal(t, "analytical", updated.Profile.Bio)

	_, err = repo.Apply(ctx, user.ID, ProfileChanges{Username: strPtr("grace"), Bio: strPtr("lost")})
	assert.True(t, models.IsCode(err, models.CodeConflict), "got %v", err)

	var profile models.Profile
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&profile).Error)
	assert.Equal(t, "analytical", profile.Bio)

	_, err = repo.Apply(ctx, 9999, ProfileChanges{Bio: strPtr("x")})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
