package service

import (
	"context"
	"errors"
	"testing"

	"inspiro/internal/models"
	"inspiro/internal/storage"
	"inspiro/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Sup3r-Secret!pw"

func strPtr(s string) *string { return &s }

func TestAccountService_SignupAndLogin(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Username: "ada", Email: " Ada@Example.com ", Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "ada", user.Name)
	assert.NotEqual(t, strongPassword, user.PasswordHash)

	got, err := svc.Login(ctx, "ADA@example.com", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	assertCode(t, err, models.CodeUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", strongPassword)
	assertCode(t, err, models.CodeUnauthorized)
}

func TestAccountService_SignupRejects(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "taken")

	tests := []struct {
		name string
		in   SignupInput
		code string
	}{
		{"missing fields", SignupInput{Username: "x"}, models.CodeValidation},
		{"weak password", SignupInput{Username: "newbie", Email: "n@example.com", Password: "short"}, models.CodeValidation},
		{"bad email", SignupInput{Username: "newbie", Email: "nope", Password: strongPassword}, models.CodeValidation},
		{"email taken", SignupInput{Username: "newbie", Email: "taken@example.com", Password: strongPassword}, models.CodeConflict},
		{"username taken", SignupInput{Username: "taken", Email: "n@example.com", Password: strongPassword}, models.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.in)
			assertCode(t, err, tt.code)
		})
	}
}

func TestAccountService_MeAndUserData(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()

	me, err := svc.Me(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, me)

	user := testutil.CreateUser(t, f.db, "ada")
	me, err = svc.Me(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, me.Profile)
	assert.Equal(t, user.ID, me.Profile.UserID)

	data, err := svc.RequestUserData(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, data.HasOldPassword)

	_, err = svc.RequestUserData(ctx, 0)
	assertCode(t, err, models.CodeUnauthorized)
}

func TestAccountService_ProfileUpdates(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "ada")
	testutil.CreateUser(t, f.db, "grace")

	_, err := svc.CreateProfile(ctx, ProfileInput{UserID: user.ID, Username: strPtr("grace")})
	assertCode(t, err, models.CodeConflict)

	updated, err := svc.CreateProfile(ctx, ProfileInput{
		UserID:   user.ID,
		Username: strPtr(" lovelace "),
		Name:     strPtr("ignored on create"),
		Bio:      strPtr("analytical engines"),
		Avatar:   f.pngImage(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "lovelace", updated.Username)
	assert.Equal(t, "ada", updated.Name)
	require.NotNil(t, updated.Profile)
	assert.Equal(t, "analytical engines", updated.Profile.Bio)
	firstAvatar := updated.Profile.Avatar
	assert.NotEmpty(t, firstAvatar)

	updated, err = svc.UpdateProfile(ctx, ProfileInput{
		UserID: user.ID,
		Name:   strPtr("Ada Lovelace"),
		Avatar: f.pngImage(t),
		Banner: f.pngImage(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.Equal(t, "lovelace", updated.Username)
	assert.NotEqual(t, firstAvatar, updated.Profile.Avatar)
	assert.NotEmpty(t, updated.Profile.Banner)

	oldID, err := storage.ParseAssetID(firstAvatar)
	require.NoError(t, err)
	assert.False(t, f.host.Has(oldID))
	assert.Equal(t, 2, f.host.Len())
}

func TestAccountService_ProfileUploadFailureLeavesProfile(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "ada")

	f.host.UploadErr = errors.New("host down")
	_, err := svc.UpdateProfile(ctx, ProfileInput{UserID: user.ID, Bio: strPtr("new"), Avatar: f.pngImage(t)})
	assertCode(t, err, models.CodeInternal)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, me.Profile.Bio)
	assert.Empty(t, me.Profile.Avatar)
}

func TestAccountService_UpdatePassword(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Username: "ada", Email: "ada@example.com", Password: strongPassword})
	require.NoError(t, err)
	next := "An0ther-Secret!pw"

	assertCode(t, svc.UpdatePassword(ctx, UpdatePasswordInput{UserID: user.ID, NewPassword: next, ConfirmPassword: next}), models.CodeValidation)
	assertCode(t, svc.UpdatePassword(ctx, UpdatePasswordInput{UserID: user.ID, OldPassword: "wrong", NewPassword: next, ConfirmPassword: next}), models.CodeUnauthorized)
	assertCode(t, svc.UpdatePassword(ctx, UpdatePasswordInput{UserID: user.ID, OldPassword: strongPassword, NewPassword: next, ConfirmPassword: "other"}), models.CodeValidation)

	require.NoError(t, svc.UpdatePassword(ctx, UpdatePasswordInput{UserID: user.ID, OldPassword: strongPassword, NewPassword: next, ConfirmPassword: next}))

	_, err = svc.Login(ctx, "ada@example.com", strongPassword)
	assertCode(t, err, models.CodeUnauthorized)
	_, err = svc.Login(ctx, "ada@example.com", next)
	require.NoError(t, err)
}

func TestAccountService_UpdatePasswordWithoutExistingPassword(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "oauth")
	require.NoError(t, f.db.Model(user).Update("password_hash", "").Error)

	data, err := svc.RequestUserData(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, data.HasOldPassword)

	require.NoError(t, svc.UpdatePassword(ctx, UpdatePasswordInput{UserID: user.ID, NewPassword: strongPassword, ConfirmPassword: strongPassword}))
	_, err = svc.Login(ctx, "oauth@example.com", strongPassword)
	require.NoError(t, err)
}

func TestAccountService_DeleteAccount(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "ada")
	testutil.CreatePost(t, f.db, user, testutil.PostFixture{Title: "t", ImageURL: f.host.Put("posts_thumbnails/p1")})

	assertCode(t, svc.DeleteAccount(ctx, user.ID, "yes please"), models.CodeValidation)
	assertCode(t, svc.DeleteAccount(ctx, 0, DeleteAccountPhrase), models.CodeUnauthorized)

	require.NoError(t, svc.DeleteAccount(ctx, user.ID, " Delete My Account "))

	_, err := svc.Me(ctx, user.ID)
	assertCode(t, err, models.CodeNotFound)

	pending, err := f.assets.ListPending(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "posts_thumbnails/p1", pending[0].AssetID)
	assert.Equal(t, []string{models.EventAccountDeleted}, f.events.types())
}
