package service

import (
	"context"
	"testing"

	"inspiro/internal/models"
	"inspiro/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestProfileService_GetProfile(t *testing.T) {
	f := newFixture(t)
	svc := f.profileService()
	ctx := context.Background()

	owner := testutil.CreateUser(t, f.db, "owner")
	other := testutil.CreateUser(t, f.db, "other")

	public := testutil.CreatePost(t, f.db, owner, testutil.PostFixture{Title: "public"})
	hidden := testutil.CreatePost(t, f.db, owner, testutil.PostFixture{Title: "hidden", Private: true})
	othersPublic := testutil.CreatePost(t, f.db, other, testutil.PostFixture{Title: "theirs"})

	testutil.Like(t, f.db, owner, hidden)
	testutil.Like(t, f.db, owner, othersPublic)
	testutil.Save(t, f.db, owner, hidden)
	testutil.Save(t, f.db, owner, public)

	t.Run("owner sees everything", func(t *testing.T) {
		view, err := svc.GetProfile(ctx, "owner", owner.ID)
		require.NoError(t, err)
		assert.True(t, view.IsOwner)
		assert.ElementsMatch(t, []string{"public", "hidden"}, titles(view.Posts))
		assert.ElementsMatch(t, []string{"hidden", "theirs"}, titles(view.LikedPosts))
		assert.ElementsMatch(t, []string{"hidden", "public"}, titles(view.SavedPosts))
	})

	for name, viewer := range map[string]uint{"visitor": other.ID, "anonymous": 0} {
		t.Run(name+" sees public posts only", func(t *testing.T) {
			view, err := svc.GetProfile(ctx, "owner", viewer)
			require.NoError(t, err)
			assert.False(t, view.IsOwner)
			assert.Equal(t, []string{"public"}, titles(view.Posts))
			assert.Equal(t, []string{"theirs"}, titles(view.LikedPosts))
			assert.Equal(t, []string{"public"}, titles(view.SavedPosts))
		})
	}

	_, err := svc.GetProfile(ctx, "ghost", 0)
	assertCode(t, err, models.CodeNotFound)
}
