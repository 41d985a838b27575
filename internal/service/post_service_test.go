package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"inspiro/internal/cache"
	"inspiro/internal/models"
	"inspiro/internal/repository"
	"inspiro/internal/storage"
	"inspiro/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCreateRepo struct {
	repository.PostRepository
}

func (failingCreateRepo) Create(context.Context, *models.Post) error {
	return models.NewInternalError(errors.New("insert failed"))
}

type failingHardDeleteRepo struct {
	repository.PostRepository
}

func (failingHardDeleteRepo) HardDelete(context.Context, uint) error {
	return models.NewInternalError(errors.New("purge failed"))
}

func TestPostService_CreatePost(t *testing.T) {
	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, "author")

	post, err := svc.CreatePost(ctx, CreatePostInput{
		AuthorID:  author.ID,
		Title:     "  Onboarding flow ",
		Tags:      []string{"mobile", "Mobile", " "},
		Softwares: []string{"Figma"},
		Image:     f.pngImage(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "Onboarding flow", post.Title)
	assert.Equal(t, []string{"mobile"}, post.Tags)
	assert.Equal(t, []string{"Figma"}, post.Softwares)
	assert.False(t, post.IsPrivate)
	assert.Equal(t, 1, f.host.Len())

	id, err := storage.ParseAssetID(post.ImageURL)
	require.NoError(t, err)
	assert.True(t, f.host.Has(id))
	assert.Contains(t, id, storage.FolderPosts+"/")
	assert.Equal(t, []string{models.EventPostCreated}, f.events.types())
	assert.True(t, f.events.events[0].Broadcast)

	_, err = svc.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Title: "Draft", IsPrivate: true, Image: f.pngImage(t)})
	require.NoError(t, err)
	require.Len(t, f.events.events, 2)
	assert.False(t, f.events.events[1].Broadcast, "private posts stay quiet")
}

func TestPostService_CreatePostValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, "author")

	_, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Title: " ", Image: f.pngImage(t)})
	assertCode(t, err, models.CodeValidation)

	_, err = svc.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Title: "no image"})
	assertCode(t, err, models.CodeValidation)

	_, err = svc.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Title: "bad image",
		Image: &ImageInput{Data: []byte("not an image")}})
	assertCode(t, err, models.CodeValidation)

	_, err = svc.CreatePost(ctx, CreatePostInput{Title: "anon", Image: f.pngImage(t)})
	assertCode(t, err, models.CodeUnauthorized)

	assert.Zero(t, f.host.Len())
}

func TestPostService_CreatePostCompensatesUpload(t *testing.T) {
	f := newFixture(t)
	svc := NewPostService(failingCreateRepo{f.posts}, f.assets, f.host, f.normalizer, f.events)
	author := testutil.CreateUser(t, f.db, "author")

	_, err := svc.CreatePost(context.Background(), CreatePostInput{AuthorID: author.ID, Title: "t", Image: f.pngImage(t)})
	assertCode(t, err, models.CodeInternal)
	assert.Zero(t, f.host.Len())
	assert.Len(t, f.host.Deleted, 1)
}

func TestPostService_CreatePostQueuesUncompensatedUpload(t *testing.T) {
	f := newFixture(t)
	f.host.DeleteErr = errors.New("host down")
	svc := NewPostService(failingCreateRepo{f.posts}, f.assets, f.host, f.normalizer, f.events)
	author := testutil.CreateUser(t, f.db, "author")

	_, err := svc.CreatePost(context.Background(), CreatePostInput{AuthorID: author.ID, Title: "t", Image: f.pngImage(t)})
	assertCode(t, err, models.CodeInternal)

	pending, err := f.assets.ListPending(context.Background(), 10, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, reasonPostCreateFailed, pending[0].Reason)
}

func TestPostService_GetPostHidesPrivate(t *testing.T) {
	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()

	author := testutil.CreateUser(t, f.db, "author")
	other := testutil.CreateUser(t, f.db, "other")
	post := testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "secret", Private: true})

	got, err := svc.GetPost(ctx, post.ID, other.ID)
	assert.Nil(t, got)
	assertCode(t, err, models.CodeNotFound)

	_, err = svc.GetPost(ctx, post.ID, 0)
	assertCode(t, err, models.CodeNotFound)

	got, err = svc.GetPost(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Title)
}

func TestPostService_UpdatePost(t *testing.T) {
	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()

	author := testutil.CreateUser(t, f.db, "author")
	other := testutil.CreateUser(t, f.db, "other")
	oldURL := f.host.Put("posts_thumbnails/old")
	post := testutil.CreatePost(t, f.db, author, testutil.PostFixture{
		Title: "before", ImageURL: oldURL, Tags: []string{"a"}, Softwares: []string{"Sketch"},
	})

	title := "hijacked"
	_, err := svc.UpdatePost(ctx, UpdatePostInput{ActorID: other.ID, PostID: post.ID, Title: &title})
	assertCode(t, err, models.CodeForbidden)
	unchanged, err := svc.GetPost(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "before", unchanged.Title)

	_, err = svc.UpdatePost(ctx, UpdatePostInput{ActorID: author.ID, PostID: 9999, Title: &title})
	assertCode(t, err, models.CodeNotFound)

	title = "after"
	private := true
	updated, err := svc.UpdatePost(ctx, UpdatePostInput{
		ActorID:   author.ID,
		PostID:    post.ID,
		Title:     &title,
		IsPrivate: &private,
		Tags:      []string{"b", "B"},
		Image:     f.pngImage(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.True(t, updated.IsPrivate)
	assert.Equal(t, []string{"b"}, updated.Tags)
	assert.Equal(t, []string{"Sketch"}, updated.Softwares)
	assert.NotEqual(t, oldURL, updated.ImageURL)
	assert.False(t, f.host.Has("posts_thumbnails/old"))
	assert.Equal(t, 1, f.host.Len())
}

func TestPostService_UpdatePostQueuesOldImageOnRemovalFailure(t *testing.T) {
	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()

	author := testutil.CreateUser(t, f.db, "author")
	oldURL := f.host.Put("posts_thumbnails/old")
	post := testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "t", ImageURL: oldURL})

	f.host.DeleteErr = errors.New("host down")
	_, err := svc.UpdatePost(ctx, UpdatePostInput{ActorID: author.ID, PostID: post.ID, Image: f.pngImage(t)})
	require.NoError(t, err)

	pending, err := f.assets.ListPending(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "posts_thumbnails/old", pending[0].AssetID)
	assert.Equal(t, reasonPostImageReplaced, pending[0].Reason)
}

func TestPostService_DeletePost(t *testing.T) {
	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()

	author := testutil.CreateUser(t, f.db, "author")
	other := testutil.CreateUser(t, f.db, "other")
	url := f.host.Put("posts_thumbnails/p1")
	post := testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "t", ImageURL: url, Tags: []string{"x"}})
	testutil.Like(t, f.db, other, post)

	assertCode(t, svc.DeletePost(ctx, other.ID, post.ID), models.CodeForbidden)
	assertCode(t, svc.DeletePost(ctx, 0, post.ID), models.CodeUnauthorized)

	require.NoError(t, svc.DeletePost(ctx, author.ID, post.ID))
	assert.False(t, f.host.Has("posts_thumbnails/p1"))

	var n int64
	f.db.Unscoped().Model(&models.Post{}).Count(&n)
	assert.Zero(t, n)
	f.db.Model(&models.LikedPost{}).Count(&n)
	assert.Zero(t, n)
	assert.Contains(t, f.events.types(), models.EventPostDeleted)

	assertCode(t, svc.DeletePost(ctx, author.ID, post.ID), models.CodeNotFound)
}

func TestPostService_DeletePostWithUnparseableImageKeepsRow(t *testing.T) {
	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()

	author := testutil.CreateUser(t, f.db, "author")
	post := testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "t", ImageURL: "not-a-hosted-url"})

	assertCode(t, svc.DeletePost(ctx, author.ID, post.ID), models.CodeInternal)

	got, err := svc.GetPost(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)
}

func TestPostService_DeletePostRestoresOnHostFailure(t *testing.T) {
	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()

	author := testutil.CreateUser(t, f.db, "author")
	url := f.host.Put("posts_thumbnails/p1")
	post := testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "t", ImageURL: url})

	f.host.DeleteErr = errors.New("host down")
	assertCode(t, svc.DeletePost(ctx, author.ID, post.ID), models.CodeInternal)

	got, err := svc.GetPost(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)
	assert.True(t, f.host.Has("posts_thumbnails/p1"))
}

func TestPostService_DeletePostDefersPurge(t *testing.T) {
	f := newFixture(t)
	svc := NewPostService(failingHardDeleteRepo{f.posts}, f.assets, f.host, f.normalizer, f.events)
	ctx := context.Background()

	author := testutil.CreateUser(t, f.db, "author")
	url := f.host.Put("posts_thumbnails/p1")
	post := testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "t", ImageURL: url})

	require.NoError(t, svc.DeletePost(ctx, author.ID, post.ID))
	_, err := svc.GetPost(ctx, post.ID, author.ID)
	assertCode(t, err, models.CodeNotFound)

	hidden, err := f.posts.ListSoftDeleted(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, hidden, 1)
}

func TestPostService_SearchFigmaExample(t *testing.T) {
	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()

	author := testutil.CreateUser(t, f.db, "author")
	testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "A", Softwares: []string{"Figma", "Sketch"}})
	testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "B", Softwares: []string{"Figma"}, Private: true})

	for _, viewer := range []uint{0, author.ID} {
		posts, err := svc.SearchPosts(ctx, "Figma", 0, 0, viewer)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "A", posts[0].Title)
	}
}

func TestPostService_BrowseIsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, "author")
	testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "first"})

	posts, err := svc.SearchPosts(ctx, "", 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.True(t, mr.Exists(cache.BrowseKey(ctx, repository.DefaultPageSize, 0)))

	// Written behind the repository's back: the cached page is still served.
	testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "second"})
	posts, err = svc.SearchPosts(ctx, "", 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	// A mutation through the repository invalidates the feed.
	_, err = svc.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Title: "third", Image: f.pngImage(t)})
	require.NoError(t, err)
	posts, err = svc.SearchPosts(ctx, "", 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
}

func TestPostService_BrowseDropsDeletedAccounts(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()
	leaving := testutil.CreateUser(t, f.db, "leaving")
	testutil.CreatePost(t, f.db, leaving, testutil.PostFixture{Title: "farewell"})

	posts, err := svc.SearchPosts(ctx, "", 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	require.NoError(t, f.accountService().DeleteAccount(ctx, leaving.ID, DeleteAccountPhrase))

	posts, err = svc.SearchPosts(ctx, "", 0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPostService_BrowseFollowsAuthorRename(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	f := newFixture(t)
	svc := f.postService()
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, "author")
	testutil.CreatePost(t, f.db, author, testutil.PostFixture{Title: "poster"})

	_, err := svc.SearchPosts(ctx, "", 0, 0, 0)
	require.NoError(t, err)

	name := "Ada Studio"
	_, err = f.accountService().UpdateProfile(ctx, ProfileInput{UserID: author.ID, Name: &name})
	require.NoError(t, err)

	posts, err := svc.SearchPosts(ctx, "", 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Ada Studio", posts[0].Author.Name)
}
