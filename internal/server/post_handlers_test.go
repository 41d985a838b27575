package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"inspiro/internal/models"
	"inspiro/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "author")
	token := env.token(t, author)
	png := testutil.TinyPNG(t, 8, 8)

	t.Run("Success", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPost, "/api/posts", map[string]string{
			"title":      "  Neon Dashboard  ",
			"tags":       "ui,Dark",
			"softwares":  "figma",
			"is_private": "false",
		}, multipartFile{field: "image", filename: "shot.png", data: png})

		var post models.Post
		status := env.do(t, req, token, &post)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "Neon Dashboard", post.Title)
		assert.Equal(t, author.ID, post.AuthorID)
		assert.ElementsMatch(t, []string{"ui", "Dark"}, post.Tags)
		assert.Equal(t, []string{"figma"}, post.Softwares)
		assert.Equal(t, 1, env.host.Len())
	})

	t.Run("Missing Image", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPost, "/api/posts", map[string]string{"title": "No image"})
		var body models.ErrorResponse
		assert.Equal(t, http.StatusBadRequest, env.do(t, req, token, &body))
		assert.Equal(t, models.CodeValidation, body.Code)
	})

	t.Run("Anonymous", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPost, "/api/posts", map[string]string{"title": "x"},
			multipartFile{field: "image", filename: "shot.png", data: png})
		assert.Equal(t, http.StatusUnauthorized, env.do(t, req, "", nil))
	})

	t.Run("Bad Boolean", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPost, "/api/posts", map[string]string{"title": "x", "is_private": "maybe"},
			multipartFile{field: "image", filename: "shot.png", data: png})
		assert.Equal(t, http.StatusBadRequest, env.do(t, req, token, nil))
	})
}

func TestGetPostVisibility(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "owner")
	other := testutil.CreateUser(t, env.db, "other")
	private := testutil.CreatePost(t, env.db, owner, testutil.PostFixture{Title: "Secret", Private: true})

	path := fmt.Sprintf("/api/posts/%d", private.ID)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"Owner", env.token(t, owner), http.StatusOK},
		{"Other User", env.token(t, other), http.StatusNotFound},
		{"Anonymous", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, env.do(t, httptest.NewRequest(http.MethodGet, path, nil), tt.token, nil))
		})
	}

	t.Run("Invalid ID", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(t, httptest.NewRequest(http.MethodGet, "/api/posts/abc", nil), "", nil))
	})
}

func TestGetPostsSearch(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	testutil.CreatePost(t, env.db, alice, testutil.PostFixture{Title: "Landing page", Tags: []string{"web"}})
	testutil.CreatePost(t, env.db, alice, testutil.PostFixture{Title: "Mobile app", Softwares: []string{"figma"}})
	testutil.CreatePost(t, env.db, alice, testutil.PostFixture{Title: "Figma secrets", Private: true})

	var all []models.Post
	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodGet, "/api/posts", nil), "", &all))
	assert.Len(t, all, 2)

	var found []models.Post
	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodGet, "/api/posts?q=FIGMA", nil), env.token(t, alice), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Mobile app", found[0].Title)

	var paged []models.Post
	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodGet, "/api/posts?limit=1&offset=1", nil), "", &paged))
	assert.Len(t, paged, 1)
}

func TestUpdatePost(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "owner")
	intruder := testutil.CreateUser(t, env.db, "intruder")
	post := testutil.CreatePost(t, env.db, owner, testutil.PostFixture{Title: "Before", Tags: []string{"old"}})
	path := fmt.Sprintf("/api/posts/%d", post.ID)

	t.Run("Forbidden For Others", func(t *testing.T) {
		req := jsonRequest(http.MethodPatch, path, map[string]any{"title": "Hijacked"})
		assert.Equal(t, http.StatusForbidden, env.do(t, req, env.token(t, intruder), nil))
	})

	t.Run("Partial JSON Update", func(t *testing.T) {
		req := jsonRequest(http.MethodPatch, path, map[string]any{"is_private": true})
		var updated models.Post
		require.Equal(t, http.StatusOK, env.do(t, req, env.token(t, owner), &updated))
		assert.Equal(t, "Before", updated.Title)
		assert.True(t, updated.IsPrivate)
		assert.Equal(t, []string{"old"}, updated.Tags)
	})

	t.Run("Multipart Clears Tags", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPatch, path, map[string]string{"title": "After", "tags": ""})
		var updated models.Post
		require.Equal(t, http.StatusOK, env.do(t, req, env.token(t, owner), &updated))
		assert.Equal(t, "After", updated.Title)
		assert.Empty(t, updated.Tags)
	})
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "owner")
	url := env.host.Put("posts_thumbnails/seeded")
	post := testutil.CreatePost(t, env.db, owner, testutil.PostFixture{Title: "Doomed", ImageURL: url})
	path := fmt.Sprintf("/api/posts/%d", post.ID)

	stranger := testutil.CreateUser(t, env.db, "stranger")
	assert.Equal(t, http.StatusForbidden, env.do(t, httptest.NewRequest(http.MethodDelete, path, nil), env.token(t, stranger), nil))

	assert.Equal(t, http.StatusNoContent, env.do(t, httptest.NewRequest(http.MethodDelete, path, nil), env.token(t, owner), nil))
	assert.False(t, env.host.Has("posts_thumbnails/seeded"))
	assert.Equal(t, http.StatusNotFound, env.do(t, httptest.NewRequest(http.MethodGet, path, nil), env.token(t, owner), nil))
}

func TestToggleEngagement(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "author")
	fan := testutil.CreateUser(t, env.db, "fan")
	post := testutil.CreatePost(t, env.db, author, testutil.PostFixture{Title: "Likeable"})
	fanToken := env.token(t, fan)

	likePath := fmt.Sprintf("/api/posts/%d/like", post.ID)
	var state models.EngagementState
	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodPost, likePath, nil), fanToken, &state))
	assert.True(t, state.Engaged)
	assert.EqualValues(t, 1, state.Count)

	var likers []models.User
	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d/likes", post.ID), nil), "", &likers))
	require.Len(t, likers, 1)
	assert.Equal(t, "fan", likers[0].Username)

	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodPost, likePath, nil), fanToken, &state))
	assert.False(t, state.Engaged)
	assert.EqualValues(t, 0, state.Count)

	savePath := fmt.Sprintf("/api/posts/%d/save", post.ID)
	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodPost, savePath, nil), fanToken, &state))
	assert.True(t, state.Engaged)
	assert.Equal(t, models.EngagementSave, state.Kind)

	// Authors cannot engage with their own posts by default.
	assert.Equal(t, http.StatusForbidden, env.do(t, httptest.NewRequest(http.MethodPost, likePath, nil), env.token(t, author), nil))
}

func TestGetPostTags(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "author")
	other := testutil.CreateUser(t, env.db, "other")
	testutil.CreatePost(t, env.db, author, testutil.PostFixture{Title: "Open", Tags: []string{"poster"}})
	testutil.CreatePost(t, env.db, author, testutil.PostFixture{Title: "Hidden", Tags: []string{"draft"}, Private: true})

	var tags []string
	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodGet, "/api/posts/tags", nil), env.token(t, other), &tags))
	assert.Equal(t, []string{"poster"}, tags)

	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodGet, "/api/posts/tags", nil), env.token(t, author), &tags))
	assert.ElementsMatch(t, []string{"poster", "draft"}, tags)

	var rpc rpcEnvelope[[]string]
	require.Equal(t, http.StatusOK, env.do(t, rpcQuery("posts.getAllTags", nil), "", &rpc))
	assert.Equal(t, []string{"poster"}, rpc.Result)
}
