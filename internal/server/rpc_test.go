package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"inspiro/internal/models"
	"inspiro/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcEnvelope[T any] struct {
	Result T `json:"result"`
}

func rpcQuery(name string, input any) *http.Request {
	target := "/api/rpc/" + name
	if input != nil {
		raw, _ := json.Marshal(input)
		target += "?input=" + url.QueryEscape(string(raw))
	}
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func TestRPCDispatch(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Unknown Procedure", func(t *testing.T) {
		var body models.ErrorResponse
		assert.Equal(t, http.StatusNotFound, env.do(t, rpcQuery("posts.nope", nil), "", &body))
		assert.Equal(t, models.CodeNotFound, body.Code)
	})

	t.Run("Query Via POST", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/api/rpc/posts.allPosts", map[string]any{})
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, http.MethodGet, resp.Header.Get("Allow"))
	})

	t.Run("Mutation Via GET", func(t *testing.T) {
		resp, err := env.app.Test(rpcQuery("posts.likePost", map[string]any{"id": 1}), -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
	})

	t.Run("Invalid Input", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/rpc/posts.post?input="+url.QueryEscape("{"), nil)
		assert.Equal(t, http.StatusBadRequest, env.do(t, req, "", nil))
	})

	t.Run("Mutation Requires Identity", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/api/rpc/posts.likePost", map[string]any{"id": 1})
		assert.Equal(t, http.StatusUnauthorized, env.do(t, req, "", nil))
	})

	t.Run("Anonymous Me", func(t *testing.T) {
		var out rpcEnvelope[*models.User]
		require.Equal(t, http.StatusOK, env.do(t, rpcQuery("users.me", nil), "", &out))
		assert.Nil(t, out.Result)
	})
}

func TestRPCPostLifecycle(t *testing.T) {
	env := newTestEnv(t)

	var signup rpcEnvelope[AuthResponse]
	req := jsonRequest(http.MethodPost, "/api/rpc/users.signup", map[string]string{
		"username": "rpc_user",
		"email":    "rpc@example.com",
		"password": "Sup3r-Secret!pw",
	})
	require.Equal(t, http.StatusOK, env.do(t, req, "", &signup))
	require.NotEmpty(t, signup.Result.Token)
	token := signup.Result.Token

	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testutil.TinyPNG(t, 8, 8))
	var created rpcEnvelope[models.Post]
	req = jsonRequest(http.MethodPost, "/api/rpc/posts.newPost", map[string]any{
		"title": "Via RPC",
		"tags":  []string{"rpc"},
		"image": image,
	})
	require.Equal(t, http.StatusOK, env.do(t, req, token, &created))
	assert.Equal(t, "Via RPC", created.Result.Title)
	postID := created.Result.ID

	var fetched rpcEnvelope[models.Post]
	require.Equal(t, http.StatusOK, env.do(t, rpcQuery("posts.post", map[string]any{"id": postID}), "", &fetched))
	assert.Equal(t, []string{"rpc"}, fetched.Result.Tags)

	var listed rpcEnvelope[[]models.Post]
	require.Equal(t, http.StatusOK, env.do(t, rpcQuery("posts.allPosts", map[string]any{"q": "rpc"}), "", &listed))
	assert.Len(t, listed.Result, 1)

	var updated rpcEnvelope[models.Post]
	req = jsonRequest(http.MethodPost, "/api/rpc/posts.updatePost", map[string]any{"id": postID, "is_private": true})
	require.Equal(t, http.StatusOK, env.do(t, req, token, &updated))
	assert.True(t, updated.Result.IsPrivate)

	assert.Equal(t, http.StatusNotFound, env.do(t, rpcQuery("posts.post", map[string]any{"id": postID}), "", nil))

	var profile rpcEnvelope[models.ProfileView]
	require.Equal(t, http.StatusOK, env.do(t, rpcQuery("users.user", map[string]any{"username": "rpc_user"}), token, &profile))
	assert.True(t, profile.Result.IsOwner)
	assert.Len(t, profile.Result.Posts, 1)

	req = jsonRequest(http.MethodPost, "/api/rpc/posts.deletePost", map[string]any{"id": postID})
	require.Equal(t, http.StatusOK, env.do(t, req, token, nil))
	assert.Zero(t, env.host.Len())
}

func TestRPCEngagementAndAccount(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "author")
	fan := testutil.CreateUser(t, env.db, "fan")
	post := testutil.CreatePost(t, env.db, author, testutil.PostFixture{Title: "Shared"})
	token := env.token(t, fan)

	for _, name := range []string{"posts.likePost", "posts.savePost"} {
		var state rpcEnvelope[models.EngagementState]
		req := jsonRequest(http.MethodPost, "/api/rpc/"+name, map[string]any{"id": post.ID})
		require.Equal(t, http.StatusOK, env.do(t, req, token, &state), name)
		assert.True(t, state.Result.Engaged, name)
	}

	var liked, saved rpcEnvelope[[]models.Post]
	require.Equal(t, http.StatusOK, env.do(t, rpcQuery("posts.likedPosts", nil), token, &liked))
	require.Equal(t, http.StatusOK, env.do(t, rpcQuery("posts.savedPosts", nil), token, &saved))
	assert.Len(t, liked.Result, 1)
	assert.Len(t, saved.Result, 1)

	var data rpcEnvelope[models.AccountData]
	require.Equal(t, http.StatusOK, env.do(t, rpcQuery("users.requestUserData", nil), token, &data))
	assert.True(t, data.Result.HasOldPassword)

	var profile rpcEnvelope[models.User]
	req := jsonRequest(http.MethodPost, "/api/rpc/users.updateProfile", map[string]any{"bio": "Collector"})
	require.Equal(t, http.StatusOK, env.do(t, req, token, &profile))
	require.NotNil(t, profile.Result.Profile)
	assert.Equal(t, "Collector", profile.Result.Profile.Bio)

	req = jsonRequest(http.MethodPost, "/api/rpc/users.createProfile", map[string]any{"username": "author"})
	assert.Equal(t, http.StatusConflict, env.do(t, req, token, nil))

	req = jsonRequest(http.MethodPost, "/api/rpc/users.updatePassword", map[string]any{
		"old_password": "wrong", "new_password": "N3w-Passw0rd!!", "confirm_password": "N3w-Passw0rd!!",
	})
	assert.Equal(t, http.StatusUnauthorized, env.do(t, req, token, nil))

	req = jsonRequest(http.MethodPost, "/api/rpc/users.deleteAccount", map[string]any{"confirmation": "delete my account"})
	require.Equal(t, http.StatusOK, env.do(t, req, token, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/users/%s", fan.Username), nil), "", nil))
}
