package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCheckRateLimit(t *testing.T) {
	t.Run("bypassed in test env", func(t *testing.T) {
		t.Setenv("APP_ENV", "test")
		allowed, _, err := CheckRateLimit(context.Background(), nil, "r", "1", 1, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("nil redis errors in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		allowed, _, err := CheckRateLimit(context.Background(), nil, "r", "1", 1, time.Minute)
		assert.Error(t, err)
		assert.False(t, allowed)
	})

	t.Run("window counts and expires", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newTestRedis(t)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			allowed, _, err := CheckRateLimit(ctx, rdb, "like", "user:1", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, retry, err := CheckRateLimit(ctx, rdb, "like", "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Greater(t, retry, time.Duration(0))

		mr.FastForward(time.Minute + time.Second)
		allowed, _, err = CheckRateLimit(ctx, rdb, "like", "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	okHandler := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("FailOpen with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, 1, time.Minute, "test"), okHandler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("FailClosed with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/sensitive", RateLimitWithPolicy(nil, 1, time.Minute, FailClosed, "sensitive"), okHandler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sensitive", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("limit reached sets Retry-After", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, rdb := newTestRedis(t)
		app := fiber.New()
		app.Get("/limited", RateLimit(rdb, 1, time.Minute, "limited"), okHandler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
	})
}
