package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"inspiro/internal/config"
	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
	host   *testutil.ImageHostStub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRedis(t, nil)
}

func newTestEnvWithRedis(t *testing.T, rdb *redis.Client) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	host := testutil.NewImageHostStub()
	cfg := &config.Config{
		JWTSecret:            testSecret,
		Env:                  "test",
		ImageMaxUploadSizeMB: 2,
		ImageFormat:          "jpeg",
		AssetReaperSchedule:  "@every 1h",
	}
	s, err := NewServerWithDeps(cfg, db, rdb, host)
	require.NoError(t, err)
	return &testEnv{server: s, app: s.NewApp(), db: db, host: host}
}

func (e *testEnv) token(t *testing.T, user *models.User) string {
	t.Helper()
	resp, err := e.server.issue(user)
	require.NoError(t, err)
	return resp.Token
}

// do sends req, optionally authenticated, and decodes a JSON body into out.
func (e *testEnv) do(t *testing.T, req *http.Request, token string, out any) int {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp.StatusCode
}

type multipartFile struct {
	field    string
	filename string
	data     []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...multipartFile) *http.Request {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, target, buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLogs routes middleware.Logger into a buffer for the rest of the test.
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	out := &syncBuffer{}
	middleware.ConfigureLogger("test", "debug", out)
	t.Cleanup(func() { middleware.ConfigureLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"), os.Stdout) })
	return out
}
