package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	id, ok := CurrentUserID(c)
	if !ok {
		return c.NoContent(http.StatusTeapot)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "username": c.Get(UsernameKey)})
}

func do(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	tok, err := utils.NewAccessToken(secret, 17, "eva", 5)
	require.NoError(t, err)
	rec := do(e, http.MethodGet, "/me", tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":17,"username":"eva"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_user")

	rec = do(e, http.MethodGet, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := utils.NewAccessToken("other-secret", 17, "eva", 5)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/me", other.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestTokenBucketPerUser(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "user_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/book", whoami, JWTAuth(secret), NewTokenBucket(cfg, rdb, logger.Discard()))

	alice, err := utils.NewAccessToken(secret, 1, "alice", 5)
	require.NoError(t, err)
	bob, err := utils.NewAccessToken(secret, 2, "bob", 5)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rec := do(e, http.MethodPost, "/book", alice.Token)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(e, http.MethodPost, "/book", alice.Token)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(e, http.MethodPost, "/book", bob.Token)
	assert.Equal(t, http.StatusOK, rec.Code, "buckets are per user")
}

func TestTokenBucketFailsOpen(t *testing.T) {
	rdb, mr := newRedis(t)
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, logger.Discard()))

	mr.SetError("server down")
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/x", "").Code)
	}
}

func TestRedisCacheReplaysResponses(t *testing.T) {
	rdb, _ := newRedis(t)
	calls := 0
	e := echo.New()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache"}
	e.GET("/movies", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"movies": []string{"Amarcord"}})
	}, NewRedisCache(cfg, rdb))
	e.GET("/missing", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}, NewRedisCache(cfg, rdb))

	first := do(e, http.MethodGet, "/movies", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := do(e, http.MethodGet, "/movies", "")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	do(e, http.MethodGet, "/missing", "")
	do(e, http.MethodGet, "/missing", "")
	assert.Equal(t, 3, calls, "errors are not cached")
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "prod")
	e := echo.New()
	e.Use(RequestID(log), RequestLogger(log))
	e.GET("/ping", func(c echo.Context) error {
		reqLog := log.FromEcho(c)
		assert.NotSame(t, log, reqLog, "request scoped logger installed")
		return c.String(http.StatusOK, "pong")
	})

	rec := do(e, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, id, 36)
	assert.Contains(t, buf.String(), `"msg":"HTTP Request"`)
	assert.Contains(t, buf.String(), id)
}
