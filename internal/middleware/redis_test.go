package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenBucket_BlocksWhenExhausted(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            10 * time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:auth",
	}
	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(cfg, rdb, zap.NewNop()))

	login := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := login("10.0.0.1:1000")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusNoContent, login("10.0.0.1:1001").Code)

	rec = login("10.0.0.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	retry := rec.Header().Get("Retry-After")
	assert.NotEmpty(t, retry)
	assert.NotEqual(t, "0", retry)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")

	// another client has its own bucket
	assert.Equal(t, http.StatusNoContent, login("10.0.0.2:1000").Code)
}

func TestTokenBucket_FailsOpenWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}, rdb, zap.NewNop()))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRedisCache_MissThenHit(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "cache:admin",
		MaxBodyBytes: 1 << 20,
	}

	calls := 0
	e := echo.New()
	e.GET("/admin/users", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"users": []string{"a@x.com"}, "calls": calls})
	}, NewRedisCache(cfg, rdb, zap.NewNop()))

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	first := get("/admin/users?limit=10")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	require.Len(t, mr.Keys(), 1)

	second := get("/admin/users?limit=10")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	assert.Equal(t, 1, calls)

	// a different query is a different entry
	third := get("/admin/users?limit=20")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, "MISS", get("/admin/users?limit=10").Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCache_SkipsErrorsAndNoStore(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache:admin", MaxBodyBytes: 1 << 20}
	mw := NewRedisCache(cfg, rdb, zap.NewNop())

	e := echo.New()
	e.GET("/fail", func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "boom"})
	}, mw)
	e.GET("/private", func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.String(http.StatusOK, "secret")
	}, mw)

	for _, path := range []string{"/fail", "/private", "/fail", "/private"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), path)
	}
	assert.Empty(t, mr.Keys())
}
