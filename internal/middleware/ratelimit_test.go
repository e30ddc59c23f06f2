package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/model"
)

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/login")

	cases := map[string]string{
		"ip":       "rl:ip:10.0.0.1",
		"user":     "rl:user:anon",
		"ip_route": "rl:ip:10.0.0.1:route:POST /auth/login",
		"":         "rl:ip:10.0.0.1:user:anon:route:POST /auth/login",
	}
	for strategy, want := range cases {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		assert.Equal(t, want, got, "strategy %q", strategy)
	}

	setUser(c, model.User{ID: 42})
	assert.Equal(t, "rl:user:42", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
}

func TestParseLimiterResult(t *testing.T) {
	allowed, remaining, retry, ok := parseLimiterResult([]interface{}{int64(1), int64(4), int64(0)})
	assert.True(t, ok)
	assert.True(t, allowed)
	assert.Equal(t, int64(4), remaining)
	assert.Equal(t, int64(0), retry)

	allowed, _, retry, ok = parseLimiterResult([]interface{}{"0", "0", "1500"})
	assert.True(t, ok)
	assert.False(t, allowed)
	assert.Equal(t, int64(1500), retry)

	_, _, _, ok = parseLimiterResult("nope")
	assert.False(t, ok)
}

func TestNewTokenBucket_DisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestBuildRateKey_DirectIPIgnoresForwardedFor(t *testing.T) {
	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}

	keys := map[string]bool{}
	for _, xff := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "198.51.100.4:40000"
		req.Header.Set(echo.HeaderXForwardedFor, xff)
		keys[buildRateKey(cfg, e.NewContext(req, httptest.NewRecorder()))] = true
	}
	assert.Equal(t, map[string]bool{"rl:ip:198.51.100.4": true}, keys)
}
