package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/middleware"
)

// Deps carries everything the routes need. Redis may be nil, which turns
// rate limiting and caching into pass-through middleware.
type Deps struct {
	Cfg   config.Config
	Auth  *handler.AuthHandler
	Admin *handler.AdminHandler
	Users middleware.UserLookup
	DB    handler.Pinger
	Redis *redis.Client
	Log   *zap.Logger
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterAuth registers the authentication flow under /auth. The
// unauthenticated endpoints share one Redis token bucket; /auth/me
// requires a verified user.
func RegisterAuth(e *echo.Echo, d Deps) {
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis, d.Log)

	g := e.Group("/auth")
	g.POST("/register", d.Auth.Register, limit)
	g.POST("/login", d.Auth.Login, limit)
	g.GET("/verify-email", d.Auth.VerifyEmail, limit)
	g.POST("/send-verification-email", d.Auth.SendVerificationEmail, limit)
	g.POST("/request-password-reset", d.Auth.RequestPasswordReset, limit)
	g.POST("/reset-password", d.Auth.ResetPassword, limit)

	g.GET("/me", d.Auth.Me, middleware.CurrentUser(d.Cfg.JWTSecret, d.Users, d.Log))
}

// RegisterAdmin registers admin-only endpoints under /admin. Listing
// responses are cached briefly in Redis.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/admin")
	g.Use(middleware.CurrentUser(d.Cfg.JWTSecret, d.Users, d.Log))
	g.Use(middleware.RequireAdmin())

	g.GET("/users", d.Admin.ListUsers, middleware.NewRedisCache(config.LoadCacheConfig(), d.Redis, d.Log))
	g.GET("/users/:id", d.Admin.GetUser)
}

// New builds an Echo instance with request validation, recovery, access
// logging and every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// Rate limit keys use RealIP; forwarded headers are client controlled.
	e.IPExtractor = echo.ExtractIPDirect()
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.Recover(d.Log))
	e.Use(middleware.RequestLogger(d.Log))

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d)
	RegisterAdmin(e, d)
	return e
}
