package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/model"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles. It must run after
// CurrentUser; a request without a user in context is rejected too.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return requireRole("Access denied", roles...)
}

// RequireAdmin rejects every user whose role is not ADMIN.
func RequireAdmin() echo.MiddlewareFunc {
	return requireRole("Access denied: Admins only", model.RoleAdmin)
}

func requireRole(denied string, roles ...model.Role) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := UserFrom(c)
			if !ok || !allowed[u.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": denied})
			}
			return next(c)
		}
	}
}
