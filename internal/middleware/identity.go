package middleware

// identity.go holds the helpers that move the authenticated user in and
// out of the Echo context. CurrentUser stores it; handlers, RequireRole
// and the rate limiter read it back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/model"
)

const ctxUser = "user"

func setUser(c echo.Context, u model.User) {
	c.Set(ctxUser, u)
}

// UserFrom returns the user stored by CurrentUser.
func UserFrom(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ctxUser).(model.User)
	return u, ok
}

// userID returns the authenticated user's id as a string, or "anon" when
// the request is unauthenticated.
func userID(c echo.Context) string {
	if u, ok := UserFrom(c); ok {
		return strconv.FormatUint(u.ID, 10)
	}
	return "anon"
}
