package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

// UserLookup resolves the subject of an access token to a user record.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

// CurrentUser returns an Echo middleware that validates a Bearer access
// token, loads the user it names and rejects users that are missing or
// have not verified their email. Handlers read the user back with
// UserFrom(c).
//
//	401: header missing, token invalid/expired or not an access token
//	403: user no longer exists or is not verified
func CurrentUser(secret string, users UserLookup, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Not authenticated"})
			}

			email, err := utils.VerifyToken(secret, raw, utils.PurposeAccess)
			if err != nil {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
			}

			u, err := users.GetUserByEmail(c.Request().Context(), email)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				log.Error("load current user failed", zap.String("email", email), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
			}
			if err != nil || !u.IsVerified {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "User is not verified"})
			}

			setUser(c, u)
			return next(c)
		}
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
