package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
)

// UserDirectory is the read-only user access needed by admins.
type UserDirectory interface {
	ListUsers(ctx context.Context, limit, offset int) ([]model.User, error)
	GetUserByID(ctx context.Context, id uint64) (model.User, error)
}

// AdminHandler serves the admin-only user endpoints.
type AdminHandler struct {
	Users UserDirectory
	Log   *zap.Logger
}

func NewAdminHandler(users UserDirectory, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Users: users, Log: log}
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type userDetailResp struct {
	userResp
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

func toUserDetail(u model.User) userDetailResp {
	return userDetailResp{userResp: toUserResp(u), Role: u.Role, CreatedAt: u.CreatedAt}
}

// ListUsers: GET /admin/users?limit=&offset=
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid offset"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, err := h.Users.ListUsers(ctx, limit, offset)
	if err != nil {
		h.Log.Error("list users failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list users failed"})
	}
	out := make([]userDetailResp, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDetail(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out, "limit": limit, "offset": offset})
}

// GetUser: GET /admin/users/:id
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		h.Log.Error("get user failed", zap.Uint64("id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "get user failed"})
	}
	return c.JSON(http.StatusOK, toUserDetail(u))
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	v := trimmed(c, name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
