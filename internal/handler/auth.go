package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

// UserService is the user capability the auth endpoints depend on.
// GetUserByEmail reports a missing user with repository.ErrNotFound and
// CreateUser a duplicate with repository.ErrEmailExists.
type UserService interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	VerifyPassword(plain, hash string) bool
	CreateUser(ctx context.Context, email, password string) (model.User, error)
	UpdatePassword(ctx context.Context, u model.User, newPassword string) error
	VerifyUserEmail(ctx context.Context, u model.User) error
}

// EmailDispatcher schedules an email job without waiting for it.
type EmailDispatcher interface {
	Dispatch(ctx context.Context, job queue.EmailJob)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users UserService
	Mail  EmailDispatcher
	Log   *zap.Logger
}

func NewAuthHandler(cfg config.Config, users UserService, mail EmailDispatcher, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Mail: mail, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResp struct {
	ID         uint64 `json:"id"`
	Email      string `json:"email"`
	IsActive   bool   `json:"is_active"`
	IsVerified bool   `json:"is_verified"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type messageResp struct {
	Message string `json:"message"`
}

func toUserResp(u model.User) userResp {
	return userResp{ID: u.ID, Email: u.Email, IsActive: u.IsActive, IsVerified: u.IsVerified}
}

const dbTimeout = 5 * time.Second

// bcrypt rejects longer input, so the limit is counted in bytes.
const errPasswordTooLong = "password must be at most 72 bytes"

// Register: create an unverified user and send a verification email.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a valid email and a password are required"})
	}
	if len(req.Password) > utils.MaxPasswordBytes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errPasswordTooLong})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Users.GetUserByEmail(ctx, req.Email); err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Email already registered"})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return h.internal(c, "lookup user failed", err)
	}

	u, err := h.Users.CreateUser(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "Email already registered"})
		}
		return h.internal(c, "create user failed", err)
	}

	if err := h.sendEmail(c.Request().Context(), queue.EmailVerification, u.Email); err != nil {
		return h.internal(c, "issue verification token failed", err)
	}
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// Login: OAuth2 password form (username=email, password). Unverified users
// still receive a token; CurrentUser enforces verification.
func (h *AuthHandler) Login(c echo.Context) error {
	email := repository.NormalizeEmail(c.FormValue("username"))
	password := c.FormValue("password")
	if email == "" || password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return h.internal(c, "lookup user failed", err)
	}
	if err != nil || !h.Users.VerifyPassword(password, u.PasswordHash) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
	}

	access, err := utils.IssueToken(h.Cfg.JWTSecret, u.Email, utils.PurposeAccess, h.Cfg.AccessTTL)
	if err != nil {
		return h.internal(c, "issue access token failed", err)
	}
	return c.JSON(http.StatusCreated, tokenResp{AccessToken: access.Token, TokenType: "bearer"})
}

// VerifyEmail: confirm ownership of the address named by a verification
// token. Repeating it for a verified user is not an error.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	email, err := utils.VerifyToken(h.Cfg.JWTSecret, c.QueryParam("token"), utils.PurposeEmailVerification)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, ok, err := h.findUser(ctx, email)
	if err != nil {
		return h.internal(c, "lookup user failed", err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}
	if u.IsVerified {
		return c.JSON(http.StatusOK, messageResp{Message: "User is already verified"})
	}

	if err := h.Users.VerifyUserEmail(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		return h.internal(c, "verify user failed", err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: "Email verified successfully"})
}

// SendVerificationEmail: issue a fresh verification token for an
// unverified user.
func (h *AuthHandler) SendVerificationEmail(c echo.Context) error {
	email := repository.NormalizeEmail(c.QueryParam("email"))
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, ok, err := h.findUser(ctx, email)
	if err != nil {
		return h.internal(c, "lookup user failed", err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}
	if u.IsVerified {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "User is already verified"})
	}

	if err := h.sendEmail(c.Request().Context(), queue.EmailVerification, u.Email); err != nil {
		return h.internal(c, "issue verification token failed", err)
	}
	return c.JSON(http.StatusCreated, messageResp{Message: "Verification email sent successfully"})
}

// RequestPasswordReset: email a password reset token.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	email := repository.NormalizeEmail(c.QueryParam("email"))
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, ok, err := h.findUser(ctx, email)
	if err != nil {
		return h.internal(c, "lookup user failed", err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}

	if err := h.sendEmail(c.Request().Context(), queue.EmailPasswordReset, u.Email); err != nil {
		return h.internal(c, "issue reset token failed", err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: "Password reset email sent."})
}

// ResetPassword: overwrite the password of the user named by a reset token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	newPassword := c.QueryParam("new_password")
	if newPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_password is required"})
	}
	if len(newPassword) > utils.MaxPasswordBytes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errPasswordTooLong})
	}
	email, err := utils.VerifyToken(h.Cfg.JWTSecret, c.QueryParam("token"), utils.PurposePasswordReset)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, ok, err := h.findUser(ctx, email)
	if err != nil {
		return h.internal(c, "lookup user failed", err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}

	if err := h.Users.UpdatePassword(ctx, u, newPassword); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		return h.internal(c, "update password failed", err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: "Password reset successfully"})
}

// Me: the verified user behind the bearer token.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Not authenticated"})
	}
	return c.JSON(http.StatusOK, toUserDetail(u))
}

// findUser turns repository.ErrNotFound into ok=false.
func (h *AuthHandler) findUser(ctx context.Context, email string) (model.User, bool, error) {
	u, err := h.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	return u, true, nil
}

// sendEmail signs a token for kind and hands the job to the dispatcher.
// Only signing can fail; delivery problems never reach the caller.
func (h *AuthHandler) sendEmail(ctx context.Context, kind queue.EmailKind, email string) error {
	purpose, ttl := utils.PurposeEmailVerification, h.Cfg.VerifyTTL
	if kind == queue.EmailPasswordReset {
		purpose, ttl = utils.PurposePasswordReset, h.Cfg.ResetTTL
	}
	tok, err := utils.IssueToken(h.Cfg.JWTSecret, email, purpose, ttl)
	if err != nil {
		return err
	}
	h.Mail.Dispatch(ctx, queue.EmailJob{
		Kind:        kind,
		Email:       email,
		Token:       tok.Token,
		RequestedAt: time.Now().UTC(),
	})
	return nil
}

func (h *AuthHandler) internal(c echo.Context, msg string, err error) error {
	h.Log.Error(msg,
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

// trimmed is used by the admin endpoints for optional query values.
func trimmed(c echo.Context, name string) string {
	return strings.TrimSpace(c.QueryParam(name))
}
