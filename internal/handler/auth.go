package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/social-post-scheduler/internal/auth"
	"github.com/iliyamo/social-post-scheduler/internal/middleware"
	"github.com/iliyamo/social-post-scheduler/internal/model"
)

// UserStore is what the auth endpoints need from persistence: the auth
// core's collaborator interface plus user creation for registration.
// *repository.UserRepo satisfies it; tests plug in an in-memory fake.
type UserStore interface {
	auth.UserStore
	Create(ctx context.Context, username, email, passwordHash, role string) (uint64, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     *auth.Config
	Codec   *auth.TokenCodec
	Users   UserStore
	Refresh *auth.RefreshManager
	Revoker *auth.Revoker
}

func NewAuthHandler(cfg *auth.Config, codec *auth.TokenCodec, users UserStore) *AuthHandler {
	return &AuthHandler{
		Cfg:     cfg,
		Codec:   codec,
		Users:   users,
		Refresh: auth.NewRefreshManager(cfg, users),
		Revoker: auth.NewRevoker(users),
	}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
type userResp struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func toUserResp(u model.User) userResp {
	return userResp{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, IsActive: u.IsActive}
}

// Register creates a user record with token_version 0 and no refresh-token
// state.  It does not mint tokens; clients log in afterwards.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash, err := auth.Hash(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	uid, err := h.Users.Create(ctx, req.Username, req.Email, hash, model.RoleUser)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	return c.JSON(http.StatusCreated, userResp{
		ID: uid, Username: req.Username, Email: req.Email, Role: model.RoleUser, IsActive: true,
	})
}

// Login verifies the password and returns a fresh access/refresh pair.
// The access token embeds the user's current token_version.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if errors.Is(err, auth.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
	}
	if !auth.Verify(req.Password, u.PasswordHash) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, _, err := h.Codec.Mint(u.Username, u.TokenVersion)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := h.Refresh.Issue(ctx, &u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}

	return c.JSON(http.StatusOK, tokenResp{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
}

// RefreshTokens exchanges a refresh token for a new pair.  Rotation is the
// only exchange path: the presented token is consumed the moment a new
// digest is installed, and replaying it yields the uniform rejection.
func (h *AuthHandler) RefreshTokens(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, newRefresh, err := h.Refresh.Rotate(ctx, req.RefreshToken)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
	}

	access, _, err := h.Codec.Mint(u.Username, u.TokenVersion)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}

	return c.JSON(http.StatusOK, tokenResp{AccessToken: access, RefreshToken: newRefresh, TokenType: "bearer"})
}

// Logout revokes every outstanding credential for the current user: the
// epoch bump invalidates all previously minted access tokens and the
// stored refresh token digest is cleared.  Runs behind the gate, so the
// presented access token has already been validated.
func (h *AuthHandler) Logout(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Revoker.RevokeAll(ctx, u.ID); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user's sanitized record.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}
