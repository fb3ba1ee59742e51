package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/social-post-scheduler/internal/integration/tiktok"
	"github.com/iliyamo/social-post-scheduler/internal/middleware"
	"github.com/iliyamo/social-post-scheduler/internal/repository"
)

// TikTokHandler attaches and detaches a TikTok account on the current
// user via the platform's OAuth flow.
type TikTokHandler struct {
	Users  *repository.UserRepo
	Client *tiktok.Client
}

func NewTikTokHandler(u *repository.UserRepo, c *tiktok.Client) *TikTokHandler {
	return &TikTokHandler{Users: u, Client: c}
}

// Authorize returns the consent URL the frontend should send the user to.
func (h *TikTokHandler) Authorize(c echo.Context) error {
	if !h.Client.Enabled() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "tiktok integration not configured"})
	}
	u, _ := middleware.CurrentUser(c)
	// The username doubles as the state parameter; the callback runs
	// behind the gate so the state is checked against the same identity.
	return c.JSON(http.StatusOK, echo.Map{"authorization_url": h.Client.AuthorizationURL(u.Username)})
}

// Callback handles the OAuth redirect: exchanges the code and stores the
// platform tokens on the user record.
func (h *TikTokHandler) Callback(c echo.Context) error {
	if !h.Client.Enabled() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "tiktok integration not configured"})
	}
	u, _ := middleware.CurrentUser(c)
	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}
	if state != u.Username {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "state mismatch"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	td, err := h.Client.ExchangeCode(ctx, code)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to connect tiktok account"})
	}
	exp := time.Now().UTC().Add(time.Duration(td.ExpiresIn) * time.Second)
	if err := h.Users.SetTikTokTokens(ctx, u.ID, td.AccessToken, td.RefreshToken, td.OpenID, exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save tiktok tokens failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "tiktok account connected"})
}

// Disconnect detaches the TikTok account.
func (h *TikTokHandler) Disconnect(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.ClearTikTokTokens(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "disconnect failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "tiktok account disconnected"})
}
