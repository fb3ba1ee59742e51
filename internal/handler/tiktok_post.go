package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/social-post-scheduler/internal/integration/tiktok"
	"github.com/iliyamo/social-post-scheduler/internal/middleware"
	"github.com/iliyamo/social-post-scheduler/internal/model"
	"github.com/iliyamo/social-post-scheduler/internal/repository"
	"github.com/iliyamo/social-post-scheduler/internal/storage"
)

// maxVideoBytes caps multipart video uploads at 128 MiB.
const maxVideoBytes = 128 << 20

// TikTokPostHandler creates video posts and publishes them manually.
// The scheduler publishes due ones on its own.
type TikTokPostHandler struct {
	Users  *repository.UserRepo
	Posts  *repository.PostRepo
	Store  *storage.Store
	Client *tiktok.Client
}

func NewTikTokPostHandler(u *repository.UserRepo, p *repository.PostRepo, s *storage.Store, c *tiktok.Client) *TikTokPostHandler {
	return &TikTokPostHandler{Users: u, Posts: p, Store: s, Client: c}
}

// Create accepts a multipart form (content, scheduled_time, video) and
// schedules a TikTok post. The user must have connected their account.
func (h *TikTokPostHandler) Create(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)
	if u.TikTokAccessToken == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tiktok account not connected"})
	}

	content := c.FormValue("content")
	schedStr := c.FormValue("scheduled_time")
	if content == "" || schedStr == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content/scheduled_time required"})
	}
	scheduled, err := time.Parse(time.RFC3339, schedStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_time must be RFC3339"})
	}

	fh, err := c.FormFile("video")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "video file required"})
	}
	if fh.Size > maxVideoBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "video too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read upload failed"})
	}
	defer f.Close()
	video, err := io.ReadAll(io.LimitReader(f, maxVideoBytes))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read upload failed"})
	}

	filename, err := h.Store.Save(u.ID, fh.Filename, video)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save upload failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p := model.Post{
		UserID:        u.ID,
		Content:       content,
		ScheduledTime: scheduled.UTC(),
		Platform:      "tiktok",
		Status:        model.PostStatusScheduled,
		VideoFilename: filename,
	}
	id, err := h.Posts.Create(ctx, &p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create post failed"})
	}
	p.ID = id
	return c.JSON(http.StatusCreated, toPostResp(p))
}

// Publish pushes a TikTok post out immediately instead of waiting for the
// scheduler. Failure flips the post to failed, same as the scheduler
// would.
func (h *TikTokPostHandler) Publish(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	p, err := h.Posts.GetByID(ctx, id, u.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "get post failed"})
	}
	if p.Platform != "tiktok" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "not a tiktok post"})
	}

	video, err := h.Store.Read(p.VideoFilename)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read video failed"})
	}

	token, err := h.Client.EnsureValidToken(ctx, h.Users, &u)
	if errors.Is(err, tiktok.ErrNotConnected) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tiktok authentication required"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh tiktok token failed"})
	}

	postID, err := h.Client.PostVideo(ctx, token, video, p.Content)
	if err != nil {
		_ = h.Posts.SetStatus(ctx, p.ID, model.PostStatusFailed)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "publish failed"})
	}
	if err := h.Posts.SetStatus(ctx, p.ID, model.PostStatusPublished); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update status failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "post published", "tiktok_post_id": postID})
}
