package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/social-post-scheduler/internal/middleware"
	"github.com/iliyamo/social-post-scheduler/internal/model"
	"github.com/iliyamo/social-post-scheduler/internal/repository"
)

// PostHandler implements the scheduled-post CRUD surface. Every
// operation is scoped to the authenticated owner; a post belonging to
// another user looks exactly like a missing one.
type PostHandler struct {
	Posts *repository.PostRepo
}

func NewPostHandler(p *repository.PostRepo) *PostHandler { return &PostHandler{Posts: p} }

type createPostReq struct {
	Content       string    `json:"content"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Platform      string    `json:"platform"`
}
type updatePostReq struct {
	Content       *string    `json:"content"`
	ScheduledTime *time.Time `json:"scheduled_time"`
	Platform      *string    `json:"platform"`
}
type postResp struct {
	ID            uint64    `json:"id"`
	Content       string    `json:"content"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Platform      string    `json:"platform"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toPostResp(p model.Post) postResp {
	return postResp{
		ID: p.ID, Content: p.Content, ScheduledTime: p.ScheduledTime,
		Platform: p.Platform, Status: p.Status, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

// Create schedules a new post for the current user.
func (h *PostHandler) Create(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)
	var req createPostReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Content == "" || req.ScheduledTime.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content/scheduled_time required"})
	}
	if req.Platform == "" {
		req.Platform = "twitter"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p := model.Post{
		UserID:        u.ID,
		Content:       req.Content,
		ScheduledTime: req.ScheduledTime.UTC(),
		Platform:      req.Platform,
		Status:        model.PostStatusScheduled,
	}
	id, err := h.Posts.Create(ctx, &p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create post failed"})
	}
	p.ID = id
	return c.JSON(http.StatusCreated, toPostResp(p))
}

// List returns the current user's posts ordered by scheduled time.
func (h *PostHandler) List(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	posts, err := h.Posts.ListByUser(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list posts failed"})
	}
	out := make([]postResp, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResp(p))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one of the current user's posts.
func (h *PostHandler) Get(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Posts.GetByID(ctx, id, u.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "get post failed"})
	}
	return c.JSON(http.StatusOK, toPostResp(p))
}

// Update patches content, scheduled time or platform of a scheduled post.
func (h *PostHandler) Update(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}
	var req updatePostReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Posts.Update(ctx, id, u.ID, req.Content, req.ScheduledTime, req.Platform)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update post failed"})
	}
	return c.JSON(http.StatusOK, toPostResp(p))
}

// Delete removes a scheduled post.
func (h *PostHandler) Delete(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Posts.Delete(ctx, id, u.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete post failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
