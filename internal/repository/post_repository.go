package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/social-post-scheduler/internal/model"
)

// PostRepo persists scheduled posts. Every read and write is scoped to
// the owning user except DueForPublishing, which the scheduler runs
// across all users.
type PostRepo struct{ DB *sql.DB }

func NewPostRepo(db *sql.DB) *PostRepo { return &PostRepo{DB: db} }

const postColumns = "id, user_id, content, scheduled_time, platform, status, video_filename, created_at, updated_at"

// Create inserts a scheduled post and returns its ID.
func (r *PostRepo) Create(ctx context.Context, p *model.Post) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO posts (user_id, content, scheduled_time, platform, status, video_filename) VALUES (?,?,?,?,?,?)",
		p.UserID, p.Content, p.ScheduledTime.UTC(), p.Platform, p.Status, p.VideoFilename)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a post owned by the given user. A post belonging to
// someone else is indistinguishable from a missing one.
func (r *PostRepo) GetByID(ctx context.Context, id, userID uint64) (model.Post, error) {
	var p model.Post
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE id=? AND user_id=? LIMIT 1", id, userID).
		Scan(&p.ID, &p.UserID, &p.Content, &p.ScheduledTime, &p.Platform, &p.Status, &p.VideoFilename, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Post{}, ErrNotFound
	}
	return p, err
}

// ListByUser returns the user's posts ordered by scheduled time.
func (r *PostRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Post, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE user_id=? ORDER BY scheduled_time", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.ScheduledTime, &p.Platform, &p.Status, &p.VideoFilename, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update applies non-nil fields to a post owned by the user.
func (r *PostRepo) Update(ctx context.Context, id, userID uint64, content *string, scheduledTime *time.Time, platform *string) (model.Post, error) {
	p, err := r.GetByID(ctx, id, userID)
	if err != nil {
		return model.Post{}, err
	}
	if content != nil {
		p.Content = *content
	}
	if scheduledTime != nil {
		p.ScheduledTime = scheduledTime.UTC()
	}
	if platform != nil {
		p.Platform = *platform
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE posts SET content=?, scheduled_time=?, platform=? WHERE id=? AND user_id=?",
		p.Content, p.ScheduledTime.UTC(), p.Platform, id, userID)
	if err != nil {
		return model.Post{}, err
	}
	return p, nil
}

// Delete removes a post owned by the user.
func (r *PostRepo) Delete(ctx context.Context, id, userID uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM posts WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DueForPublishing returns scheduled posts whose time has come, across
// all users. The scheduler calls this once per tick.
func (r *PostRepo) DueForPublishing(ctx context.Context, now time.Time) ([]model.Post, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE status=? AND scheduled_time<=? ORDER BY scheduled_time",
		model.PostStatusScheduled, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.ScheduledTime, &p.Platform, &p.Status, &p.VideoFilename, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetStatus flips a post to published or failed.
func (r *PostRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE posts SET status=? WHERE id=?", status, id)
	return err
}
