package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/social-post-scheduler/internal/auth"
	"github.com/iliyamo/social-post-scheduler/internal/model"
)

// UserRepo persists user identity records.  It implements auth.UserStore;
// the refresh-token and token_version columns are only ever written
// through the methods below so the invariants of the auth core hold.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, username, email, password_hash, role, is_active,
	refresh_token_hash, refresh_token_expires_at, token_version,
	tiktok_access_token, tiktok_refresh_token, tiktok_open_id, tiktok_token_expires_at,
	created_at, updated_at`

// Create inserts a user with token_version 0 and no refresh-token state
// and returns its ID.  Duplicate username or email maps to
// auth.ErrUserExists via the MySQL duplicate-entry error code.
func (r *UserRepo) Create(ctx context.Context, username, email, passwordHash, role string) (uint64, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role) VALUES (?,?,?,?)",
		username, email, passwordHash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, auth.ErrUserExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by login name.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getBy(ctx, "username=?", strings.TrimSpace(username))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getBy(ctx, "email=?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getBy(ctx, "id=?", id)
}

func (r *UserRepo) getBy(ctx context.Context, where string, arg interface{}) (model.User, error) {
	var (
		u          model.User
		refreshExp sql.NullTime
		tiktokExp  sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
			&u.RefreshTokenHash, &refreshExp, &u.TokenVersion,
			&u.TikTokAccessToken, &u.TikTokRefreshToken, &u.TikTokOpenID, &tiktokExp,
			&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	// The pool opens connections with loc=UTC, so DATETIME values scan as
	// UTC already; normalize anyway at this single boundary.
	if refreshExp.Valid {
		t := refreshExp.Time.UTC()
		u.RefreshTokenExpiresAt = &t
	}
	if tiktokExp.Valid {
		t := tiktokExp.Time.UTC()
		u.TikTokTokenExpiresAt = &t
	}
	return u, nil
}

// SetRefreshToken installs a refresh digest and expiry, replacing any
// outstanding token.  Digest and expiry always move together.
func (r *UserRepo) SetRefreshToken(ctx context.Context, userID uint64, digest string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, refresh_token_expires_at=? WHERE id=?",
		digest, expiresAt.UTC(), userID)
	return err
}

// SwapRefreshToken replaces the stored digest only if it still equals
// oldDigest.  The WHERE clause is the compare-and-swap that serializes
// concurrent rotations on the same row.
func (r *UserRepo) SwapRefreshToken(ctx context.Context, userID uint64, oldDigest, newDigest string, expiresAt time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, refresh_token_expires_at=? WHERE id=? AND refresh_token_hash=?",
		newDigest, expiresAt.UTC(), userID, oldDigest)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeAllTokens bumps the revocation epoch and clears the refresh-token
// state in one statement.
func (r *UserRepo) RevokeAllTokens(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET token_version=token_version+1, refresh_token_hash=NULL, refresh_token_expires_at=NULL WHERE id=?",
		userID)
	return err
}

// SetRole changes a user's role.
func (r *UserRepo) SetRole(ctx context.Context, userID uint64, role string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", role, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// List returns all users ordered by id; used by the admin surface.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, username, email, role, is_active, token_version, created_at FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.IsActive, &u.TokenVersion, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetTikTokTokens attaches external platform credentials to the user.
func (r *UserRepo) SetTikTokTokens(ctx context.Context, userID uint64, access, refresh, openID string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET tiktok_access_token=?, tiktok_refresh_token=?, tiktok_open_id=?, tiktok_token_expires_at=? WHERE id=?",
		access, refresh, openID, expiresAt.UTC(), userID)
	return err
}

// ClearTikTokTokens detaches the external platform account.
func (r *UserRepo) ClearTikTokTokens(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET tiktok_access_token=NULL, tiktok_refresh_token=NULL, tiktok_open_id=NULL, tiktok_token_expires_at=NULL WHERE id=?",
		userID)
	return err
}
