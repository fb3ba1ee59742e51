package auth

import (
	"context"
	"time"

	"github.com/iliyamo/social-post-scheduler/internal/model"
)

// UserStore is the persistence collaborator this core requires from the
// rest of the system.  Implementations must return ErrUserNotFound when a
// lookup matches no row and must keep refresh_token_hash and
// refresh_token_expires_at in lockstep: both set or both cleared, in one
// statement.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)

	// SetRefreshToken unconditionally installs a refresh digest and its
	// expiry, replacing whatever was there.
	SetRefreshToken(ctx context.Context, userID uint64, digest string, expiresAt time.Time) error

	// SwapRefreshToken replaces the stored digest only if it still equals
	// oldDigest, and reports whether the swap happened.  This is the
	// compare-and-swap that makes rotation safe under concurrent requests.
	SwapRefreshToken(ctx context.Context, userID uint64, oldDigest, newDigest string, expiresAt time.Time) (bool, error)

	// RevokeAllTokens bumps token_version and clears the refresh token
	// fields as one atomic unit.
	RevokeAllTokens(ctx context.Context, userID uint64) error
}
