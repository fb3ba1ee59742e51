package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/social-post-scheduler/internal/model"
)

// Raw refresh tokens have the form "<userID>.<verifier>".  The numeric
// selector locates the user row; the verifier is 32 bytes of secure
// randomness, base64url encoded (43 chars, under bcrypt's 72-byte input
// limit).  Only the bcrypt digest of the verifier is persisted, so a
// database dump does not yield a usable credential.
const refreshVerifierBytes = 32

// RefreshManager issues and rotates opaque long-lived refresh tokens.
// The raw value is handed to the caller exactly once; afterwards only the
// digest survives on the user record.
type RefreshManager struct {
	cfg   *Config
	users UserStore
}

// NewRefreshManager builds a manager over the shared configuration and a
// user store.
func NewRefreshManager(cfg *Config, users UserStore) *RefreshManager {
	return &RefreshManager{cfg: cfg, users: users}
}

// Issue generates a fresh refresh token for the user, stores its digest
// and expiry on the record (replacing any outstanding token) and returns
// the raw value.
func (m *RefreshManager) Issue(ctx context.Context, user *model.User) (string, error) {
	raw, digest, exp, err := m.newToken(user.ID)
	if err != nil {
		return "", err
	}
	if err := m.users.SetRefreshToken(ctx, user.ID, digest, exp); err != nil {
		return "", err
	}
	user.RefreshTokenHash = &digest
	user.RefreshTokenExpiresAt = &exp
	return raw, nil
}

// Rotate validates a presented refresh token and atomically replaces it
// with a new one.  Validation runs cheapest check first: a digest must be
// stored, the stored expiry must be in the future, and only then is the
// bcrypt comparison paid for.  The replacement digest is installed with a
// compare-and-swap on the old digest, so of two concurrent presentations
// of the same token exactly one can win; the loser gets
// ErrInvalidCredentials like any other failure.
func (m *RefreshManager) Rotate(ctx context.Context, raw string) (model.User, string, error) {
	userID, verifier, ok := splitRefreshToken(raw)
	if !ok {
		return model.User{}, "", ErrInvalidCredentials
	}

	u, err := m.users.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return model.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, "", err
	}

	if u.RefreshTokenHash == nil || u.RefreshTokenExpiresAt == nil {
		// Already consumed, revoked, or never issued.
		return model.User{}, "", ErrInvalidCredentials
	}
	if !u.RefreshTokenExpiresAt.UTC().After(m.cfg.now()) {
		return model.User{}, "", ErrInvalidCredentials
	}
	if !Verify(verifier, *u.RefreshTokenHash) {
		return model.User{}, "", ErrInvalidCredentials
	}

	newRaw, newDigest, exp, err := m.newToken(u.ID)
	if err != nil {
		return model.User{}, "", err
	}
	swapped, err := m.users.SwapRefreshToken(ctx, u.ID, *u.RefreshTokenHash, newDigest, exp)
	if err != nil {
		return model.User{}, "", err
	}
	if !swapped {
		// A concurrent rotate or revocation got there first.
		return model.User{}, "", ErrInvalidCredentials
	}
	u.RefreshTokenHash = &newDigest
	u.RefreshTokenExpiresAt = &exp
	return u, newRaw, nil
}

// newToken produces a raw token, its verifier digest and its expiry.
func (m *RefreshManager) newToken(userID uint64) (raw, digest string, exp time.Time, err error) {
	buf := make([]byte, refreshVerifierBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", time.Time{}, err
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	digest, err = Hash(verifier, m.cfg.BcryptCost)
	if err != nil {
		return "", "", time.Time{}, err
	}
	raw = strconv.FormatUint(userID, 10) + "." + verifier
	exp = m.cfg.now().Add(m.cfg.RefreshTTL)
	return raw, digest, exp, nil
}

// splitRefreshToken parses "<userID>.<verifier>".  Structural garbage is
// reported as not-ok; the caller maps it to the uniform rejection.
func splitRefreshToken(raw string) (uint64, string, bool) {
	sel, verifier, found := strings.Cut(strings.TrimSpace(raw), ".")
	if !found || sel == "" || verifier == "" {
		return 0, "", false
	}
	id, err := strconv.ParseUint(sel, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, verifier, true
}
