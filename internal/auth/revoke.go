package auth

import "context"

// Revoker invalidates every outstanding credential of a user in one step.
// There is no denylist of individual tokens: bumping the epoch rejects all
// previously minted access tokens at the gate, and clearing the refresh
// fields kills the stored refresh token.  The trade-off is that one
// session cannot be revoked without revoking them all.
type Revoker struct {
	users UserStore
}

// NewRevoker builds a revoker over a user store.
func NewRevoker(users UserStore) *Revoker {
	return &Revoker{users: users}
}

// RevokeAll increments the user's token_version and clears the refresh
// token state.  The store performs this as a single atomic update.
func (r *Revoker) RevokeAll(ctx context.Context, userID uint64) error {
	return r.users.RevokeAllTokens(ctx, userID)
}
