package model

import "time"

// Role names stored in users.role.  The column is an enum in the schema,
// so any other value is rejected by the database itself.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  The json
// tags are omitted here because these structs are primarily used
// internally by the repository layer; handlers define separate response
// types with appropriate JSON tags so that sensitive columns never leak.
//
// Fields:
//  ID                    – primary key identifier of the user.
//  Username              – unique login name.
//  Email                 – unique email address.
//  PasswordHash          – bcrypt hashed password.
//  Role                  – role name ("user" or "admin").
//  IsActive              – whether the account is active.
//  RefreshTokenHash      – bcrypt digest of the current refresh token
//                          verifier, nil when no refresh token is
//                          outstanding.
//  RefreshTokenExpiresAt – absolute UTC expiry of the current refresh
//                          token, nil together with RefreshTokenHash.
//  TokenVersion          – revocation epoch.  Incremented on logout; an
//                          access token is only honoured while its
//                          embedded version equals this value.
//  TikTok*               – external platform credentials attached via the
//                          OAuth callback; all nil until connected.
//  CreatedAt/UpdatedAt   – row timestamps.
type User struct {
	ID                    uint64     // users.id
	Username              string     // users.username
	Email                 string     // users.email
	PasswordHash          string     // users.password_hash
	Role                  string     // users.role
	IsActive              bool       // users.is_active
	RefreshTokenHash      *string    // users.refresh_token_hash (nullable)
	RefreshTokenExpiresAt *time.Time // users.refresh_token_expires_at (nullable)
	TokenVersion          int        // users.token_version
	TikTokAccessToken     *string    // users.tiktok_access_token (nullable)
	TikTokRefreshToken    *string    // users.tiktok_refresh_token (nullable)
	TikTokOpenID          *string    // users.tiktok_open_id (nullable)
	TikTokTokenExpiresAt  *time.Time // users.tiktok_token_expires_at (nullable)
	CreatedAt             time.Time  // users.created_at
	UpdatedAt             time.Time  // users.updated_at
}
