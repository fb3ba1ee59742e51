// Package auth implements the credential and token lifecycle core:
// password hashing, access token minting/validation, refresh token
// rotation and epoch-based revocation.  It talks to persistence only
// through the UserStore interface so the HTTP layer and tests can supply
// their own implementations.
package auth

import "errors"

// Sentinel errors returned by the auth core.  Every credential problem
// (bad password, bad signature, expired or replayed token, missing claims)
// collapses into ErrInvalidCredentials so a caller (or an attacker reading
// responses) cannot tell which check failed.  Store failures are never
// wrapped into it; they propagate as-is so the HTTP layer can answer with
// a retryable service error instead of a misleading 401.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("inactive account")
	ErrForbidden          = errors.New("forbidden")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user with this email or username already exists")
)
