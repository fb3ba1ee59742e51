package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are the claims embedded in every minted access token.  The
// subject carries the username and ver carries the revocation epoch the
// token was minted under.  Version is a pointer so a token missing the
// claim entirely can be told apart from an honest epoch zero.
type accessClaims struct {
	Version *int `json:"ver"`
	jwt.RegisteredClaims
}

// TokenCodec mints and validates short-lived signed access tokens.  The
// codec only proves a token was legitimately issued at some point; whether
// its embedded epoch is still current is the caller's check, made against
// the stored user record.
type TokenCodec struct {
	cfg *Config
}

// NewTokenCodec builds a codec over the shared auth configuration.
func NewTokenCodec(cfg *Config) *TokenCodec {
	return &TokenCodec{cfg: cfg}
}

// Mint signs an HS256 JWT for the user with sub, ver, exp and iat claims
// and returns the serialized token together with its expiry time.
func (tc *TokenCodec) Mint(username string, version int) (string, time.Time, error) {
	now := tc.cfg.now()
	exp := now.Add(tc.cfg.AccessTTL)
	claims := accessClaims{
		Version: &version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(tc.cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Validate parses and verifies a token, returning its subject and epoch.
// A bad signature, wrong algorithm, expired token or missing claim all
// yield the same ErrInvalidCredentials.
func (tc *TokenCodec) Validate(raw string) (string, int, error) {
	claims := &accessClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tc.cfg.now),
	)
	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(tc.cfg.Secret), nil
	})
	if err != nil || !tok.Valid {
		return "", 0, ErrInvalidCredentials
	}
	if claims.Subject == "" || claims.Version == nil {
		return "", 0, ErrInvalidCredentials
	}
	return claims.Subject, *claims.Version, nil
}
