package auth

import (
	"errors"
	"time"
)

// Config carries the process-wide token settings.  It is constructed once
// at startup and passed by reference into each component; nothing in this
// package reads ambient global state.
type Config struct {
	Secret     string        // HS256 signing secret for access tokens
	AccessTTL  time.Duration // lifetime of minted access tokens
	RefreshTTL time.Duration // lifetime of issued refresh tokens
	BcryptCost int           // cost used for password and refresh digests

	// Now supplies the current time.  Tests inject fixed clocks here to
	// exercise expiry boundaries deterministically.
	Now func() time.Time
}

// NewConfig validates the token settings.  An absent or empty secret is a
// startup error, never a silent insecure default.
func NewConfig(secret string, accessTTL, refreshTTL time.Duration, bcryptCost int) (*Config, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret must not be empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be positive")
	}
	return &Config{
		Secret:     secret,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		BcryptCost: bcryptCost,
		Now:        time.Now,
	}, nil
}

// now returns the configured clock in UTC.  All expiry math in this
// package goes through here so stored and computed timestamps are always
// compared in one zone.
func (c *Config) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}
