package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testClock is a mutable fixed clock for exercising expiry boundaries.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestConfig(t *testing.T) (*Config, *testClock) {
	t.Helper()
	cfg, err := NewConfig("test-secret", 15*time.Minute, 7*24*time.Hour, bcrypt.MinCost)
	require.NoError(t, err)
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg.Now = clock.Now
	return cfg, clock
}

func TestNewConfigRejectsEmptySecret(t *testing.T) {
	t.Parallel()

	_, err := NewConfig("", time.Minute, time.Hour, bcrypt.MinCost)
	assert.Error(t, err)
}

func TestNewConfigRejectsNonPositiveTTL(t *testing.T) {
	t.Parallel()

	_, err := NewConfig("s", 0, time.Hour, bcrypt.MinCost)
	assert.Error(t, err)
	_, err = NewConfig("s", time.Minute, -time.Hour, bcrypt.MinCost)
	assert.Error(t, err)
}

func TestMintAndValidate(t *testing.T) {
	t.Parallel()

	cfg, clock := newTestConfig(t)
	codec := NewTokenCodec(cfg)

	raw, exp, err := codec.Mint("alice", 3)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(cfg.AccessTTL), exp)

	subject, version, err := codec.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
	assert.Equal(t, 3, version)
}

func TestValidateVersionZero(t *testing.T) {
	t.Parallel()

	// Epoch zero is the state of every freshly registered user; it must
	// not be confused with a missing claim.
	cfg, _ := newTestConfig(t)
	codec := NewTokenCodec(cfg)

	raw, _, err := codec.Mint("bob", 0)
	require.NoError(t, err)

	_, version, err := codec.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestValidateExpired(t *testing.T) {
	t.Parallel()

	cfg, clock := newTestConfig(t)
	codec := NewTokenCodec(cfg)

	raw, _, err := codec.Mint("alice", 1)
	require.NoError(t, err)

	clock.Advance(cfg.AccessTTL + time.Second)
	_, _, err = codec.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateWrongSecret(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t)
	other, err := NewConfig("different-secret", cfg.AccessTTL, cfg.RefreshTTL, cfg.BcryptCost)
	require.NoError(t, err)
	other.Now = cfg.Now

	raw, _, err := NewTokenCodec(cfg).Mint("alice", 1)
	require.NoError(t, err)

	_, _, err = NewTokenCodec(other).Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateMissingClaims(t *testing.T) {
	t.Parallel()

	cfg, clock := newTestConfig(t)
	codec := NewTokenCodec(cfg)

	// A token signed with the right secret but missing the sub or ver
	// claim is structurally invalid for this codec.
	for name, claims := range map[string]jwt.MapClaims{
		"no subject": {"ver": 1, "exp": clock.now.Add(time.Hour).Unix()},
		"no version": {"sub": "alice", "exp": clock.now.Add(time.Hour).Unix()},
		"no expiry":  {"sub": "alice", "ver": 1},
	} {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := tok.SignedString([]byte(cfg.Secret))
		require.NoError(t, err, name)

		_, _, err = codec.Validate(signed)
		assert.ErrorIs(t, err, ErrInvalidCredentials, name)
	}
}

func TestValidateGarbage(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t)
	codec := NewTokenCodec(cfg)

	for _, raw := range []string{"", "not.a.jwt", "garbage"} {
		_, _, err := codec.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}
