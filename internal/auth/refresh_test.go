package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/social-post-scheduler/internal/model"
)

// fakeStore is an in-memory auth.UserStore with the same atomicity
// semantics as the SQL implementation: SwapRefreshToken only applies when
// the stored digest still matches.
type fakeStore struct {
	mu    sync.Mutex
	users map[uint64]*model.User

	// beforeSwap runs inside SwapRefreshToken before the compare, letting
	// tests interleave a concurrent rotation or revocation.
	beforeSwap func()
}

func newFakeStore(users ...*model.User) *fakeStore {
	s := &fakeStore{users: make(map[uint64]*model.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return model.User{}, ErrUserNotFound
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, ErrUserNotFound
}

func (s *fakeStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return *u, nil
	}
	return model.User{}, ErrUserNotFound
}

func (s *fakeStore) SetRefreshToken(_ context.Context, userID uint64, digest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.RefreshTokenHash = &digest
	u.RefreshTokenExpiresAt = &expiresAt
	return nil
}

func (s *fakeStore) SwapRefreshToken(_ context.Context, userID uint64, oldDigest, newDigest string, expiresAt time.Time) (bool, error) {
	if s.beforeSwap != nil {
		s.beforeSwap()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	if u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldDigest {
		return false, nil
	}
	u.RefreshTokenHash = &newDigest
	u.RefreshTokenExpiresAt = &expiresAt
	return true, nil
}

func (s *fakeStore) RevokeAllTokens(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.TokenVersion++
	u.RefreshTokenHash = nil
	u.RefreshTokenExpiresAt = nil
	return nil
}

func testUser() *model.User {
	return &model.User{ID: 1, Username: "alice", Email: "alice@test.com", Role: model.RoleUser, IsActive: true}
}

func TestIssueStoresDigestNotRaw(t *testing.T) {
	t.Parallel()

	cfg, clock := newTestConfig(t)
	u := testUser()
	store := newFakeStore(u)
	mgr := NewRefreshManager(cfg, store)

	raw, err := mgr.Issue(context.Background(), u)
	require.NoError(t, err)

	require.NotNil(t, u.RefreshTokenHash)
	require.NotNil(t, u.RefreshTokenExpiresAt)
	assert.NotContains(t, raw, *u.RefreshTokenHash)
	assert.NotEqual(t, raw, *u.RefreshTokenHash)
	assert.Equal(t, clock.now.Add(cfg.RefreshTTL), *u.RefreshTokenExpiresAt)

	// The verifier part of the raw token matches the stored digest.
	_, verifier, found := strings.Cut(raw, ".")
	require.True(t, found)
	assert.True(t, Verify(verifier, *u.RefreshTokenHash))
}

func TestRotateIsSingleUse(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t)
	u := testUser()
	store := newFakeStore(u)
	mgr := NewRefreshManager(cfg, store)

	raw, err := mgr.Issue(context.Background(), u)
	require.NoError(t, err)

	rotated, newRaw, err := mgr.Rotate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, rotated.ID)
	assert.NotEqual(t, raw, newRaw)

	// Replaying the consumed token must fail with the uniform rejection.
	_, _, err = mgr.Rotate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The replacement still works.
	_, _, err = mgr.Rotate(context.Background(), newRaw)
	require.NoError(t, err)
}

func TestRotateExpiredToken(t *testing.T) {
	t.Parallel()

	cfg, clock := newTestConfig(t)
	u := testUser()
	store := newFakeStore(u)
	mgr := NewRefreshManager(cfg, store)

	raw, err := mgr.Issue(context.Background(), u)
	require.NoError(t, err)

	// Past expiry the token is rejected even though the presented raw
	// value still matches the stored digest exactly.
	clock.Advance(cfg.RefreshTTL + time.Second)
	_, _, err = mgr.Rotate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRotateAfterRevokeAll(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t)
	u := testUser()
	store := newFakeStore(u)
	mgr := NewRefreshManager(cfg, store)

	raw, err := mgr.Issue(context.Background(), u)
	require.NoError(t, err)

	require.NoError(t, NewRevoker(store).RevokeAll(context.Background(), u.ID))

	stored, err := store.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TokenVersion)
	assert.Nil(t, stored.RefreshTokenHash)
	assert.Nil(t, stored.RefreshTokenExpiresAt)

	_, _, err = mgr.Rotate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRotateLosesRaceToConcurrentRotation(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t)
	u := testUser()
	store := newFakeStore(u)
	mgr := NewRefreshManager(cfg, store)

	raw, err := mgr.Issue(context.Background(), u)
	require.NoError(t, err)

	// Simulate a second request rotating the same token between this
	// request's read and its compare-and-swap.
	interleaved := false
	store.beforeSwap = func() {
		if interleaved {
			return
		}
		interleaved = true
		store.beforeSwap = nil
		if _, _, err := mgr.Rotate(context.Background(), raw); err != nil {
			t.Errorf("interleaved rotate: %v", err)
		}
	}

	_, _, err = mgr.Rotate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRotateRejectsStructuralGarbage(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t)
	mgr := NewRefreshManager(cfg, newFakeStore(testUser()))

	for _, raw := range []string{"", "noseparator", ".", "1.", ".abc", "notanumber.abc", "99.unknown-user"} {
		_, _, err := mgr.Rotate(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "raw=%q", raw)
	}
}

func TestRotateWrongVerifier(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t)
	u := testUser()
	store := newFakeStore(u)
	mgr := NewRefreshManager(cfg, store)

	_, err := mgr.Issue(context.Background(), u)
	require.NoError(t, err)

	_, _, err = mgr.Rotate(context.Background(), "1.completely-wrong-verifier")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
