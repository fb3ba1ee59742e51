package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/social-post-scheduler/internal/auth"
	"github.com/iliyamo/social-post-scheduler/internal/middleware"
	"github.com/iliyamo/social-post-scheduler/internal/model"
)

// memStore is an in-memory UserStore mirroring the SQL repository's
// semantics, including the compare-and-swap on rotation and the atomic
// revoke update.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*model.User
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, users: map[uint64]*model.User{}}
}

func (s *memStore) Create(_ context.Context, username, email, passwordHash, role string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return 0, auth.ErrUserExists
		}
	}
	id := s.nextID
	s.nextID++
	s.users[id] = &model.User{
		ID: id, Username: username, Email: email, PasswordHash: passwordHash,
		Role: role, IsActive: true,
	}
	return id, nil
}

func (s *memStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return model.User{}, auth.ErrUserNotFound
}

func (s *memStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, auth.ErrUserNotFound
}

func (s *memStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return *u, nil
	}
	return model.User{}, auth.ErrUserNotFound
}

func (s *memStore) SetRefreshToken(_ context.Context, userID uint64, digest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.RefreshTokenHash = &digest
	u.RefreshTokenExpiresAt = &expiresAt
	return nil
}

func (s *memStore) SwapRefreshToken(_ context.Context, userID uint64, oldDigest, newDigest string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldDigest {
		return false, nil
	}
	u.RefreshTokenHash = &newDigest
	u.RefreshTokenExpiresAt = &expiresAt
	return true, nil
}

func (s *memStore) RevokeAllTokens(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.TokenVersion++
	u.RefreshTokenHash = nil
	u.RefreshTokenExpiresAt = nil
	return nil
}

func (s *memStore) setRole(userID uint64, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID].Role = role
}

func (s *memStore) deactivate(userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID].IsActive = false
}

// authEnv wires the auth endpoints the way the router does, over the
// in-memory store.
type authEnv struct {
	e     *echo.Echo
	store *memStore
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	cfg, err := auth.NewConfig("handler-secret", 15*time.Minute, 7*24*time.Hour, bcrypt.MinCost)
	require.NoError(t, err)
	codec := auth.NewTokenCodec(cfg)
	store := newMemStore()
	h := NewAuthHandler(cfg, codec, store)

	e := echo.New()
	e.POST("/v1/auth/register", h.Register)
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/refresh", h.RefreshTokens)

	authed := e.Group("/v1", middleware.Authenticate(codec, store), middleware.RequireActive)
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/users/me", h.Me)
	admin := authed.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/users", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})
	return &authEnv{e: e, store: store}
}

func (env *authEnv) post(path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *authEnv) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *authEnv) register(t *testing.T, username, email, password string) {
	t.Helper()
	rec := env.post("/v1/auth/register",
		`{"username":"`+username+`","email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (env *authEnv) login(t *testing.T, username, password string) tokenResp {
	t.Helper()
	rec := env.post("/v1/auth/login",
		`{"username":"`+username+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tr tokenResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	return tr
}

func TestRegisterLoginLogoutLifecycle(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")

	tokens := env.login(t, "alice", "s3cret")
	assert.Equal(t, "bearer", tokens.TokenType)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	rec := env.get("/v1/users/me", tokens.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")

	require.Equal(t, http.StatusNoContent, env.post("/v1/auth/logout", "", tokens.AccessToken).Code)

	// The epoch bump makes the still-unexpired access token stale.
	assert.Equal(t, http.StatusUnauthorized, env.get("/v1/users/me", tokens.AccessToken).Code)
	// And the stored refresh digest is gone.
	assert.Equal(t, http.StatusUnauthorized,
		env.post("/v1/auth/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "").Code)
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")

	rec := env.post("/v1/auth/register",
		`{"username":"alice","email":"other@example.com","password":"x"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginBadCredentialsAreUniform(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")

	wrongPassword := env.post("/v1/auth/login", `{"username":"alice","password":"nope"}`, "")
	noSuchUser := env.post("/v1/auth/login", `{"username":"mallory","password":"nope"}`, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, noSuchUser.Code)
	// Identical bodies: an attacker cannot probe which usernames exist.
	assert.Equal(t, wrongPassword.Body.String(), noSuchUser.Body.String())
}

func TestRefreshRotationAndReplay(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.register(t, "bob", "bob@example.com", "pw")
	tokens := env.login(t, "bob", "pw")

	rec := env.post("/v1/auth/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rotated tokenResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)
	assert.NotEmpty(t, rotated.AccessToken)

	// The consumed token is dead; only the rotated one works.
	assert.Equal(t, http.StatusUnauthorized,
		env.post("/v1/auth/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "").Code)
	assert.Equal(t, http.StatusOK,
		env.post("/v1/auth/refresh", `{"refresh_token":"`+rotated.RefreshToken+`"}`, "").Code)
}

func TestRoleGuardAfterPromotion(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.register(t, "carol", "carol@example.com", "pw")
	tokens := env.login(t, "carol", "pw")

	assert.Equal(t, http.StatusForbidden, env.get("/v1/admin/users", tokens.AccessToken).Code)

	env.store.setRole(1, model.RoleAdmin)

	// The promoted role is read from the store on every request, so even
	// the pre-promotion access token now clears the role check.
	assert.Equal(t, http.StatusOK, env.get("/v1/admin/users", tokens.AccessToken).Code)
}

func TestInactiveAccountIsShutOut(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.register(t, "dora", "dora@example.com", "pw")
	tokens := env.login(t, "dora", "pw")

	env.store.deactivate(1)

	rec := env.get("/v1/users/me", tokens.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "inactive account")
}

func TestRefreshRequiresBody(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	assert.Equal(t, http.StatusBadRequest, env.post("/v1/auth/refresh", `{}`, "").Code)
}
