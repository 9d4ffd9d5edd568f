package sessions

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/sessioncache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_Configuration(t *testing.T) {
	h := newHarness(t)

	_, err := NewService(Deps{}, Config{RefreshLifetime: time.Hour})
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = NewService(Deps{
		Users: h.users, Repos: &fakeRepoManager{store: h.store}, DB: h.tx,
		Issuer: h.issuer, Validator: h.validator,
		Cache: sessioncache.New(h.cache, h.clock, time.Minute),
	}, Config{})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestLogin_SecondLoginWithinLifetimeIsCached(t *testing.T) {
	h := newHarness(t)

	first := h.login(t, "bob@test.com", "Pa$$w0rd")
	assert.False(t, first.FromCache)
	assert.Equal(t, t0.Add(accessLifetime).Unix(), first.ExpiresAt)

	h.clock.Advance(30 * time.Second)
	second := h.login(t, "bob@test.com", "Pa$$w0rd")

	assert.True(t, second.FromCache)
	assert.Equal(t, first.TokenPair, second.TokenPair)
	assert.Equal(t, 1, h.store.activeCount("u-bob"))
}

func TestLogin_AfterAccessExpiryMintsNewAccessReusesRefresh(t *testing.T) {
	h := newHarness(t)

	first := h.login(t, "bob@test.com", "Pa$$w0rd")
	h.clock.Advance(accessLifetime + time.Second)
	second := h.login(t, "bob@test.com", "Pa$$w0rd")

	assert.False(t, second.FromCache)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, first.RefreshToken, second.RefreshToken)

	claims, err := h.validator.Validate(second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, h.store.byToken(t, second.RefreshToken).JwtID)
	assert.Equal(t, 1, h.store.activeCount("u-bob"))
}

func TestLogin_BadCredentials(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Login(context.Background(), "bob@test.com", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = h.svc.Login(context.Background(), "ghost@test.com", "x")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	assert.Equal(t, 0, h.store.createCalls)
}

func TestLogin_CredentialStoreDown(t *testing.T) {
	h := newHarness(t)
	h.users.err = errors.New("connection refused")

	_, err := h.svc.Login(context.Background(), "bob@test.com", "Pa$$w0rd")
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.NotErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogin_CacheHitIgnoredOnceRefreshTokenRevoked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.login(t, "bob@test.com", "Pa$$w0rd")
	_, err := h.store.RevokeAllByUser(ctx, "u-bob")
	require.NoError(t, err)

	second := h.login(t, "bob@test.com", "Pa$$w0rd")
	assert.False(t, second.FromCache)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 1, h.store.activeCount("u-bob"))
}

func TestLogin_CacheEntryOfAnotherUserIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sc := sessioncache.New(h.cache, h.clock, accessLifetime)
	require.NoError(t, sc.Put(ctx, &sessioncache.Entry{
		UserID: "u-mallory", UserName: "bob", AccessToken: "forged", ExpiresAt: t0.Add(time.Minute).Unix(),
	}))

	sess := h.login(t, "bob@test.com", "Pa$$w0rd")
	assert.False(t, sess.FromCache)
	assert.NotEqual(t, "forged", sess.AccessToken)
}

func TestLogin_CacheReadFailureFallsBackToStore(t *testing.T) {
	h := newHarness(t)
	h.cache.getErr = errors.New("redis down")

	first := h.login(t, "bob@test.com", "Pa$$w0rd")
	second := h.login(t, "bob@test.com", "Pa$$w0rd")

	assert.False(t, second.FromCache)
	assert.Equal(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 1, h.store.activeCount("u-bob"))
}

func TestLogin_StoreWriteFailsTwice(t *testing.T) {
	h := newHarness(t)
	dropped := fmt.Errorf("db error: %w", driver.ErrBadConn)
	h.store.createErrs = []error{dropped, dropped}

	_, err := h.svc.Login(context.Background(), "bob@test.com", "Pa$$w0rd")
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.Equal(t, 2, h.store.createCalls)

	_, ok, err := h.cache.Get(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, ok, "cache must not be populated when the store write failed")
}

func TestRegister_OpensFreshSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess, err := h.svc.Register(ctx, RegisterRequest{UserName: "carol", Email: "carol@test.com", DisplayName: "Carol", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u-carol", sess.UserID)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, 1, h.store.activeCount("u-carol"))

	again, err := h.svc.Login(ctx, "carol@test.com", "pw")
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, sess.TokenPair, again.TokenPair)
}

func TestRegister_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, RegisterRequest{UserName: "bob", Email: "bob2@test.com", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = h.svc.Register(ctx, RegisterRequest{UserName: "dave"})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	h.users.err = errors.New("db down")
	_, err = h.svc.Register(ctx, RegisterRequest{UserName: "erin", Email: "erin@test.com", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestCurrentUser_ReentersLoginPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess := h.login(t, "bob@test.com", "Pa$$w0rd")
	claims, err := h.validator.Validate(sess.AccessToken)
	require.NoError(t, err)

	cur, err := h.svc.CurrentUser(ctx, claims)
	require.NoError(t, err)
	assert.True(t, cur.FromCache)
	assert.Equal(t, sess.TokenPair, cur.TokenPair)
	assert.Equal(t, "Bob", cur.DisplayName)

	claims.UserID = "u-deleted"
	_, err = h.svc.CurrentUser(ctx, claims)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
