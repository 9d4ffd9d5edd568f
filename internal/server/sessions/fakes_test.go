package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/sessioncache"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"github.com/stretchr/testify/require"
)

var (
	t0              = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	accessLifetime  = 60 * time.Second
	refreshLifetime = 7 * 24 * time.Hour
	bobUser         = &models.User{ID: "u-bob", UserName: "bob", Email: "bob@test.com"}
)

// --- refresh token store ---

type fakeStore struct {
	mu    sync.Mutex
	clock timex.Clock
	rows  []*models.RefreshToken
	seq   int

	createErrs   []error
	revokeErrs   []error
	markUsedErrs []error
	findErr      error

	createCalls   int
	revokeCalls   int
	markUsedCalls int
}

func newFakeStore(clock timex.Clock) *fakeStore { return &fakeStore{clock: clock} }

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func clone(t *models.RefreshToken) *models.RefreshToken {
	c := *t
	return &c
}

func (f *fakeStore) insertLocked(t *models.RefreshToken) error {
	for _, r := range f.rows {
		if r.UserID == t.UserID && !r.IsRevoked {
			return fmt.Errorf("refresh token for user %s: %w", t.UserID, common.ErrConflict)
		}
		if r.Token == t.Token {
			return fmt.Errorf("duplicate token: %w", common.ErrConflict)
		}
	}
	f.seq++
	t.ID = fmt.Sprintf("rt-%d", f.seq)
	t.CreatedAt = f.clock.Now()
	f.rows = append(f.rows, clone(t))
	return nil
}

// seed inserts a row as if another process committed it.
func (f *fakeStore) seed(t *models.RefreshToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertLocked(t); err != nil {
		panic(err)
	}
}

func (f *fakeStore) Create(_ context.Context, t *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if err := pop(&f.createErrs); err != nil {
		return err
	}
	return f.insertLocked(t)
}

func (f *fakeStore) FindByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, r := range f.rows {
		if r.Token == token {
			return clone(r), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeStore) ListActiveByUser(_ context.Context, userID string) ([]*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RefreshToken
	for i := len(f.rows) - 1; i >= 0; i-- {
		if r := f.rows[i]; r.UserID == userID && !r.IsRevoked {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (f *fakeStore) LockActiveByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	return f.ListActiveByUser(ctx, userID)
}

func (f *fakeStore) RevokeAllByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeCalls++
	if err := pop(&f.revokeErrs); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && !r.IsRevoked {
			r.IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) update(id string, fn func(*models.RefreshToken)) error {
	for _, r := range f.rows {
		if r.ID == id && !r.IsRevoked {
			fn(r)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeStore) BindJwtID(_ context.Context, id, jwtID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.update(id, func(r *models.RefreshToken) { r.JwtID = jwtID })
}

func (f *fakeStore) MarkUsed(_ context.Context, id, jwtID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markUsedCalls++
	if err := pop(&f.markUsedErrs); err != nil {
		return err
	}
	return f.update(id, func(r *models.RefreshToken) { r.IsUsed, r.JwtID = true, jwtID })
}

func (f *fakeStore) ListCreatedBefore(_ context.Context, after refreshtokens.Cursor, until time.Time, limit int) ([]*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RefreshToken
	for _, r := range f.rows {
		if r.CreatedAt.After(after.CreatedAt) && r.CreatedAt.Before(until) && len(out) < limit {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (f *fakeStore) byToken(t *testing.T, token string) *models.RefreshToken {
	t.Helper()
	rec, err := f.FindByToken(context.Background(), token)
	require.NoError(t, err)
	return rec
}

func (f *fakeStore) activeCount(userID string) int {
	rows, _ := f.ListActiveByUser(context.Background(), userID)
	return len(rows)
}

func (f *fakeStore) setExpiry(token string, exp time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Token == token {
			r.ExpiresAt = exp
		}
	}
}

func (f *fakeStore) snapshot() []*models.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.RefreshToken, len(f.rows))
	for i, r := range f.rows {
		out[i] = clone(r)
	}
	return out
}

func (f *fakeStore) restore(rows []*models.RefreshToken) {
	f.mu.Lock()
	f.rows = rows
	f.mu.Unlock()
}

// --- transactions ---

// fakeTx serializes units of work and rolls the store back on error.
type fakeTx struct {
	mu            sync.Mutex
	store         *fakeStore
	afterRollback func()
	rollbacks     int

	// beforeWork runs once, inside the next unit of work, before fn.
	beforeWork func(ctx context.Context) error
}

func (x *fakeTx) RunInTx(ctx context.Context, fn dbx.TxFunc) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if hook := x.beforeWork; hook != nil {
		x.beforeWork = nil
		if err := hook(ctx); err != nil {
			x.rollbacks++
			return err
		}
	}

	before := x.store.snapshot()
	if err := fn(ctx, nil); err != nil {
		x.store.restore(before)
		x.rollbacks++
		if x.afterRollback != nil {
			hook := x.afterRollback
			x.afterRollback = nil
			hook()
		}
		return err
	}
	return nil
}

func (x *fakeTx) Conn() dbx.DBTX { return nil }

type fakeRepoManager struct {
	store *fakeStore
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository               { return nil }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.store
}

// --- credentials ---

type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]*models.User
	passwords map[string]string
	err       error
}

func newFakeUsers() *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}, passwords: map[string]string{}}
	f.add(&models.User{ID: "u-bob", UserName: "bob", Email: "bob@test.com", DisplayName: "Bob"}, "Pa$$w0rd")
	f.add(&models.User{ID: "u-alice", UserName: "alice", Email: "alice@test.com", DisplayName: "Alice"}, "secret")
	return f
}

func (f *fakeUsers) add(u *models.User, pw string) {
	f.users[u.ID] = u
	f.passwords[u.ID] = pw
}

func (f *fakeUsers) Authenticate(_ context.Context, email, plaintext string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			if f.passwords[u.ID] != plaintext {
				return nil, common.ErrorUnauthorized
			}
			return u, nil
		}
	}
	return nil, common.ErrorUnauthorized
}

func (f *fakeUsers) Register(_ context.Context, userName, email, displayName, plaintext string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if userName == "" || email == "" || plaintext == "" {
		return nil, common.ErrBadRequest
	}
	for _, u := range f.users {
		if u.UserName == userName || u.Email == email {
			return nil, common.ErrConflict
		}
	}
	u := &models.User{ID: "u-" + userName, UserName: userName, Email: email, DisplayName: displayName}
	f.add(u, plaintext)
	return u, nil
}

func (f *fakeUsers) Lookup(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) LookupByUserName(_ context.Context, name string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.UserName == name {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

// --- cache that can be broken ---

type flakyCache struct {
	sessioncache.Cache
	getErr    error
	removeErr error
	removed   []string
}

func (c *flakyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.Cache.Get(ctx, key)
}

func (c *flakyCache) Remove(ctx context.Context, key string) error {
	c.removed = append(c.removed, key)
	if c.removeErr != nil {
		return c.removeErr
	}
	return c.Cache.Remove(ctx, key)
}

// --- harness ---

type harness struct {
	svc       *Service
	clock     *timex.ManualClock
	store     *fakeStore
	tx        *fakeTx
	users     *fakeUsers
	cache     *flakyCache
	issuer    *auth.Issuer
	validator *auth.Validator
	metrics   *metrics.Metrics
}

func tokenParams() auth.Params {
	return auth.Params{
		SecretKey:      []byte("test-signing-key"),
		Algorithm:      "HS512",
		Issuer:         "sessionkeeper",
		Audience:       "sessionkeeper-clients",
		AccessLifetime: accessLifetime,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := timex.NewManualClock(t0)
	store := newFakeStore(clock)
	h := &harness{
		clock:   clock,
		store:   store,
		tx:      &fakeTx{store: store},
		users:   newFakeUsers(),
		cache:   &flakyCache{Cache: sessioncache.NewMemoryCache(clock)},
		metrics: metrics.New(),
	}

	var err error
	h.issuer, err = auth.NewIssuer(tokenParams(), clock)
	require.NoError(t, err)
	h.validator, err = auth.NewValidator(tokenParams(), clock)
	require.NoError(t, err)

	h.svc = h.newService(t)
	return h
}

// newService builds another coordinator over the same collaborators, like a
// second server process would.
func (h *harness) newService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Deps{
		Users:     h.users,
		Repos:     &fakeRepoManager{store: h.store},
		DB:        h.tx,
		Issuer:    h.issuer,
		Validator: h.validator,
		Cache:     sessioncache.New(h.cache, h.clock, accessLifetime),
		Clock:     h.clock,
		Metrics:   h.metrics,
	}, Config{RefreshLifetime: refreshLifetime, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	return svc
}

func (h *harness) login(t *testing.T, email, pw string) *models.Session {
	t.Helper()
	sess, err := h.svc.Login(context.Background(), email, pw)
	require.NoError(t, err)
	return sess
}
