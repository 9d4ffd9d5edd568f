package sessioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
)

// Entry is the cached view of the last access token issued to a user.
type Entry struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"username"`
	AccessToken string `json:"access_token"`
	// ExpiresAt is the access token expiry, Unix seconds.
	ExpiresAt int64 `json:"expires_at"`
}

// Expired uses the access token rule: the expiry second itself is no longer valid.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(timex.FromUnix(e.ExpiresAt))
}

// SessionCache stores Entry values keyed by username on top of a Cache.
type SessionCache struct {
	cache Cache
	clock timex.Clock
	ttl   time.Duration
}

// New returns a SessionCache whose entries live at most ttl and never past
// the expiry of the token they hold.
func New(cache Cache, clock timex.Clock, ttl time.Duration) *SessionCache {
	return &SessionCache{cache: cache, clock: clock, ttl: ttl}
}

// Get returns (nil, nil) on a miss or when the stored entry is unreadable or expired.
func (s *SessionCache) Get(ctx context.Context, userName string) (*Entry, error) {
	b, ok, err := s.cache.Get(ctx, userName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, nil
	}
	if e.Expired(s.clock.Now()) {
		return nil, nil
	}
	return &e, nil
}

// Put overwrites the entry for e.UserName. An already expired entry is
// removed instead of stored.
func (s *SessionCache) Put(ctx context.Context, e *Entry) error {
	ttl := min(s.ttl, timex.Remaining(s.clock.Now(), timex.FromUnix(e.ExpiresAt)))
	if ttl <= 0 {
		return s.Remove(ctx, e.UserName)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.cache.Set(ctx, e.UserName, b, ttl)
}

func (s *SessionCache) Remove(ctx context.Context, userName string) error {
	return s.cache.Remove(ctx, userName)
}
