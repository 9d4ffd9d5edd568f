package sessions

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/sethvargo/go-retry"
)

// LogoutResult reports what Logout managed to do. Logout itself never fails.
type LogoutResult struct {
	UserName     string
	RevokedCount int64
	// RevokeErr is set when revocation failed after its retry.
	RevokeErr error
	// CacheErr is set when the cache entry could not be removed.
	CacheErr error
}

// Clean reports whether both the revocation and the cache removal succeeded.
func (r LogoutResult) Clean() bool { return r.RevokeErr == nil && r.CacheErr == nil }

// Logout revokes every refresh token of userName and drops the cached session.
// The cache entry is removed even when revocation fails.
func (s *Service) Logout(ctx context.Context, userName string) LogoutResult {
	res := LogoutResult{UserName: userName}

	res.RevokedCount, res.RevokeErr = s.revokeAll(ctx, userName)
	if res.RevokeErr != nil {
		s.log.Error(ctx, "logout: refresh token revocation failed", "username", userName, "error", res.RevokeErr)
	}

	if err := s.cache.Remove(ctx, userName); err != nil {
		res.CacheErr = err
		s.log.Error(ctx, "logout: session cache removal failed", "username", userName, "error", err)
	}

	if res.Clean() {
		s.metrics.Logouts.WithLabelValues(metrics.ResultOK).Inc()
		s.log.Info(ctx, "user logged out", "username", userName, "revoked", res.RevokedCount)
	} else {
		s.metrics.Logouts.WithLabelValues(metrics.ResultError).Inc()
	}
	return res
}

func (s *Service) revokeAll(ctx context.Context, userName string) (int64, error) {
	u, err := s.users.LookupByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, nil
		}
		return 0, unavailable(err)
	}

	repo := s.repos.RefreshTokens(s.db.Conn())
	var n int64
	attempt := 0
	err = retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(s.cfg.RetryDelay)), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.StoreRetries.Inc()
		}
		var err error
		n, err = repo.RevokeAllByUser(ctx, u.ID)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}
