package sessions

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	UserName    string
	Email       string
	DisplayName string
	Password    string
}

// Login verifies the credentials and returns the user's session, reusing the
// cached access token while it is valid.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.metrics.Logins.WithLabelValues(metrics.ResultUnauthorized).Inc()
			s.log.Info(ctx, "login rejected")
			return nil, common.ErrorUnauthorized
		}
		s.metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		s.log.Error(ctx, "credential store failure", "error", err)
		return nil, unavailable(err)
	}

	sess, err := s.openSession(ctx, u)
	if err != nil {
		s.metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}

	if sess.FromCache {
		s.metrics.Logins.WithLabelValues(metrics.ResultCached).Inc()
	} else {
		s.metrics.Logins.WithLabelValues(metrics.ResultOK).Inc()
	}
	s.log.Info(ctx, "user logged in", "user_id", u.ID, "from_cache", sess.FromCache)
	return sess, nil
}

// CurrentUser re-enters the login path for a request that already carries a
// valid access token.
func (s *Service) CurrentUser(ctx context.Context, claims *auth.Claims) (*models.Session, error) {
	u, err := s.users.Lookup(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, unavailable(err)
	}
	return s.openSession(ctx, u)
}

// Register creates the user and opens a brand new session for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Session, error) {
	u, err := s.users.Register(ctx, req.UserName, req.Email, req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrConflict) || errors.Is(err, common.ErrBadRequest) {
			return nil, err
		}
		s.log.Error(ctx, "user registration failed", "error", err)
		return nil, unavailable(err)
	}

	access, claims, err := s.issuer.IssueAccessToken(u)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.IssueOrReuseRefreshToken(ctx, u.ID, claims.ID, false)
	if err != nil {
		return nil, err
	}

	sess := s.newSession(u, access, claims, refresh)
	s.remember(ctx, sess)
	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return sess, nil
}

// openSession consults the cache first and falls back to minting an access
// token plus the rotation algorithm.
func (s *Service) openSession(ctx context.Context, u *models.User) (*models.Session, error) {
	if sess := s.fromCache(ctx, u); sess != nil {
		return sess, nil
	}

	access, claims, err := s.issuer.IssueAccessToken(u)
	if err != nil {
		s.log.Error(ctx, "access token signing failed", "user_id", u.ID, "error", err)
		return nil, common.ErrorInternal
	}
	refresh, err := s.IssueOrReuseRefreshToken(ctx, u.ID, claims.ID, true)
	if err != nil {
		return nil, err
	}

	sess := s.newSession(u, access, claims, refresh)
	s.remember(ctx, sess)
	return sess, nil
}

// fromCache returns the cached session of u, or nil when the cache cannot be
// trusted for it: miss, foreign user id, or no active refresh token left.
func (s *Service) fromCache(ctx context.Context, u *models.User) *models.Session {
	entry, err := s.cache.Get(ctx, u.UserName)
	if err != nil {
		s.metrics.CacheLookups.WithLabelValues(metrics.CacheError).Inc()
		s.log.Warn(ctx, "session cache read failed", "user_id", u.ID, "error", err)
		return nil
	}
	if entry == nil || entry.UserID != u.ID {
		s.metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		return nil
	}

	active, err := s.repos.RefreshTokens(s.db.Conn()).ListActiveByUser(ctx, u.ID)
	if err != nil {
		s.log.Warn(ctx, "refresh token lookup failed on cache hit", "user_id", u.ID, "error", err)
		s.metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		return nil
	}
	now := s.clock.Now()
	if len(active) == 0 || !active[0].Active(now) {
		s.metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		return nil
	}

	s.metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
	return &models.Session{
		TokenPair: models.TokenPair{
			AccessToken:  entry.AccessToken,
			RefreshToken: active[0].Token,
			ExpiresAt:    entry.ExpiresAt,
		},
		UserID:      u.ID,
		UserName:    u.UserName,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		FromCache:   true,
	}
}
