package sessions

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
)

// Refresh exchanges an expired access token plus its refresh token for a new
// access token. The refresh token itself is kept.
//
// The consumption write is not retried: a failure after the row may have
// been marked used is reported as unavailable and the client logs in again.
func (s *Service) Refresh(ctx context.Context, refreshToken, accessToken string) (*models.Session, error) {
	sess, err := s.refresh(ctx, refreshToken, accessToken)
	switch {
	case err == nil:
		s.metrics.Refreshes.WithLabelValues(metrics.ResultOK).Inc()
	case errors.Is(err, common.ErrUnavailable), errors.Is(err, common.ErrorInternal):
		s.metrics.Refreshes.WithLabelValues(metrics.ResultError).Inc()
	default:
		s.metrics.Refreshes.WithLabelValues(metrics.ResultRejected).Inc()
	}
	return sess, err
}

func (s *Service) refresh(ctx context.Context, refreshToken, accessToken string) (*models.Session, error) {
	if refreshToken == "" || accessToken == "" {
		return nil, common.ErrBadRequest
	}

	claims, err := s.validator.ValidateIgnoringLifetime(accessToken)
	if err != nil {
		s.log.Info(ctx, "refresh rejected: access token not verifiable", "error", err)
		return nil, common.ErrorUnauthorized
	}

	now := s.clock.Now()
	if now.Before(claims.ExpiresAt.Time) {
		return nil, common.ErrTokenNotYetExpired
	}

	repo := s.repos.RefreshTokens(s.db.Conn())
	rec, err := repo.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "refresh rejected: unknown refresh token", "user_id", claims.UserID)
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, unavailable(err)
	}

	if rec.UserID != claims.UserID {
		s.log.Warn(ctx, "refresh rejected: refresh token belongs to another user",
			"user_id", claims.UserID, "owner_id", rec.UserID)
		return nil, common.ErrInvalidRefreshToken
	}
	if rec.IsRevoked {
		s.log.Warn(ctx, "refresh rejected: revoked refresh token presented", "user_id", rec.UserID, "token_id", rec.ID)
		return nil, common.ErrInvalidRefreshToken
	}
	if rec.JwtID != claims.ID {
		s.log.Info(ctx, "refresh token bound to a different access token", "user_id", rec.UserID, "token_id", rec.ID)
	}
	if timex.IsExpired(now, rec.ExpiresAt) {
		return nil, common.ErrRefreshTokenExpired
	}

	u, err := s.users.Lookup(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, unavailable(err)
	}

	access, newClaims, err := s.issuer.IssueAccessToken(u)
	if err != nil {
		s.log.Error(ctx, "access token signing failed", "user_id", u.ID, "error", err)
		return nil, common.ErrorInternal
	}

	if err := repo.MarkUsed(ctx, rec.ID, newClaims.ID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "refresh rejected: token revoked during refresh", "user_id", u.ID, "token_id", rec.ID)
			return nil, common.ErrInvalidRefreshToken
		}
		s.log.Error(ctx, "marking refresh token used failed", "user_id", u.ID, "token_id", rec.ID, "error", err)
		return nil, unavailable(err)
	}

	sess := s.newSession(u, access, newClaims, rec.Token)
	s.remember(ctx, sess)
	s.log.Info(ctx, "access token refreshed", "user_id", u.ID)
	return sess, nil
}
