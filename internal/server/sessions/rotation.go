package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"github.com/sethvargo/go-retry"
)

// IssueOrReuseRefreshToken returns the refresh token the client should hold
// after an access token with jwtID was minted for userID.
//
// With reset=false a new token is always minted and any other active token
// of the user is revoked first. With reset=true the newest non-revoked token
// is reused while it is unexpired; an expired one revokes the whole chain and
// a fresh token replaces it.
//
// Concurrent calls for one user are coalesced in-process; across processes
// the transaction locks the user's active token rows and a lost insert race
// is retried once.
//
// The shared rotation is detached from the cancellation of whichever caller
// started it and bounded by Config.RotationTimeout instead. Each caller stops
// waiting as soon as its own ctx is done.
func (s *Service) IssueOrReuseRefreshToken(ctx context.Context, userID, jwtID string, reset bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable(err)
	}

	key := userID + "/" + strconv.FormatBool(reset)
	ch := s.rotations.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RotationTimeout)
		defer cancel()
		return s.rotateWithRetry(rctx, userID, jwtID, reset)
	})

	select {
	case <-ctx.Done():
		return "", unavailable(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// retryableRotation reports whether a failed rotation attempt may run again.
func retryableRotation(err error) bool {
	return errors.Is(err, common.ErrConflict) || dbx.IsTransient(err)
}

func (s *Service) rotateWithRetry(ctx context.Context, userID, jwtID string, reset bool) (string, error) {
	var token string
	attempt := 0
	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(s.cfg.RetryDelay)), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.StoreRetries.Inc()
		}

		var err error
		token, err = s.rotate(ctx, userID, jwtID, reset)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrConflict) {
			s.metrics.Rotations.WithLabelValues(metrics.RotationConflict).Inc()
			s.log.Warn(ctx, "refresh token rotation lost a race", "user_id", userID, "attempt", attempt)
			return retry.RetryableError(err)
		}
		s.log.Warn(ctx, "refresh token rotation failed", "user_id", userID, "attempt", attempt, "error", err)
		if !retryableRotation(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		s.log.Error(ctx, "refresh token rotation gave up", "user_id", userID, "error", err)
		return "", unavailable(err)
	}
	return token, nil
}

func (s *Service) rotate(ctx context.Context, userID, jwtID string, reset bool) (string, error) {
	var token, outcome string

	err := s.db.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.RefreshTokens(tx)
		now := s.clock.Now()

		active, err := repo.LockActiveByUser(ctx, userID)
		if err != nil {
			return err
		}

		switch {
		case len(active) == 0:
			outcome = metrics.RotationCreated
		case !reset:
			if _, err := repo.RevokeAllByUser(ctx, userID); err != nil {
				return err
			}
			outcome = metrics.RotationForced
		case timex.IsExpired(now, active[0].ExpiresAt):
			if _, err := repo.RevokeAllByUser(ctx, userID); err != nil {
				return err
			}
			outcome = metrics.RotationReplaced
		default:
			current := active[0]
			if err := repo.BindJwtID(ctx, current.ID, jwtID); err != nil {
				return err
			}
			token, outcome = current.Token, metrics.RotationReused
			return nil
		}

		token, err = s.persistNew(ctx, repo, userID, jwtID)
		return err
	})
	if err != nil {
		return "", err
	}

	s.metrics.Rotations.WithLabelValues(outcome).Inc()
	s.log.Debug(ctx, "refresh token rotation", "user_id", userID, "outcome", outcome)
	return token, nil
}

func (s *Service) persistNew(ctx context.Context, repo refreshtokens.Repository, userID, jwtID string) (string, error) {
	value, err := s.generateRefreshToken()
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	rec := &models.RefreshToken{
		UserID:    userID,
		Token:     value,
		JwtID:     jwtID,
		ExpiresAt: s.clock.Now().Add(s.cfg.RefreshLifetime),
	}
	if err := repo.Create(ctx, rec); err != nil {
		return "", err
	}
	return value, nil
}
