// Package sessions is the session coordinator. For every authentication
// event it decides whether to reuse a cached access token, mint a new one,
// rotate or reuse the refresh token, or revoke.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/sessioncache"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"golang.org/x/sync/singleflight"
)

// CredentialStore is the user/password collaborator.
type CredentialStore interface {
	Authenticate(ctx context.Context, email, plaintext string) (*models.User, error)
	Register(ctx context.Context, userName, email, displayName, plaintext string) (*models.User, error)
	Lookup(ctx context.Context, userID string) (*models.User, error)
	LookupByUserName(ctx context.Context, userName string) (*models.User, error)
}

type TokenIssuer interface {
	IssueAccessToken(u *models.User) (string, *auth.Claims, error)
}

type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
	ValidateIgnoringLifetime(token string) (*auth.Claims, error)
}

const (
	DefaultRetryDelay      = 50 * time.Millisecond
	DefaultRotationTimeout = 10 * time.Second
)

// Config holds the coordinator's own settings.
type Config struct {
	RefreshLifetime time.Duration
	// RetryDelay is the pause before the single retry of a failed store write.
	RetryDelay time.Duration
	// RotationTimeout bounds one coalesced refresh token rotation,
	// retry included.
	RotationTimeout time.Duration
}

// Service coordinates the credential store, the refresh token store, the
// session cache and the token issuer/validator.
type Service struct {
	users     CredentialStore
	repos     repomanager.RepositoryManager
	db        dbx.TxRunner
	issuer    TokenIssuer
	validator TokenValidator
	cache     *sessioncache.SessionCache
	clock     timex.Clock
	log       logging.Logger
	metrics   *metrics.Metrics
	cfg       Config

	rotations            singleflight.Group
	generateRefreshToken func() (string, error)
}

// Deps groups the collaborators of NewService.
type Deps struct {
	Users     CredentialStore
	Repos     repomanager.RepositoryManager
	DB        dbx.TxRunner
	Issuer    TokenIssuer
	Validator TokenValidator
	Cache     *sessioncache.SessionCache
	Clock     timex.Clock
	Logger    logging.Logger
	Metrics   *metrics.Metrics
}

func NewService(d Deps, cfg Config) (*Service, error) {
	if cfg.RefreshLifetime <= 0 {
		return nil, fmt.Errorf("%w: refresh token lifetime is not set", common.ErrConfiguration)
	}
	if d.Users == nil || d.Repos == nil || d.DB == nil || d.Issuer == nil || d.Validator == nil || d.Cache == nil {
		return nil, fmt.Errorf("%w: session service dependencies are incomplete", common.ErrConfiguration)
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RotationTimeout <= 0 {
		cfg.RotationTimeout = DefaultRotationTimeout
	}
	if d.Clock == nil {
		d.Clock = timex.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	return &Service{
		users:                d.Users,
		repos:                d.Repos,
		db:                   d.DB,
		issuer:               d.Issuer,
		validator:            d.Validator,
		cache:                d.Cache,
		clock:                d.Clock,
		log:                  d.Logger.With("component", "sessions"),
		metrics:              d.Metrics,
		cfg:                  cfg,
		generateRefreshToken: auth.GenerateRefreshToken,
	}, nil
}

var domainErrors = []error{
	common.ErrorUnauthorized,
	common.ErrBadRequest,
	common.ErrConflict,
	common.ErrUnavailable,
	common.ErrInvalidToken,
	common.ErrTokenExpired,
	common.ErrTokenNotYetExpired,
	common.ErrInvalidRefreshToken,
	common.ErrRefreshTokenExpired,
	common.ErrorNotFound,
	common.ErrorInternal,
}

// unavailable classifies a collaborator failure: domain errors pass through,
// anything else is a storage or cache outage.
func unavailable(err error) error {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
}

func (s *Service) newSession(u *models.User, access string, claims *auth.Claims, refresh string) *models.Session {
	return &models.Session{
		TokenPair: models.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    claims.ExpiresAtUnix(),
		},
		UserID:      u.ID,
		UserName:    u.UserName,
		Email:       u.Email,
		DisplayName: u.DisplayName,
	}
}

// remember writes the session into the cache. The cache is an optimization,
// so failures are logged and swallowed.
func (s *Service) remember(ctx context.Context, sess *models.Session) {
	err := s.cache.Put(ctx, &sessioncache.Entry{
		UserID:      sess.UserID,
		UserName:    sess.UserName,
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.ExpiresAt,
	})
	if err != nil {
		s.log.Warn(ctx, "session cache write failed", "user_id", sess.UserID, "error", err)
	}
}
