package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/sessionkeeper/internal/shared"
	"github.com/gin-gonic/gin"
)

// SessionService is the part of the coordinator the HTTP layer calls.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Register(ctx context.Context, req sessions.RegisterRequest) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken, accessToken string) (*models.Session, error)
	Logout(ctx context.Context, userName string) sessions.LogoutResult
	CurrentUser(ctx context.Context, claims *auth.Claims) (*models.Session, error)
	VerifyToken(ctx context.Context, token string) (*auth.Claims, error)
}

// TokenValidator recovers claims from possibly expired access tokens.
type TokenValidator interface {
	ValidateIgnoringLifetime(token string) (*auth.Claims, error)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	sessions        SessionService
	validator       TokenValidator
	logger          logging.Logger
	refreshLifetime time.Duration
	secureCookies   bool
	health          map[string]HealthCheck
}

// HandlerOptions configures the refresh token cookie and the health endpoint.
type HandlerOptions struct {
	RefreshLifetime time.Duration
	SecureCookies   bool
	HealthChecks    map[string]HealthCheck
}

func NewHandler(s SessionService, v TokenValidator, l logging.Logger, opts HandlerOptions) *Handler {
	return &Handler{
		sessions:        s,
		validator:       v,
		logger:          l.With("module", "http_api"),
		refreshLifetime: opts.RefreshLifetime,
		secureCookies:   opts.SecureCookies,
		health:          opts.HealthChecks,
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req shared.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.ErrBadRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		h.fail(c, common.ErrBadRequest)
		return
	}

	sess, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondSession(c, sess)
}

func (h *Handler) Register(c *gin.Context) {
	var req shared.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.ErrBadRequest)
		return
	}

	sess, err := h.sessions.Register(c.Request.Context(), sessions.RegisterRequest{
		UserName:    req.UserName,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondSession(c, sess)
}

// RefreshToken takes the refresh token from the body or the cookie and the
// access token from the body or the Authorization header.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req shared.RefreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, common.ErrBadRequest)
			return
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(common.RefreshTokenCookieName)
	}
	if req.AccessToken == "" {
		req.AccessToken = bearerToken(c)
	}

	sess, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken, req.AccessToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondSession(c, sess)
}

// Logout always answers 200 and clears the refresh cookie; revocation
// failures are only logged by the coordinator.
func (h *Handler) Logout(c *gin.Context) {
	claims := claimsFrom(c)
	res := h.sessions.Logout(c.Request.Context(), claims.UserName)
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, shared.LogoutResponse{LoggedOut: true, Revoked: res.RevokedCount})
}

func (h *Handler) VerifyToken(c *gin.Context) {
	var req shared.VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.ErrBadRequest)
		return
	}

	claims, err := h.sessions.VerifyToken(c.Request.Context(), req.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, shared.VerifyTokenResponse{
		Valid:     true,
		UserID:    claims.UserID,
		UserName:  claims.UserName,
		ExpiresAt: claims.ExpiresAtUnix(),
	})
}

func (h *Handler) CurrentUser(c *gin.Context) {
	sess, err := h.sessions.CurrentUser(c.Request.Context(), claimsFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondSession(c, sess)
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{}
	healthy := true
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			h.logger.Warn(ctx, "health check failed", "check", name, "error", err)
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) respondSession(c *gin.Context, s *models.Session) {
	h.setRefreshCookie(c, s.RefreshToken)
	c.JSON(http.StatusOK, shared.SessionResponse{
		UserID:       s.UserID,
		UserName:     s.UserName,
		Email:        s.Email,
		DisplayName:  s.DisplayName,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	})
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, token, int(h.refreshLifetime.Seconds()), "/api/account", "", h.secureCookies, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/api/account", "", h.secureCookies, true)
}
