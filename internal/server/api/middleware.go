package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	claimsKey       = "claims"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

func bearerToken(c *gin.Context) string {
	header := c.GetHeader(common.AuthorizationHeaderName)
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(common.BearerPrefix):])
}

func claimsFrom(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsKey).(*auth.Claims)
}

// requireAccessToken authenticates the bearer token. An expired token yields
// 401 "token expired" so clients know to refresh.
func (h *Handler) requireAccessToken(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, shared.ErrorResponse{Error: shared.CodeUnauthorized})
		return
	}

	claims, err := h.sessions.VerifyToken(c.Request.Context(), token)
	if err != nil {
		code := shared.CodeUnauthorized
		if errors.Is(err, common.ErrTokenExpired) {
			code = shared.CodeTokenExpired
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, shared.ErrorResponse{Error: code})
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

// requireSignedToken accepts expired access tokens as long as the signature
// and the issuer/audience hold. Used by logout.
func (h *Handler) requireSignedToken(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, shared.ErrorResponse{Error: shared.CodeUnauthorized})
		return
	}

	claims, err := h.validator.ValidateIgnoringLifetime(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, shared.ErrorResponse{Error: shared.CodeUnauthorized})
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

// RequestLogger logs one line per request with latency and a request id.
func RequestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		ctx := c.Request.Context()
		switch {
		case status >= 500:
			l.Error(ctx, "http request", args...)
		case status >= 400:
			l.Warn(ctx, "http request", args...)
		default:
			l.Info(ctx, "http request", args...)
		}
	}
}

// Instrument records request counts and latency per route template.
func Instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
