package api

import (
	"net/http"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/shared"
	"github.com/gin-gonic/gin"
)

// NewRouter wires routes and middleware.
func NewRouter(h *Handler, l logging.Logger, m *metrics.Metrics, limiter *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(l.With("module", "http_access")))
	r.Use(Instrument(m))

	throttled := r.Group("/", limiter.Middleware())
	{
		throttled.POST(shared.RouteLogin, h.Login)
		throttled.POST(shared.RouteRegister, h.Register)
		throttled.POST(shared.RouteRefreshToken, h.RefreshToken)
	}

	r.POST(shared.RouteVerifyToken, h.VerifyToken)
	r.POST(shared.RouteLogout, h.requireSignedToken, h.Logout)
	r.GET(shared.RouteCurrentUser, h.requireAccessToken, h.CurrentUser)

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, shared.ErrorResponse{Error: "not found"})
	})

	return r
}
