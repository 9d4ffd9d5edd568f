package api

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/shared"
	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{common.ErrBadRequest, http.StatusBadRequest, shared.CodeBadRequest},
	{common.ErrTokenNotYetExpired, http.StatusBadRequest, shared.CodeTokenNotYetExpired},
	{common.ErrRefreshTokenExpired, http.StatusBadRequest, shared.CodeRefreshTokenExpired},
	{common.ErrTokenExpired, http.StatusBadRequest, shared.CodeTokenExpired},
	{common.ErrInvalidToken, http.StatusBadRequest, shared.CodeInvalidToken},
	{common.ErrConflict, http.StatusConflict, shared.CodeConflict},
	{common.ErrorUnauthorized, http.StatusUnauthorized, shared.CodeUnauthorized},
	{common.ErrInvalidRefreshToken, http.StatusUnauthorized, shared.CodeInvalidRefreshToken},
	{common.ErrUnavailable, http.StatusServiceUnavailable, shared.CodeUnavailable},
}

// statusFor maps a coordinator error to an HTTP status and a public code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, shared.CodeInternal
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, shared.ErrorResponse{Error: code})
}
