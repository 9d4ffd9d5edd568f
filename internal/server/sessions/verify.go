package sessions

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
)

// VerifyToken checks an access token with full lifetime validation.
func (s *Service) VerifyToken(ctx context.Context, token string) (*auth.Claims, error) {
	if token == "" {
		return nil, common.ErrBadRequest
	}
	claims, err := s.validator.Validate(token)
	if err != nil {
		s.log.Debug(ctx, "token verification failed", "error", err)
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
