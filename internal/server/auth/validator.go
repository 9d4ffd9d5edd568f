package auth

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"github.com/golang-jwt/jwt/v5"
)

// Validator verifies access tokens against the startup parameter set.
type Validator struct {
	params Params
	method *jwt.SigningMethodHMAC
	clock  timex.Clock
}

func NewValidator(p Params, clock timex.Clock) (*Validator, error) {
	m, err := p.validate()
	if err != nil {
		return nil, err
	}
	return &Validator{params: p, method: m, clock: clock}, nil
}

func (v *Validator) keyFunc(t *jwt.Token) (interface{}, error) {
	return v.params.SecretKey, nil
}

// Validate checks signature, algorithm, issuer, audience and lifetime.
// It returns common.ErrTokenExpired when only the lifetime check fails and
// common.ErrInvalidToken for everything else.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithIssuer(v.params.Issuer),
		jwt.WithAudience(v.params.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// ValidateIgnoringLifetime recovers the claims of a possibly expired token.
// The signature, algorithm, issuer and audience are still enforced, and the
// token must carry an expiry.
func (v *Validator) ValidateIgnoringLifetime(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.Issuer != v.params.Issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", common.ErrInvalidToken)
	}
	if !slices.Contains(claims.Audience, v.params.Audience) {
		return nil, fmt.Errorf("%w: unexpected audience", common.ErrInvalidToken)
	}
	if claims.ExpiresAt == nil || claims.UserID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing claims", common.ErrInvalidToken)
	}
	return claims, nil
}
