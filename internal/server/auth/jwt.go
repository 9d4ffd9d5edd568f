// Package auth mints and verifies the HMAC-signed access tokens and generates
// the opaque refresh token values.
package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAlgorithm is used when the configuration leaves the algorithm empty.
const DefaultAlgorithm = "HS512"

// Claims carries the registered claims plus the principal of the token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	UserName string `json:"name"`
	Email    string `json:"email,omitempty"`
}

// Params is the signing and validation parameter set fixed at startup.
type Params struct {
	SecretKey      []byte
	Algorithm      string
	Issuer         string
	Audience       string
	AccessLifetime time.Duration
}

func (p Params) signingMethod() (*jwt.SigningMethodHMAC, error) {
	alg := p.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	m, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported signing algorithm %q", common.ErrConfiguration, alg)
	}
	return m, nil
}

func (p Params) validate() (*jwt.SigningMethodHMAC, error) {
	if len(p.SecretKey) == 0 {
		return nil, fmt.Errorf("%w: signing key is not set", common.ErrConfiguration)
	}
	if p.Issuer == "" {
		return nil, fmt.Errorf("%w: token issuer is not set", common.ErrConfiguration)
	}
	if p.Audience == "" {
		return nil, fmt.Errorf("%w: token audience is not set", common.ErrConfiguration)
	}
	if p.AccessLifetime <= 0 {
		return nil, fmt.Errorf("%w: access token lifetime is not set", common.ErrConfiguration)
	}
	return p.signingMethod()
}

// Issuer signs access tokens.
type Issuer struct {
	params Params
	method *jwt.SigningMethodHMAC
	clock  timex.Clock
	newID  func() string
}

// NewIssuer checks the parameters once; a nil error means IssueAccessToken
// can only fail on signing.
func NewIssuer(p Params, clock timex.Clock) (*Issuer, error) {
	m, err := p.validate()
	if err != nil {
		return nil, err
	}
	return &Issuer{params: p, method: m, clock: clock, newID: uuid.NewString}, nil
}

// AccessLifetime returns the configured access token lifetime.
func (i *Issuer) AccessLifetime() time.Duration { return i.params.AccessLifetime }

// IssueAccessToken signs a new token for u with a fresh jti.
// claims.ExpiresAt.Unix() is the expiry handed to clients.
func (i *Issuer) IssueAccessToken(u *models.User) (string, *Claims, error) {
	now := i.clock.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        i.newID(),
			Subject:   u.ID,
			Issuer:    i.params.Issuer,
			Audience:  jwt.ClaimStrings{i.params.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.params.AccessLifetime)),
		},
		UserID:   u.ID,
		UserName: u.UserName,
		Email:    u.Email,
	}

	token := jwt.NewWithClaims(i.method, claims)
	tokenString, err := token.SignedString(i.params.SecretKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}

	return tokenString, claims, nil
}

// ExpiresAtUnix returns the token expiry as Unix seconds, or 0 when absent.
func (c *Claims) ExpiresAtUnix() int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	return timex.ToUnix(c.ExpiresAt.Time)
}
