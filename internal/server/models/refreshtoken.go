// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
)

// RefreshToken is one issuance event. Rows are append-only: revocation and
// consumption flip flags, nothing is deleted.
type RefreshToken struct {
	ID     string
	UserID string
	// Token is the opaque value handed to the client.
	Token string
	// JwtID is the jti of the access token most recently bound to this row.
	JwtID     string
	IsUsed    bool
	IsRevoked bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the token may still be presented at now:
// not revoked and not past its expiry (expiry instant inclusive).
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.IsRevoked && !timex.IsExpired(now, t.ExpiresAt)
}
