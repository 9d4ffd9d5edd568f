// Package refreshtokens declares the server-side repository contract for
// the refresh token audit trail.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

// Repository persists refresh tokens. Rows are never deleted; revocation and
// consumption are flag updates.
type Repository interface {
	// Create inserts t and fills in its ID and CreatedAt. A second non-revoked
	// token for the same user fails with common.ErrConflict.
	Create(ctx context.Context, t *models.RefreshToken) error

	// FindByToken looks a row up by its opaque value, revoked or not.
	// Returns common.ErrorNotFound when absent.
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// ListActiveByUser returns the user's non-revoked tokens, newest first.
	ListActiveByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error)

	// LockActiveByUser is ListActiveByUser with row locks held until the
	// surrounding transaction ends.
	LockActiveByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error)

	// RevokeAllByUser flips is_revoked on every non-revoked row of the user
	// and returns how many rows changed.
	RevokeAllByUser(ctx context.Context, userID string) (int64, error)

	// BindJwtID associates a non-revoked row with a newly issued access token.
	// Returns common.ErrorNotFound if the row is gone or revoked.
	BindJwtID(ctx context.Context, id string, jwtID string) error

	// MarkUsed records consumption by a refresh call and binds jwtID.
	// Returns common.ErrorNotFound if the row is gone or revoked.
	MarkUsed(ctx context.Context, id string, jwtID string) error

	// ListCreatedBefore pages through rows positioned after the cursor and
	// created strictly before until, ordered by (created_at, id).
	ListCreatedBefore(ctx context.Context, after Cursor, until time.Time, limit int) ([]*models.RefreshToken, error)
}

// Cursor is a keyset position over (created_at, id). The zero ID sorts
// before every row created at CreatedAt.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorAt returns the position right after t.
func CursorAt(t *models.RefreshToken) Cursor {
	return Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
}
