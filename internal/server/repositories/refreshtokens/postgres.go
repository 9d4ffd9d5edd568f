// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh tokens used in the server's authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

const (
	selectColumns = `id, user_id, token, jwt_id, is_used, is_revoked, created_at, expires_at`
	nilUUID       = "00000000-0000-0000-0000-000000000000"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, jwt_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, t.UserID, t.Token, t.JwtID, t.ExpiresAt.UTC()).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("refresh token for user %s: %w", t.UserID, common.ErrConflict)
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return nil
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token = $1
	`
	t, err := scanOne(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND NOT is_revoked
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) LockActiveByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND NOT is_revoked
		ORDER BY created_at DESC
		FOR UPDATE
	`
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE
		WHERE user_id = $1 AND NOT is_revoked
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) BindJwtID(ctx context.Context, id string, jwtID string) error {
	query := `
		UPDATE refresh_tokens
		SET jwt_id = $2
		WHERE id = $1 AND NOT is_revoked
	`
	return r.updateOne(ctx, query, id, jwtID)
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, jwtID string) error {
	query := `
		UPDATE refresh_tokens
		SET is_used = TRUE, jwt_id = $2
		WHERE id = $1 AND NOT is_revoked
	`
	return r.updateOne(ctx, query, id, jwtID)
}

func (r *PostgresRepository) ListCreatedBefore(ctx context.Context, after Cursor, until time.Time, limit int) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE (created_at, id) > ($1, $2::uuid) AND created_at < $3
		ORDER BY created_at ASC, id ASC
		LIMIT $4
	`
	id := after.ID
	if id == "" {
		id = nilUUID
	}
	return r.list(ctx, query, after.CreatedAt.UTC(), id, until.UTC(), limit)
}

func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.RefreshToken
	for rows.Next() {
		t, err := scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(s scanner) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	if err := s.Scan(&t.ID, &t.UserID, &t.Token, &t.JwtID, &t.IsUsed, &t.IsRevoked, &t.CreatedAt, &t.ExpiresAt); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	return t, nil
}
