package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/users"
)

// Store verifies and creates credentials on top of the users repository.
type Store struct {
	users  users.Repository
	params HashParams
}

func NewStore(repo users.Repository, params HashParams) *Store {
	return &Store{users: repo, params: params}
}

// VerifyPassword reports whether plaintext matches the stored hash of userID.
// An unknown user is (false, nil).
func (s *Store) VerifyPassword(ctx context.Context, userID, plaintext string) (bool, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	ok, err := Verify(plaintext, u.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("user %s: %w", userID, err)
	}
	return ok, nil
}

// Authenticate resolves email to a user and checks the password.
// Unknown email and wrong password both yield common.ErrorUnauthorized.
func (s *Store) Authenticate(ctx context.Context, email, plaintext string) (*models.User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	ok, err := s.VerifyPassword(ctx, u.ID, plaintext)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return u, nil
}

// Lookup returns the user by id.
func (s *Store) Lookup(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// LookupByUserName returns the user by username.
func (s *Store) LookupByUserName(ctx context.Context, userName string) (*models.User, error) {
	return s.users.GetByUserName(ctx, userName)
}

// Register validates input, hashes the password and creates the user.
// Duplicate username or email surfaces as common.ErrConflict.
func (s *Store) Register(ctx context.Context, userName, email, displayName, plaintext string) (*models.User, error) {
	userName = strings.TrimSpace(userName)
	email = normalizeEmail(email)
	if userName == "" || !strings.Contains(email, "@") || plaintext == "" {
		return nil, common.ErrBadRequest
	}
	if displayName == "" {
		displayName = userName
	}

	hash, err := s.params.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	return s.users.Create(ctx, &models.User{
		UserName:     userName,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
