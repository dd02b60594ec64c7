// Package services contains server-side business logic: credential
// verification, the session lifecycle, and per-user file storage.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

// bcryptCost is the fixed work factor for password hashes.
const bcryptCost = 10

// mismatchHash is a valid hash of no real password. It is compared against
// when the user does not exist, so the unknown-user path costs the same as
// the wrong-password path.
var mismatchHash, _ = bcrypt.GenerateFromPassword([]byte("filevault.no-such-user"), bcryptCost)

// UserService is the credential store: it creates accounts and verifies
// passwords. Unknown user and wrong password are indistinguishable to the
// caller, both report common.ErrorUnauthorized.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewUserService constructs a UserService using the given repositories.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repomanager: m}
}

// Register creates a new user with the given id and password. A taken id
// reports common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, id string, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{ID: id, PasswordHash: string(hash)}
	repo := s.repomanager.Users(s.db)

	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return u, nil
}

// Verify checks the password for the given user id and returns the id on
// success.
func (s *UserService) Verify(ctx context.Context, id string, password string) (string, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn a comparison so the miss costs as much as a mismatch
			_ = bcrypt.CompareHashAndPassword(mismatchHash, []byte(password))
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", common.ErrorUnauthorized
	}

	return user.ID, nil
}
