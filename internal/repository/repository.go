package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with same username or email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params models.CreateUserParams) (models.User, error)

	// Get user by it's id
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Get user matching username or email. Empty value is not matched
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByIdentity(ctx context.Context, username string, email string) (models.User, error)

	// Set user refresh token
	// If expected is nil token is overwritten unconditionally,
	// otherwise it is updated only if the stored token equals *expected.
	// Returns false if nothing was updated
	UpdateRefreshToken(ctx context.Context, userID uuid.UUID, expected *string, token string) (bool, error)

	// Unset user refresh token. Must not fail if token already unset or user not exists
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error

	// If user not found must return apperrors.ErrUserNotFound
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	// Update profile fields and return updated user
	// If email is taken by other user must return apperrors.ErrUserAlreadyExists
	UpdateProfile(ctx context.Context, userID uuid.UUID, patch models.ProfilePatch) (models.User, error)
}

// Transient failures (serialization failures, deadlocks) must be returned wrapped with apperrors.ErrConflict
type Storage interface {
	User() UserRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
