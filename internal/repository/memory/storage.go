// Package memory keeps users in process memory.
// Suitable for local development and tests; data is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
)

type Storage struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func NewStorage() *Storage {
	return &Storage{users: make(map[uuid.UUID]models.User)}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{s: s}
}

// InTx runs fn against the same storage.
// Changes made before fn fails are not rolled back
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return fn(s)
}

type UserRepo struct {
	s *Storage
}

func (r *UserRepo) CreateUser(ctx context.Context, params models.CreateUserParams) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Username == params.Username || u.Email == params.Email {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
	}

	now := time.Now()
	user := models.User{
		ID:             uuid.New(),
		Username:       params.Username,
		Email:          params.Email,
		Fullname:       params.Fullname,
		HashedPassword: params.HashedPassword,
		Avatar:         params.Avatar,
		CoverImage:     params.CoverImage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.users[user.ID] = user

	return copyUser(user), nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (r *UserRepo) GetUserByIdentity(ctx context.Context, username string, email string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var (
		found models.User
		ok    bool
	)
	for _, u := range r.s.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			if !ok || u.CreatedAt.Before(found.CreatedAt) {
				found, ok = u, true
			}
		}
	}

	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return copyUser(found), nil
}

func (r *UserRepo) UpdateRefreshToken(ctx context.Context, id uuid.UUID, expected *string, token string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return false, nil
	}

	if expected != nil && (user.RefreshToken == nil || *user.RefreshToken != *expected) {
		return false, nil
	}

	user.RefreshToken = &token
	user.UpdatedAt = time.Now()
	r.s.users[id] = user

	return true, nil
}

func (r *UserRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok || user.RefreshToken == nil {
		return nil
	}

	user.RefreshToken = nil
	user.UpdatedAt = time.Now()
	r.s.users[id] = user

	return nil
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}

	user.HashedPassword = hashedPassword
	user.UpdatedAt = time.Now()
	r.s.users[id] = user

	return nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, patch models.ProfilePatch) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}

	if patch.Email != nil {
		for otherID, u := range r.s.users {
			if otherID != id && u.Email == *patch.Email {
				return models.User{}, apperrors.ErrUserAlreadyExists
			}
		}
	}

	set := func(field *string, value *string) {
		if value != nil {
			*field = *value
		}
	}
	set(&user.Fullname, patch.Fullname)
	set(&user.Email, patch.Email)
	set(&user.Avatar, patch.Avatar)
	set(&user.CoverImage, patch.CoverImage)
	user.UpdatedAt = time.Now()
	r.s.users[id] = user

	return copyUser(user), nil
}

// Detach refresh token pointer from stored value
func copyUser(u models.User) models.User {
	if u.RefreshToken != nil {
		token := *u.RefreshToken
		u.RefreshToken = &token
	}
	return u
}
