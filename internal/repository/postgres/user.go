package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, username, email, fullname, password_hash, avatar, cover_image, refresh_token, created_at, updated_at`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, fullname, password_hash, avatar, cover_image)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, params models.CreateUserParams) (models.User, error) {
	rows, err := r.DB.Query(ctx, createUser,
		uuid.New(),
		params.Username,
		params.Email,
		params.Fullname,
		params.HashedPassword,
		params.Avatar,
		params.CoverImage,
	)
	if err != nil {
		return models.User{}, userError(err)
	}

	user, err := pgx.CollectOneRow(rows, rowToUser)
	if err != nil {
		return user, userError(err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return r.getOne(ctx, getUserByID, id)
}

const getUserByIdentity = `-- name: GetUserByIdentity
SELECT ` + userColumns + ` FROM users
WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
ORDER BY created_at
LIMIT 1
`

func (r *UserRepo) GetUserByIdentity(ctx context.Context, username string, email string) (models.User, error) {
	return r.getOne(ctx, getUserByIdentity, username, email)
}

const setRefreshToken = `-- name: SetRefreshToken
UPDATE users SET refresh_token = $2, updated_at = now()
WHERE id = $1
`

const swapRefreshToken = `-- name: SwapRefreshToken
UPDATE users SET refresh_token = $3, updated_at = now()
WHERE id = $1 AND refresh_token = $2
`

func (r *UserRepo) UpdateRefreshToken(ctx context.Context, id uuid.UUID, expected *string, token string) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)

	if expected == nil {
		tag, err = r.DB.Exec(ctx, setRefreshToken, id, token)
	} else {
		tag, err = r.DB.Exec(ctx, swapRefreshToken, id, *expected, token)
	}
	if err != nil {
		return false, dbError(err)
	}

	return tag.RowsAffected() == 1, nil
}

const clearRefreshToken = `-- name: ClearRefreshToken
UPDATE users SET refresh_token = NULL, updated_at = now()
WHERE id = $1 AND refresh_token IS NOT NULL
`

func (r *UserRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.Exec(ctx, clearRefreshToken, id)
	if err != nil {
		return dbError(err)
	}
	return nil
}

const updatePasswordHash = `-- name: UpdatePasswordHash
UPDATE users SET password_hash = $2, updated_at = now()
WHERE id = $1
`

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, updatePasswordHash, id, hashedPassword)
	switch {
	case err != nil:
		return dbError(err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

const updateProfile = `-- name: UpdateProfile
UPDATE users SET
	fullname = COALESCE($2, fullname),
	email = COALESCE($3, email),
	avatar = COALESCE($4, avatar),
	cover_image = COALESCE($5, cover_image),
	updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, patch models.ProfilePatch) (models.User, error) {
	return r.getOne(ctx, updateProfile, id, patch.Fullname, patch.Email, patch.Avatar, patch.CoverImage)
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...any) (models.User, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return models.User{}, userError(err)
	}

	user, err := pgx.CollectOneRow(rows, rowToUser)
	if err != nil {
		return user, userError(err)
	}

	return user, nil
}

func userError(err error) error {
	var pgErr *pgconn.PgError

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrUserNotFound
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		return apperrors.ErrUserAlreadyExists
	default:
		return dbError(err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Fullname,
		&u.HashedPassword,
		&u.Avatar,
		&u.CoverImage,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}
