package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrInvalidCredentials = errors.New("invalid user credentials")

	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token is expired")
	ErrRefreshTokenIsUsed = errors.New("refresh token is used")

	ErrUploadFailed = errors.New("asset upload failed")

	// Store detected a concurrent modification; the operation may be retried
	ErrConflict = errors.New("concurrent modification conflict")
)
