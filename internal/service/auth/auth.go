package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/assets"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/metrics"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
	defaultRefreshRetries    = 3

	retryBaseDelay = 10 * time.Millisecond
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type TokenManager interface {
	IssuePair(user models.User) (models.TokenPair, error)
	ParseAccess(token string) (tokenmanager.AccessClaims, error)
	ParseRefresh(token string) (uuid.UUID, error)
}

// Stores local file somewhere public and returns its URL
type AssetUploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

type Recorder interface {
	AuthOperation(op string, outcome string, took time.Duration)
}

type Config struct {
	// Hasher to use during registration, login and password change
	// BcryptHasher if not set
	Hasher PasswordHasher

	Logger   logger.Logger
	Recorder Recorder

	// Attempts to store refresh token when store reports conflict
	RefreshRetries uint64

	AccessCookieName  string
	RefreshCookieName string

	// Send cookies over https only
	SecureCookies bool
}

type AuthService struct {
	tokens   TokenManager
	hasher   PasswordHasher
	storage  repository.Storage
	uploader AssetUploader
	logger   logger.Logger
	recorder Recorder

	refreshRetries uint64

	accessHeaderName  string
	accessAuthScheme  string
	accessCookieName  string
	refreshCookieName string
	secureCookies     bool
}

func NewService(cfg Config, tokens TokenManager, storage repository.Storage, uploader AssetUploader) (*AuthService, error) {
	if tokens == nil || storage == nil || uploader == nil {
		return nil, errors.New("token manager, storage and uploader must not be nil")
	}

	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)

	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = (*metrics.Recorder)(nil)
	}
	if cfg.RefreshRetries == 0 {
		cfg.RefreshRetries = defaultRefreshRetries
	}

	return &AuthService{
		tokens:            tokens,
		hasher:            cfg.Hasher,
		storage:           storage,
		uploader:          uploader,
		logger:            cfg.Logger.WithGroup("auth"),
		recorder:          cfg.Recorder,
		refreshRetries:    cfg.RefreshRetries,
		accessHeaderName:  defaultAccessHeaderName,
		accessAuthScheme:  defaultAccessAuthScheme,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		secureCookies:     cfg.SecureCookies,
	}, nil
}

type RegisterParams struct {
	Fullname string
	Email    string
	Username string
	Password string

	// Local paths of uploaded files; CoverImageFile may be empty
	AvatarFile     string
	CoverImageFile string
}

func (s *AuthService) Register(ctx context.Context, p RegisterParams) (_ models.PublicUser, err error) {
	defer s.observe("register", time.Now(), &err)
	defer s.release(p.AvatarFile, p.CoverImageFile)

	fullname := strings.TrimSpace(p.Fullname)
	email := strings.ToLower(strings.TrimSpace(p.Email))
	username := strings.ToLower(strings.TrimSpace(p.Username))
	if fullname == "" || email == "" || username == "" || strings.TrimSpace(p.Password) == "" {
		return models.PublicUser{}, apperrors.Validation("All fields are required")
	}

	_, err = s.storage.User().GetUserByIdentity(ctx, username, email)
	switch {
	case err == nil:
		return models.PublicUser{}, apperrors.Conflict("User with email or username already exists", apperrors.ErrUserAlreadyExists)
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return models.PublicUser{}, apperrors.Internal("Something went wrong while registering the user", err)
	}

	if p.AvatarFile == "" {
		return models.PublicUser{}, apperrors.Validation("Avatar file is required")
	}

	avatar, err := s.uploader.Upload(ctx, p.AvatarFile)
	if err != nil {
		return models.PublicUser{}, apperrors.Upload("Error while uploading avatar", err)
	}

	var coverImage string
	if p.CoverImageFile != "" {
		coverImage, err = s.uploader.Upload(ctx, p.CoverImageFile)
		if err != nil {
			return models.PublicUser{}, apperrors.Upload("Cover image upload failed", err)
		}
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return models.PublicUser{}, apperrors.Internal("Something went wrong while registering the user", err)
	}

	var created models.User
	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		user, err := tx.User().CreateUser(ctx, models.CreateUserParams{
			Username:       username,
			Email:          email,
			Fullname:       fullname,
			HashedPassword: hash,
			Avatar:         avatar,
			CoverImage:     coverImage,
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrUserAlreadyExists) {
				return apperrors.Conflict("User with email or username already exists", err)
			}
			return apperrors.Internal("Something went wrong while registering the user", err)
		}

		created, err = tx.User().GetUserByID(ctx, user.ID)
		if err != nil {
			return apperrors.Internal("Something went wrong while registering the user", err)
		}
		return nil
	})
	var appErr *apperrors.Error
	switch {
	case errors.As(err, &appErr):
		return models.PublicUser{}, appErr
	case err != nil:
		return models.PublicUser{}, apperrors.Internal("Something went wrong while registering the user", err)
	}

	s.logger.Info("user registered", "user_id", created.ID, "username", created.Username)
	return created.Public(), nil
}

func (s *AuthService) Login(ctx context.Context, username string, email string, password string) (_ models.Session, err error) {
	defer s.observe("login", time.Now(), &err)

	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" && email == "" {
		return models.Session{}, apperrors.Validation("username or email is required")
	}

	user, err := s.storage.User().GetUserByIdentity(ctx, username, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.Session{}, apperrors.NotFound("User does not exist", err)
	case err != nil:
		return models.Session{}, apperrors.Internal("Something went wrong while logging in", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.Session{}, apperrors.Unauthorized("Invalid user credentials", apperrors.ErrInvalidCredentials)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return models.Session{}, apperrors.Internal("Something went wrong while generating refresh and access token", err)
	}

	// Overwrite unconditionally: login ends any other session of the user
	ok, err := s.storeRefresh(ctx, user.ID, nil, pair.Refresh.Value)
	switch {
	case err != nil:
		return models.Session{}, apperrors.Internal("Something went wrong while generating refresh and access token", err)
	case !ok:
		return models.Session{}, apperrors.Internal("Something went wrong while generating refresh and access token", apperrors.ErrUserNotFound)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return models.Session{User: user.Public(), Tokens: pair}, nil
}

func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (_ models.TokenPair, err error) {
	defer s.observe("refresh", time.Now(), &err)

	if refresh == "" {
		return models.TokenPair{}, apperrors.Unauthorized("Unauthorized request", apperrors.ErrTokenInvalid)
	}

	userID, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		s.logger.Debug("refresh token rejected", "reason", err.Error())
		return models.TokenPair{}, apperrors.Unauthorized("Invalid refresh token", err)
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, apperrors.Unauthorized("Invalid refresh token", err)
	case err != nil:
		return models.TokenPair{}, apperrors.Internal("Something went wrong while refreshing tokens", err)
	}

	if user.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(refresh)) != 1 {
		s.logger.Warn("refresh token reuse detected", "user_id", user.ID)
		return models.TokenPair{}, apperrors.Unauthorized("Refresh token is expired or used", apperrors.ErrRefreshTokenIsUsed)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return models.TokenPair{}, apperrors.Internal("Something went wrong while refreshing tokens", err)
	}

	ok, err := s.storeRefresh(ctx, user.ID, &refresh, pair.Refresh.Value)
	switch {
	case err != nil:
		return models.TokenPair{}, apperrors.Internal("Something went wrong while refreshing tokens", err)
	case !ok:
		// Concurrent refresh with the same token won
		s.logger.Warn("refresh token reuse detected", "user_id", user.ID)
		return models.TokenPair{}, apperrors.Unauthorized("Refresh token is expired or used", apperrors.ErrRefreshTokenIsUsed)
	}

	return pair, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) (err error) {
	defer s.observe("logout", time.Now(), &err)

	err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		return retryable(s.storage.User().ClearRefreshToken(ctx, userID))
	})
	if err != nil {
		return apperrors.Internal("Something went wrong while logging out", err)
	}

	s.logger.Info("user logged out", "user_id", userID)
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) (err error) {
	defer s.observe("change_password", time.Now(), &err)

	if strings.TrimSpace(newPassword) == "" {
		return apperrors.Validation("New password is required")
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.NotFound("User does not exist", err)
	case err != nil:
		return apperrors.Internal("Something went wrong while changing password", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, oldPassword); err != nil {
		return apperrors.Unauthorized("Invalid old password", apperrors.ErrInvalidCredentials)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.Internal("Something went wrong while changing password", err)
	}

	err = s.storage.User().UpdatePasswordHash(ctx, userID, hash)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.NotFound("User does not exist", err)
	case err != nil:
		return apperrors.Internal("Something went wrong while changing password", err)
	}

	s.logger.Info("password changed", "user_id", userID)
	return nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (models.PublicUser, error) {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.PublicUser{}, apperrors.NotFound("User does not exist", err)
	case err != nil:
		return models.PublicUser{}, apperrors.Internal("Something went wrong while fetching the user", err)
	}
	return user.Public(), nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, fullname string, email string) (_ models.PublicUser, err error) {
	defer s.observe("update_profile", time.Now(), &err)

	var patch models.ProfilePatch
	if v := strings.TrimSpace(fullname); v != "" {
		patch.Fullname = &v
	}
	if v := strings.ToLower(strings.TrimSpace(email)); v != "" {
		patch.Email = &v
	}
	if patch.Fullname == nil && patch.Email == nil {
		return models.PublicUser{}, apperrors.Validation("At least one field is required")
	}

	return s.patchProfile(ctx, userID, patch)
}

func (s *AuthService) UpdateAvatar(ctx context.Context, userID uuid.UUID, file string) (_ models.PublicUser, err error) {
	defer s.observe("update_avatar", time.Now(), &err)
	defer s.release(file)

	if file == "" {
		return models.PublicUser{}, apperrors.Validation("Avatar file is missing")
	}

	url, err := s.uploader.Upload(ctx, file)
	if err != nil {
		return models.PublicUser{}, apperrors.Upload("Error while uploading avatar", err)
	}

	return s.patchProfile(ctx, userID, models.ProfilePatch{Avatar: &url})
}

func (s *AuthService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, file string) (_ models.PublicUser, err error) {
	defer s.observe("update_cover_image", time.Now(), &err)
	defer s.release(file)

	if file == "" {
		return models.PublicUser{}, apperrors.Validation("Cover image file is missing")
	}

	url, err := s.uploader.Upload(ctx, file)
	if err != nil {
		return models.PublicUser{}, apperrors.Upload("Error while uploading cover image", err)
	}

	return s.patchProfile(ctx, userID, models.ProfilePatch{CoverImage: &url})
}

// Authenticate request by access token from cookie or Authorization header
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	token := s.accessToken(r)
	if token == "" {
		return models.User{}, apperrors.Unauthorized("Unauthorized request", apperrors.ErrTokenInvalid)
	}

	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		s.logger.Debug("access token rejected", "reason", err.Error())
		return models.User{}, apperrors.Unauthorized("Invalid access token", err)
	}

	user, err := s.storage.User().GetUserByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, apperrors.Unauthorized("Invalid access token", err)
	case err != nil:
		return models.User{}, apperrors.Internal("Something went wrong while authenticating", err)
	}

	return user, nil
}

func (s *AuthService) accessToken(r *http.Request) string {
	if c, err := r.Cookie(s.accessCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	header := r.Header.Get(s.accessHeaderName)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *AuthService) patchProfile(ctx context.Context, userID uuid.UUID, patch models.ProfilePatch) (models.PublicUser, error) {
	user, err := s.storage.User().UpdateProfile(ctx, userID, patch)
	switch {
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		return models.PublicUser{}, apperrors.Conflict("User with email already exists", err)
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.PublicUser{}, apperrors.NotFound("User does not exist", err)
	case err != nil:
		return models.PublicUser{}, apperrors.Internal("Something went wrong while updating the user", err)
	}
	return user.Public(), nil
}

func (s *AuthService) storeRefresh(ctx context.Context, userID uuid.UUID, expected *string, token string) (bool, error) {
	var ok bool
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		var err error
		ok, err = s.storage.User().UpdateRefreshToken(ctx, userID, expected, token)
		return retryable(err)
	})
	return ok, err
}

func (s *AuthService) backoff() retry.Backoff {
	return retry.WithMaxRetries(s.refreshRetries, retry.NewExponential(retryBaseDelay))
}

// Mark store conflicts as safe to retry
func retryable(err error) error {
	if errors.Is(err, apperrors.ErrConflict) {
		return retry.RetryableError(err)
	}
	return err
}

func (s *AuthService) release(paths ...string) {
	for _, path := range paths {
		if err := assets.Release(path); err != nil {
			s.logger.Warn("can't remove uploaded file", "path", path, "error", err.Error())
		}
	}
}

func (s *AuthService) observe(op string, start time.Time, err *error) {
	outcome := metrics.OutcomeSuccess
	if *err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.recorder.AuthOperation(op, outcome, time.Since(start))
}
