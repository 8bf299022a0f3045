package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/handlers/middleware"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/service/auth"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	metrics http.Handler,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	apiuser := http.NewServeMux()

	apiuser.Handle("POST /register", handleRegister(authService, logger))
	apiuser.Handle("POST /login", handleLogin(authService, logger))
	apiuser.Handle("POST /refresh-token", handleRefreshToken(authService, logger))

	apiuser.Handle("POST /logout", withAuth(handleLogout(authService, logger)))
	apiuser.Handle("POST /change-password", withAuth(handleChangePassword(authService, logger)))
	apiuser.Handle("GET /current-user", withAuth(handleCurrentUser(authService, logger)))
	apiuser.Handle("PATCH /update-account", withAuth(handleUpdateAccount(authService, logger)))
	apiuser.Handle("PATCH /avatar", withAuth(handleUpdateAvatar(authService, logger)))
	apiuser.Handle("PATCH /cover-image", withAuth(handleUpdateCoverImage(authService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/v1/users/", http.StripPrefix("/api/v1/users", apiuser))
	if metrics != nil {
		root.Handle("GET /metrics", metrics)
	}

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user, uploaded files are released by the service
	// Has to return apperrors.KindConflict error if user already exists
	Register(ctx context.Context, params auth.RegisterParams) (models.PublicUser, error)

	// Login with username or email and get fresh session
	Login(ctx context.Context, username string, email string, password string) (models.Session, error)

	// Rotate refresh token and get new pair
	// Every failure is apperrors.KindUnauthorized or apperrors.KindInternal
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	Logout(ctx context.Context, userID uuid.UUID) error
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) error
	GetCurrentUser(ctx context.Context, userID uuid.UUID) (models.PublicUser, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, fullname string, email string) (models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, file string) (models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, file string) (models.PublicUser, error)

	// Get request and return user if it authenticated or error
	Authenticate(ctx context.Context, r *http.Request) (models.User, error)

	// Set auth tokens (access, refresh) to response
	SetTokenPair(w http.ResponseWriter, pair models.TokenPair)
	ClearTokens(w http.ResponseWriter)

	// Get refresh token from request cookie or use fallback
	GetRefreshString(r *http.Request, fallback string) string
}
