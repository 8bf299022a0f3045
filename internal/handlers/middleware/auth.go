package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/models"
)

type authService interface {
	Authenticate(ctx context.Context, r *http.Request) (models.User, error)
}

// Reject request if it is not authenticated, otherwise put user to request context
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Authenticate(r.Context(), r)
			if err != nil {
				render.AppError(w, err)
				return
			}
			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
