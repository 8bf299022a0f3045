package handlers

import (
	"net/http"

	"github.com/nkiryanov/vidtube/internal/assets"
	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/service/auth"
)

type userResponse struct {
	Message string             `json:"message"`
	User    *models.PublicUser `json:"user,omitempty"`
}

type tokensResponse struct {
	Message      string             `json:"message"`
	User         *models.PublicUser `json:"user,omitempty"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

func handleRegister(authService authService, logger logger.Logger) http.Handler {
	type form struct {
		Fullname string `form:"fullname"`
		Email    string `form:"email" validate:"omitempty,email"`
		Username string `form:"username" validate:"max=64"`
		Password string `form:"password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := parseMultipart(w, r); err != nil {
			render.ServiceError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		defer cleanupMultipart(r)

		data := form{
			Fullname: r.FormValue("fullname"),
			Email:    r.FormValue("email"),
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
		}
		if err := render.Validate(w, data); err != nil {
			return
		}

		avatar, err := saveUpload(r, "avatar")
		if err != nil {
			logger.Warn("can't save avatar", "error", err.Error())
			render.ServiceError(w, "Invalid avatar file", http.StatusBadRequest)
			return
		}
		coverImage, err := saveUpload(r, "coverImage")
		if err != nil {
			_ = assets.Release(avatar)
			logger.Warn("can't save cover image", "error", err.Error())
			render.ServiceError(w, "Invalid cover image file", http.StatusBadRequest)
			return
		}

		user, err := authService.Register(r.Context(), auth.RegisterParams{
			Fullname:       data.Fullname,
			Email:          data.Email,
			Username:       data.Username,
			Password:       data.Password,
			AvatarFile:     avatar,
			CoverImageFile: coverImage,
		})
		if err != nil {
			renderError(w, logger, err)
			return
		}

		render.Created(w, userResponse{Message: "User registered successfully", User: &user})
	})
}

func handleLogin(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		session, err := authService.Login(r.Context(), data.Username, data.Email, data.Password)
		if err != nil {
			renderError(w, logger, err)
			return
		}

		authService.SetTokenPair(w, session.Tokens)
		render.JSON(w, tokensResponse{
			Message:      "User logged in successfully",
			User:         &session.User,
			AccessToken:  session.Tokens.Access.Value,
			RefreshToken: session.Tokens.Refresh.Value,
		})
	})
}

func handleLogout(authService authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		if err := authService.Logout(r.Context(), user.ID); err != nil {
			renderError(w, logger, err)
			return
		}

		authService.ClearTokens(w)
		render.JSON(w, userResponse{Message: "User logged out"})
	})
}

func handleRefreshToken(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := authService.GetRefreshString(r, "")
		if refresh == "" && r.ContentLength != 0 {
			data, err := render.BindAndValidate[request](w, r)
			if err != nil {
				return
			}
			refresh = data.RefreshToken
		}

		pair, err := authService.RefreshPair(r.Context(), refresh)
		if err != nil {
			renderError(w, logger, err)
			return
		}

		authService.SetTokenPair(w, pair)
		render.JSON(w, tokensResponse{
			Message:      "Access token refreshed",
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		})
	})
}
