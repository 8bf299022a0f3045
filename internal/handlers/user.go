package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
)

func handleChangePassword(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = authService.ChangePassword(r.Context(), user.ID, data.OldPassword, data.NewPassword)
		if err != nil {
			renderError(w, logger, err)
			return
		}

		render.JSON(w, userResponse{Message: "Password changed successfully"})
	})
}

func handleCurrentUser(authService authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		current, err := authService.GetCurrentUser(r.Context(), user.ID)
		if err != nil {
			renderError(w, logger, err)
			return
		}

		render.JSON(w, userResponse{Message: "Current user fetched successfully", User: &current})
	})
}

func handleUpdateAccount(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Fullname string `json:"fullname"`
		Email    string `json:"email" validate:"omitempty,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		updated, err := authService.UpdateProfile(r.Context(), user.ID, data.Fullname, data.Email)
		if err != nil {
			renderError(w, logger, err)
			return
		}

		render.JSON(w, userResponse{Message: "Account details updated successfully", User: &updated})
	})
}

type updateImageFunc func(ctx context.Context, userID uuid.UUID, file string) (models.PublicUser, error)

// Accept single image in multipart field and pass it to update
func handleUpdateImage(field string, update updateImageFunc, message string, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		if err := parseMultipart(w, r); err != nil {
			render.ServiceError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		defer cleanupMultipart(r)

		file, err := saveUpload(r, field)
		if err != nil {
			logger.Warn("can't save uploaded file", "field", field, "error", err.Error())
			render.ServiceError(w, "Invalid file", http.StatusBadRequest)
			return
		}

		updated, err := update(r.Context(), user.ID, file)
		if err != nil {
			renderError(w, logger, err)
			return
		}

		render.JSON(w, userResponse{Message: message, User: &updated})
	})
}

func handleUpdateAvatar(authService authService, logger logger.Logger) http.Handler {
	return handleUpdateImage("avatar", authService.UpdateAvatar, "Avatar image updated successfully", logger)
}

func handleUpdateCoverImage(authService authService, logger logger.Logger) http.Handler {
	return handleUpdateImage("coverImage", authService.UpdateCoverImage, "Cover image updated successfully", logger)
}
