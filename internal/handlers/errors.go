package handlers

import (
	"net/http"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/logger"
)

// Render service error, internal ones are logged with cause
func renderError(w http.ResponseWriter, l logger.Logger, err error) {
	if apperrors.KindOf(err) == apperrors.KindInternal {
		l.Error("request failed", "error", err.Error())
	} else {
		l.Debug("request rejected", "error", err.Error())
	}
	render.AppError(w, err)
}
