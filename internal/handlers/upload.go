package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const maxUploadSize = 10 << 20

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	return r.ParseMultipartForm(maxUploadSize)
}

// Save multipart file to a temp file and return its path
// Empty path if request has no such file
func saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("can't read %s file. Err: %w", field, err)
	}
	defer file.Close() // nolint:errcheck

	tmp, err := os.CreateTemp("", "vidtube-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", fmt.Errorf("can't create temp file. Err: %w", err)
	}

	_, err = io.Copy(tmp, file)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("can't save %s file. Err: %w", field, err)
	}

	return tmp.Name(), nil
}

func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
