package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/service"
)

// ImageHandler uploads and serves card images. Bytes are streamed in both
// directions; an upload is never held in memory whole.
type ImageHandler struct {
	files     *service.FileService
	maxUpload int64
	logger    *slog.Logger
}

func NewImageHandler(files *service.FileService, maxUpload int64, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{files: files, maxUpload: maxUpload, logger: logger}
}

// UploadResponse carries the id a card uses to reference the image.
type UploadResponse struct {
	ID string `json:"id"`
}

// HandleUpload stores the first file part of a multipart/form-data body.
//
// HTTP: POST /image
func (h *ImageHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requester := auth.UsernameFromContext(r.Context())
	if requester == "" {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "expected a multipart/form-data body"))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, apperror.ValidationFailed("file", "no file in upload"))
			return
		}
		if err != nil {
			writeError(w, uploadError(err))
			return
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}

		file, err := h.files.Upload(r.Context(), requester, part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		if err != nil {
			writeError(w, uploadError(err))
			return
		}
		writeJSON(w, http.StatusOK, UploadResponse{ID: file.ID})
		return
	}
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.ValidationFailed("file", "upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
	}
	return err
}

// HandleGet streams the image if the requester may read the set that
// references it.
//
// HTTP: GET /image/{id}
func (h *ImageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	file, rc, err := h.files.Open(r.Context(), auth.UsernameFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; the client sees a truncated body.
		h.logger.Warn("streaming image",
			slog.String("id", file.ID),
			slog.String("error", err.Error()),
		)
	}
}

// HTTP: DELETE /image/{id}
func (h *ImageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.files.Delete(r.Context(), auth.UsernameFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
