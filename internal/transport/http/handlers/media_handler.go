package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vedran77/board/internal/blobstore"
)

type MediaHandler struct {
	blobs  blobstore.Store
	logger *slog.Logger
}

func NewMediaHandler(blobs blobstore.Store, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{blobs: blobs, logger: logger}
}

// Serve writes a stored image. Paths are never reused, so responses are
// cacheable forever.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	obj, err := h.blobs.Get(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		writeFailure(w, h.logger, "serve media", err)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}
