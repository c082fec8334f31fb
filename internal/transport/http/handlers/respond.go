package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/media"
	"github.com/vedran77/board/internal/service"
	"github.com/vedran77/board/internal/session"
	"github.com/vedran77/board/internal/transport/http/middleware"
	"github.com/vedran77/board/pkg/validator"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}

// writeFailure maps an operation error onto a status and a message the
// client can show as is.
func writeFailure(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "The requested item no longer exists")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, domain.ErrEmailAlreadyInUse):
		writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered")
	case errors.Is(err, domain.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", "Password must be at least 6 characters")
	case errors.Is(err, domain.ErrRequiresRecentLogin):
		writeError(w, http.StatusUnauthorized, "REQUIRES_RECENT_LOGIN", "Please sign in again, then retry")
	case errors.Is(err, domain.ErrNotSignedIn), errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Please sign in")
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not allowed to do that")
	case errors.Is(err, media.ErrImageTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "The image is too large")
	case errors.Is(err, media.ErrEmptyImage), errors.Is(err, media.ErrFetchFailed):
		writeError(w, http.StatusBadRequest, "INVALID_IMAGE", "The image could not be read")
	case errors.Is(err, domain.ErrNetwork):
		logger.Warn(op+" failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Could not reach the server, try again shortly")
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		logger.Error(op+" failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}

// openSession resumes the session of the authenticated request. Tokens of
// deleted accounts count as signed out.
func openSession(r *http.Request, sessions *session.Factory) (*session.Context, error) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		return nil, domain.ErrNotSignedIn
	}

	sess, err := sessions.Resume(r.Context(), claims.Subject, service.AuthTimeOf(claims))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotSignedIn
	}
	return sess, err
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
