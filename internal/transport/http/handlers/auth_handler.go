package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/security"
	"github.com/vedran77/board/internal/service"
	"github.com/vedran77/board/internal/session"
	"github.com/vedran77/board/pkg/validator"
)

type AuthHandler struct {
	auth      *service.AuthService
	sessions  *session.Factory
	sanitizer *security.Sanitizer
	logger    *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, sessions *session.Factory, sanitizer *security.Sanitizer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, sanitizer: sanitizer, logger: logger}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User        *domain.Identity `json:"user"`
	Profile     *domain.Profile  `json:"profile"`
	AccessToken string           `json:"access_token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input registerRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateRegister(input.Email, input.Password, input.DisplayName); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	sess := h.sessions.Anonymous()
	defer sess.Close()

	profile, err := sess.SignUp(r.Context(), domain.SignUpInput{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: h.sanitizer.Text(input.DisplayName),
	})
	if err != nil {
		writeFailure(w, h.logger, "register", err)
		return
	}

	h.respondWithToken(w, http.StatusCreated, sess, profile)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input loginRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateLogin(input.Email, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	sess := h.sessions.Anonymous()
	defer sess.Close()

	if err := sess.SignIn(r.Context(), input.Email, input.Password); err != nil {
		writeFailure(w, h.logger, "login", err)
		return
	}

	h.respondWithToken(w, http.StatusOK, sess, sess.Snapshot().Profile)
}

// Logout ends the server-side session. Tokens are stateless, so clients
// discard theirs.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, err := openSession(r, h.sessions)
	if err != nil {
		writeFailure(w, h.logger, "logout", err)
		return
	}
	defer sess.Close()

	sess.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, err := openSession(r, h.sessions)
	if err != nil {
		writeFailure(w, h.logger, "me", err)
		return
	}
	defer sess.Close()

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	sess, err := openSession(r, h.sessions)
	if err != nil {
		writeFailure(w, h.logger, "delete account", err)
		return
	}
	defer sess.Close()

	if err := sess.DeleteAccount(r.Context()); err != nil {
		writeFailure(w, h.logger, "delete account", err)
		return
	}
	if err := sess.RefreshProfile(r.Context()); err != nil {
		h.logger.Warn("profile refresh after account deletion failed", slog.String("error", err.Error()))
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, sess *session.Context, profile *domain.Profile) {
	snap := sess.Snapshot()
	if snap.Identity == nil {
		writeFailure(w, h.logger, "issue token", domain.ErrNotSignedIn)
		return
	}

	token, err := h.auth.IssueToken(snap.Identity, sess.AuthTime())
	if err != nil {
		writeFailure(w, h.logger, "issue token", err)
		return
	}

	writeJSON(w, status, authResponse{User: snap.Identity, Profile: profile, AccessToken: token})
}
