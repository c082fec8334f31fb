package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/repository"
	"github.com/vedran77/board/internal/security"
	"github.com/vedran77/board/internal/session"
	"github.com/vedran77/board/pkg/validator"
)

type CommentHandler struct {
	comments  repository.CommentRepository
	posts     repository.PostRepository
	sessions  *session.Factory
	sanitizer *security.Sanitizer
	logger    *slog.Logger
}

func NewCommentHandler(comments repository.CommentRepository, posts repository.PostRepository, sessions *session.Factory, sanitizer *security.Sanitizer, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, posts: posts, sessions: sessions, sanitizer: sanitizer, logger: logger}
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, h.logger, "list comments", err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	var input domain.CreateCommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateComment(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	post, err := h.posts.GetByID(r.Context(), postID)
	if err != nil {
		writeFailure(w, h.logger, "add comment", err)
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Post not found")
		return
	}

	sess, err := openSession(r, h.sessions)
	if err != nil {
		writeFailure(w, h.logger, "add comment", err)
		return
	}
	defer sess.Close()

	id, err := h.comments.Add(r.Context(), postID, sess.Snapshot().Profile, domain.CreateCommentInput{
		Content: h.sanitizer.Text(input.Content),
	})
	if err != nil {
		writeFailure(w, h.logger, "add comment", err)
		return
	}

	comment, err := h.comments.Get(r.Context(), postID, id)
	if err != nil {
		writeFailure(w, h.logger, "get comment", err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	postID, commentID := chi.URLParam(r, "id"), chi.URLParam(r, "commentID")

	comment, err := h.comments.Get(r.Context(), postID, commentID)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Comment not found")
		return
	}
	if err != nil {
		writeFailure(w, h.logger, "delete comment", err)
		return
	}

	sess, err := openSession(r, h.sessions)
	if err != nil {
		writeFailure(w, h.logger, "delete comment", err)
		return
	}
	defer sess.Close()

	if sess.Snapshot().Identity.UID != comment.AuthorID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only delete your own comments")
		return
	}

	if err := h.comments.Delete(r.Context(), postID, commentID); err != nil {
		writeFailure(w, h.logger, "delete comment", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
