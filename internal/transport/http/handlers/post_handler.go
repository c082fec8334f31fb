package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/media"
	"github.com/vedran77/board/internal/repository"
	"github.com/vedran77/board/internal/security"
	"github.com/vedran77/board/internal/session"
	"github.com/vedran77/board/pkg/validator"
)

const maxListLimit = 100

type PostHandler struct {
	posts         repository.PostRepository
	sessions      *session.Factory
	sanitizer     *security.Sanitizer
	logger        *slog.Logger
	listLimit     int
	maxImageBytes int64
}

func NewPostHandler(posts repository.PostRepository, sessions *session.Factory, sanitizer *security.Sanitizer, logger *slog.Logger, listLimit int, maxImageBytes int64) *PostHandler {
	return &PostHandler{
		posts:         posts,
		sessions:      sessions,
		sanitizer:     sanitizer,
		logger:        logger,
		listLimit:     listLimit,
		maxImageBytes: maxImageBytes,
	}
}

// postRequest is the JSON or multipart body of create and update. Image data
// is base64 in JSON and the "image" file part in multipart bodies.
type postRequest struct {
	Title            *string `json:"title"`
	Content          *string `json:"content"`
	ImageURL         *string `json:"image_url"`
	ImageData        []byte  `json:"image_data"`
	ImageContentType string  `json:"image_content_type"`
	RemoveImage      bool    `json:"remove_image"`
}

func (p *postRequest) image() *domain.ImageUpload {
	if len(p.ImageData) > 0 {
		return &domain.ImageUpload{Data: p.ImageData, ContentType: p.ImageContentType}
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		return &domain.ImageUpload{URI: *p.ImageURL}
	}
	return nil
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListAll(r.Context(), h.limit(r))
	if err != nil {
		writeFailure(w, h.logger, "list posts", err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) ListByAuthor(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListByAuthor(r.Context(), chi.URLParam(r, "uid"), h.limit(r))
	if err != nil {
		writeFailure(w, h.logger, "list posts by author", err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, h.logger, "get post", err)
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, err := h.decode(w, r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	title, content := deref(input.Title), deref(input.Content)
	if errs := validator.ValidatePost(title, content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	sess, err := openSession(r, h.sessions)
	if err != nil {
		writeFailure(w, h.logger, "create post", err)
		return
	}
	defer sess.Close()

	id, err := h.posts.Create(r.Context(), sess.Snapshot().Profile, domain.CreatePostInput{
		Title:   h.sanitizer.Text(title),
		Content: h.sanitizer.Text(content),
		Image:   input.image(),
	})
	if err != nil {
		writeFailure(w, h.logger, "create post", err)
		return
	}

	h.respondWithPost(w, r, http.StatusCreated, id)
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	input, err := h.decode(w, r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	if errs := validator.ValidatePostUpdate(input.Title, input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	sess, ok := h.ownedPost(w, r, id, "update post")
	if !ok {
		return
	}
	defer sess.Close()

	update := domain.UpdatePostInput{
		Image:       input.image(),
		RemoveImage: input.RemoveImage,
	}
	if input.Title != nil {
		title := h.sanitizer.Text(*input.Title)
		update.Title = &title
	}
	if input.Content != nil {
		content := h.sanitizer.Text(*input.Content)
		update.Content = &content
	}

	if err := h.posts.Update(r.Context(), id, sess.Snapshot().Profile, update); err != nil {
		writeFailure(w, h.logger, "update post", err)
		return
	}

	h.respondWithPost(w, r, http.StatusOK, id)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, ok := h.ownedPost(w, r, id, "delete post")
	if !ok {
		return
	}
	defer sess.Close()

	if err := h.posts.Delete(r.Context(), id); err != nil {
		writeFailure(w, h.logger, "delete post", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedPost opens the caller's session and checks the post exists and is
// theirs. On failure the response is already written.
func (h *PostHandler) ownedPost(w http.ResponseWriter, r *http.Request, id, op string) (*session.Context, bool) {
	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, op, err)
		return nil, false
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Post not found")
		return nil, false
	}

	sess, err := openSession(r, h.sessions)
	if err != nil {
		writeFailure(w, h.logger, op, err)
		return nil, false
	}
	if sess.Snapshot().Identity.UID != post.AuthorID {
		sess.Close()
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only change your own posts")
		return nil, false
	}
	return sess, true
}

func (h *PostHandler) respondWithPost(w http.ResponseWriter, r *http.Request, status int, id string) {
	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, "get post", err)
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Post not found")
		return
	}
	writeJSON(w, status, post)
}

func (h *PostHandler) limit(r *http.Request) int {
	limit := h.listLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return min(limit, maxListLimit)
}

var errBadRequest = errors.New("invalid request body")

func (h *PostHandler) decode(w http.ResponseWriter, r *http.Request) (*postRequest, error) {
	if !isMultipart(r) {
		var input postRequest
		body := http.MaxBytesReader(w, r.Body, h.maxImageBytes*2)
		if err := json.NewDecoder(body).Decode(&input); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if int64(len(input.ImageData)) > h.maxImageBytes {
			return nil, media.ErrImageTooLarge
		}
		return &input, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	input := &postRequest{
		Title:       formValue(r, "title"),
		Content:     formValue(r, "content"),
		ImageURL:    formValue(r, "image_url"),
		RemoveImage: r.FormValue("remove_image") == "true",
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	default:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if int64(len(data)) > h.maxImageBytes {
			return nil, media.ErrImageTooLarge
		}
		input.ImageData = data
		input.ImageContentType = header.Header.Get("Content-Type")
	}

	return input, nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.Is(err, media.ErrImageTooLarge) || errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "The image is too large")
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
}

func formValue(r *http.Request, key string) *string {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
