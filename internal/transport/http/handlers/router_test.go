package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	blobmemory "github.com/vedran77/board/internal/blobstore/memory"
	docmemory "github.com/vedran77/board/internal/docstore/memory"
	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/media"
	"github.com/vedran77/board/internal/repository/documents"
	"github.com/vedran77/board/internal/repository/memory"
	"github.com/vedran77/board/internal/security"
	"github.com/vedran77/board/internal/service"
	"github.com/vedran77/board/internal/session"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type testServer struct {
	handler http.Handler
	blobs   *blobmemory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	docs := docmemory.New(logger)
	blobs := blobmemory.New()
	uploader := media.NewUploader(blobs, "http://board.test/media", media.WithMaxBytes(1<<20))

	profiles := documents.NewProfileRepo(docs)
	posts := documents.NewPostRepo(docs, uploader, logger)
	comments := documents.NewCommentRepo(docs)

	auth := service.NewAuthService(memory.NewAccountRepo(), "test-secret", time.Hour, 5*time.Minute)
	sessions := session.NewFactory(auth, profiles, logger)
	sanitizer := security.NewSanitizer()

	handler := NewRouter(Deps{
		Auth:       NewAuthHandler(auth, sessions, sanitizer, logger),
		Posts:      NewPostHandler(posts, sessions, sanitizer, logger, 50, 1<<20),
		Comments:   NewCommentHandler(comments, posts, sessions, sanitizer, logger),
		Media:      NewMediaHandler(blobs, logger),
		Verifier:   auth,
		Logger:     logger,
		CORSOrigin: "*",
	})
	return &testServer{handler: handler, blobs: blobs}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email, name string) (string, string) {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "display_name": name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.User.UID, resp.AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]map[string]any](t, rec)
	code, _ := body["error"]["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndMe(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "secret123", "display_name": "  Alice  ",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[authResponse](t, rec)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "Alice", resp.User.DisplayName)
	assert.Equal(t, "Alice", resp.Profile.DisplayName)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	me := decode[map[string]any](t, rec)
	assert.Equal(t, "authenticated", me["state"])
	profile := me["profile"].(map[string]any)
	assert.Equal(t, "Alice", profile["display_name"])
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice@example.com", "Alice")

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "secret123", "display_name": "Again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMAIL_TAKEN", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "nope", "password": "123", "display_name": "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error struct {
			Fields map[string]string `json:"fields"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	fields := body.Error.Fields
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "display_name")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice@example.com", "Alice")

	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ALICE@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[authResponse](t, rec)
	assert.Equal(t, "Alice", resp.Profile.DisplayName)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/posts", "", map[string]string{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostLifecycle(t *testing.T) {
	s := newTestServer(t)
	aliceID, alice := s.register(t, "alice@example.com", "Alice")
	_, bob := s.register(t, "bob@example.com", "Bob")

	rec := s.do(t, http.MethodPost, "/api/v1/posts", alice, map[string]any{
		"title": "Hello", "content": "First post", "image_data": pngHeader,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := decode[domain.Post](t, rec)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, aliceID, post.AuthorID)
	assert.Equal(t, "Alice", post.AuthorName)
	require.NotNil(t, post.ImageURL)
	assert.Equal(t, 1, s.blobs.Len())

	rec = s.do(t, http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Post](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+aliceID+"/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Post](t, rec), 1)

	rec = s.do(t, http.MethodPatch, "/api/v1/posts/"+post.ID, bob, map[string]any{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/posts/"+post.ID, alice, map[string]any{
		"title": "Hello again", "remove_image": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Post](t, rec)
	assert.Equal(t, "Hello again", updated.Title)
	assert.Equal(t, "First post", updated.Content)
	assert.Nil(t, updated.ImageURL)
	assert.Equal(t, 0, s.blobs.Len())

	rec = s.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/posts/"+post.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostTextRoundTrips(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register(t, "alice@example.com", "Alice")

	rec := s.do(t, http.MethodPost, "/api/v1/posts", alice, map[string]any{
		"title": "A & B", "content": "1 < 2 and <i>3</i> > 2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Post](t, rec)
	assert.Equal(t, "A & B", created.Title)

	rec = s.do(t, http.MethodGet, "/api/v1/posts/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	post := decode[domain.Post](t, rec)
	assert.Equal(t, "A & B", post.Title)
	assert.Equal(t, "1 < 2 and 3 > 2", post.Content)
}

func TestCreatePostValidation(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register(t, "alice@example.com", "Alice")

	rec := s.do(t, http.MethodPost, "/api/v1/posts", alice, map[string]any{"title": "  ", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestCreatePostMultipart(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register(t, "alice@example.com", "Alice")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Photo"))
	require.NoError(t, mw.WriteField("content", "Look at this"))
	part, err := mw.CreateFormFile("image", "dot.png")
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+alice)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := decode[domain.Post](t, rec)
	require.NotNil(t, post.ImageURL)

	rec = s.do(t, http.MethodGet, "/media/"+(*post.ImageURL)[len("http://board.test/media/"):], "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, pngHeader, rec.Body.Bytes())
}

func TestMediaNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/media/posts/nobody/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageTooLarge(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register(t, "alice@example.com", "Alice")

	rec := s.do(t, http.MethodPost, "/api/v1/posts", alice, map[string]any{
		"title": "Big", "content": "Too big", "image_data": make([]byte, 1<<20+1),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestComments(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register(t, "alice@example.com", "Alice")
	_, bob := s.register(t, "bob@example.com", "Bob")

	rec := s.do(t, http.MethodPost, "/api/v1/posts", alice, map[string]any{"title": "Hi", "content": "There"})
	require.Equal(t, http.StatusCreated, rec.Code)
	post := decode[domain.Post](t, rec)

	rec = s.do(t, http.MethodPost, "/api/v1/posts/missing/comments", bob, map[string]string{"content": "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", bob, map[string]string{"content": "<b>Nice</b>"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment := decode[domain.Comment](t, rec)
	assert.Equal(t, "Nice", comment.Content)
	assert.Equal(t, "Bob", comment.AuthorName)
	assert.Equal(t, post.ID, comment.PostID)

	rec = s.do(t, http.MethodGet, "/api/v1/posts/"+post.ID+"/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Comment](t, rec), 1)

	rec = s.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/comments/"+comment.ID, alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/comments/"+comment.ID, bob, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/comments/"+comment.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAccount(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register(t, "alice@example.com", "Alice")

	rec := s.do(t, http.MethodDelete, "/api/v1/auth/account", alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/me", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register(t, "alice@example.com", "Alice")

	rec := s.do(t, http.MethodPost, "/api/v1/auth/logout", alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
