package ws

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/service"
	"github.com/vedran77/board/internal/session"
	"nhooyr.io/websocket"
)

type TokenVerifier interface {
	VerifyToken(token string) (*service.Claims, error)
}

type Handler struct {
	hub            *Hub
	verifier       TokenVerifier
	sessions       *session.Factory
	posts          PostFeed
	comments       CommentFeed
	observer       SubscriptionObserver
	logger         *slog.Logger
	originPatterns []string
}

// NewHandler upgrades authenticated requests to live connections. An
// allowedOrigin of "*" accepts any origin.
func NewHandler(hub *Hub, verifier TokenVerifier, sessions *session.Factory, posts PostFeed, comments CommentFeed, observer SubscriptionObserver, logger *slog.Logger, allowedOrigin string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		hub:      hub,
		verifier: verifier,
		sessions: sessions,
		posts:    posts,
		comments: comments,
		observer: observer,
		logger:   logger,
	}
	if allowedOrigin != "" && allowedOrigin != "*" {
		h.originPatterns = []string{allowedOrigin}
	}
	return h
}

// ServeHTTP authenticates via ?token=xxx since browsers cannot set headers on
// WebSocket requests. It blocks until the connection closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.verifier.VerifyToken(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sess, err := h.sessions.Resume(r.Context(), claims.Subject, service.AuthTimeOf(claims))
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "account no longer exists", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.logger.Error("ws: resume session", slog.String("error", err.Error()))
		http.Error(w, "could not open session", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: h.originPatterns == nil,
	})
	if err != nil {
		sess.Close()
		h.logger.Warn("ws: accept failed", slog.String("error", err.Error()))
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		userID:   claims.Subject,
		sess:     sess,
		posts:    h.posts,
		comments: h.comments,
		observer: h.observer,
		logger:   h.logger,
		subs:     make(map[string]func()),
		send:     make(chan []byte, sendBufSize),
		ready:    make(chan struct{}),
	}
	client.Run(r.Context())
}
