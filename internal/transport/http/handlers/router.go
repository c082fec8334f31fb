package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/vedran77/board/internal/transport/http/middleware"
)

// Deps are the handlers and middleware a router is assembled from.
type Deps struct {
	Auth     *AuthHandler
	Posts    *PostHandler
	Comments *CommentHandler
	Media    *MediaHandler

	Verifier    middleware.TokenVerifier
	RateLimiter *middleware.RateLimiter
	Recorder    middleware.StatusRecorder
	Logger      *slog.Logger
	CORSOrigin  string

	Metrics   http.Handler
	WebSocket http.Handler
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(d.Logger, d.Recorder))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.CORSOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	if d.WebSocket != nil {
		r.Method(http.MethodGet, "/ws", d.WebSocket)
	}
	r.Get("/media/*", d.Media.Serve)

	auth := middleware.Auth(d.Verifier)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if d.RateLimiter != nil {
				r.Use(d.RateLimiter.Middleware)
			}
			r.Post("/auth/register", d.Auth.Register)
			r.Post("/auth/login", d.Auth.Login)
		})

		// Reads are public
		r.Get("/posts", d.Posts.List)
		r.Get("/posts/{id}", d.Posts.Get)
		r.Get("/posts/{id}/comments", d.Comments.List)
		r.Get("/users/{uid}/posts", d.Posts.ListByAuthor)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Post("/auth/logout", d.Auth.Logout)
			r.Get("/auth/me", d.Auth.Me)
			r.Delete("/auth/account", d.Auth.DeleteAccount)

			r.Post("/posts", d.Posts.Create)
			r.Patch("/posts/{id}", d.Posts.Update)
			r.Delete("/posts/{id}", d.Posts.Delete)

			r.Post("/posts/{id}/comments", d.Comments.Create)
			r.Delete("/posts/{id}/comments/{commentID}", d.Comments.Delete)
		})
	})

	return r
}
