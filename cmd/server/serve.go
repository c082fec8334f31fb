package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vedran77/board/internal/blobstore"
	blobmemory "github.com/vedran77/board/internal/blobstore/memory"
	blobpostgres "github.com/vedran77/board/internal/blobstore/postgres"
	"github.com/vedran77/board/internal/config"
	"github.com/vedran77/board/internal/database"
	"github.com/vedran77/board/internal/docstore"
	docmemory "github.com/vedran77/board/internal/docstore/memory"
	docpostgres "github.com/vedran77/board/internal/docstore/postgres"
	"github.com/vedran77/board/internal/logger"
	"github.com/vedran77/board/internal/media"
	"github.com/vedran77/board/internal/metrics"
	"github.com/vedran77/board/internal/repository"
	"github.com/vedran77/board/internal/repository/documents"
	memoryrepo "github.com/vedran77/board/internal/repository/memory"
	postgresrepo "github.com/vedran77/board/internal/repository/postgres"
	"github.com/vedran77/board/internal/security"
	"github.com/vedran77/board/internal/service"
	"github.com/vedran77/board/internal/session"
	"github.com/vedran77/board/internal/transport/http/handlers"
	"github.com/vedran77/board/internal/transport/http/middleware"
	"github.com/vedran77/board/internal/transport/ws"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// storage is the backend-specific half of the server.
type storage struct {
	docs     docstore.Store
	blobs    blobstore.Store
	accounts repository.AccountRepository
	run      func(ctx context.Context) error
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage, error) {
	if cfg.Backend == config.BackendMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return &storage{
			docs:     docmemory.New(log),
			blobs:    blobmemory.New(),
			accounts: memoryrepo.NewAccountRepo(),
			run:      func(ctx context.Context) error { return nil },
			close:    func() {},
		}, nil
	}

	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("connected to database", slog.String("host", cfg.DBHost), slog.String("name", cfg.DBName))

	docs := docpostgres.New(pool, log)
	return &storage{
		docs:     docs,
		blobs:    blobpostgres.New(pool),
		accounts: postgresrepo.NewAccountRepo(pool),
		run:      docs.Run,
		close:    pool.Close,
	}, nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Setup(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// Storage
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	docs := docstore.Instrument(store.docs, collector)
	uploader := media.NewUploader(store.blobs, cfg.MediaBaseURL(),
		media.WithHTTPClient(security.NewSafeClient(cfg.ImageFetchTimeout)),
		media.WithMaxBytes(cfg.MaxImageBytes),
		media.WithObserver(collector),
	)

	// Repositories
	profiles := documents.NewProfileRepo(docs)
	posts := documents.NewPostRepo(docs, uploader, log)
	comments := documents.NewCommentRepo(docs)

	// Services
	authService := service.NewAuthService(store.accounts, cfg.JWTSecret, cfg.TokenTTL, cfg.RecentLoginWindow)
	sessions := session.NewFactory(authService, profiles, log)
	sanitizer := security.NewSanitizer()

	// Transport
	hub := ws.NewHub(log)
	rateLimiter := middleware.NewRateLimiter(cfg.AuthRatePerMinute, time.Minute)
	defer rateLimiter.Stop()

	router := handlers.NewRouter(handlers.Deps{
		Auth:        handlers.NewAuthHandler(authService, sessions, sanitizer, log),
		Posts:       handlers.NewPostHandler(posts, sessions, sanitizer, log, cfg.ListLimit, cfg.MaxImageBytes),
		Comments:    handlers.NewCommentHandler(comments, posts, sessions, sanitizer, log),
		Media:       handlers.NewMediaHandler(store.blobs, log),
		Verifier:    authService,
		RateLimiter: rateLimiter,
		Recorder:    collector,
		Logger:      log,
		CORSOrigin:  cfg.CORSAllowedOrigin,
		Metrics:     metrics.Handler(registry),
		WebSocket:   ws.NewHandler(hub, authService, sessions, posts, comments, collector, log, cfg.CORSAllowedOrigin),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", slog.String("addr", server.Addr), slog.String("backend", cfg.Backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return store.run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
