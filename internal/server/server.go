// Package server is the composition root: it opens storage, builds the
// services and handlers, mounts the routes and runs the HTTP server until
// it is told to stop.
//
//	config → storage (sqlstore + blob backend) → services → handlers → router
package server

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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/config"
	"github.com/sakif/flashcards/internal/handler"
	"github.com/sakif/flashcards/internal/middleware"
	"github.com/sakif/flashcards/internal/repository/s3blob"
	"github.com/sakif/flashcards/internal/repository/sqlstore"
	"github.com/sakif/flashcards/internal/service"
)

// Server owns the database connection and the router. Close (or Start
// returning) releases the connection.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqlstore.DB
	version string
}

// New opens storage and wires every route. The context bounds only the
// startup work (connecting, migrating, creating the bucket).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*Server, error) {
	var (
		opts []sqlstore.Option
		blob handler.Pinger
	)
	if cfg.Backend == config.BlobBackendS3 {
		store, err := s3blob.New(ctx, s3blob.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("creating s3 client: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, sqlstore.WithBlobStore(store))
		blob = store
	}

	dsn := cfg.Path
	if cfg.Driver == sqlstore.DriverPostgres {
		dsn = cfg.URL
	}
	db, err := sqlstore.Open(ctx, cfg.Driver, dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if blob == nil {
		// chunked blobs live in the same database
		blob = db
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		version: version,
	}
	if err := s.setupRoutes(blob); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes builds the dependency graph and mounts it.
//
// Middleware order: request id, real ip, logging, panic recovery, CORS,
// then token resolution so every handler sees the requesting user.
func (s *Server) setupRoutes(blob handler.Pinger) error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)

	users := service.NewUserService(s.db, s.db, tokens, passwords, s.logger)
	sets := service.NewSetService(s.db, s.logger)
	cards := service.NewCardService(s.db, s.db, s.logger)
	files := service.NewFileService(s.db, s.db, s.db, s.logger)

	userHandler := handler.NewUserHandler(users, s.config.SecureCookies, s.logger)
	setHandler := handler.NewSetHandler(sets, s.logger)
	cardHandler := handler.NewCardHandler(cards, s.logger)
	imageHandler := handler.NewImageHandler(files, s.config.MaxUploadBytes, s.logger)
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"database": s.db,
		"blob":     blob,
	}, s.version, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler)
	s.router.Use(auth.Authenticate(users, s.logger))

	s.router.Get("/health", healthHandler.HandleStatus)

	api := func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", userHandler.HandleRegister)
			r.Post("/login", userHandler.HandleLogin)
			r.Get("/logout", userHandler.HandleLogout)
			r.Get("/verify", userHandler.HandleVerify)
			r.With(auth.RequireAuth).Get("/savedSets", userHandler.HandleSavedSets)
			r.With(auth.RequireAuth).Post("/saveSet/{setId}", userHandler.HandleSaveSet)
			r.Put("/{username}", userHandler.HandleReplace)
			r.Patch("/{username}", userHandler.HandlePatch)
			r.Delete("/{username}", userHandler.HandleDelete)
		})
		r.Route("/set", func(r chi.Router) {
			r.Get("/", setHandler.HandleList)
			r.Post("/", setHandler.HandleCreate)
			r.Get("/{id}", setHandler.HandleGet)
			r.Put("/{id}", setHandler.HandleUpdate)
			r.Delete("/{id}", setHandler.HandleDelete)
		})
		r.Route("/card", func(r chi.Router) {
			r.Get("/{id}", cardHandler.HandleGet)
			r.Put("/{id}", cardHandler.HandleUpdate)
			r.Delete("/{id}", cardHandler.HandleDelete)
		})
		r.Route("/image", func(r chi.Router) {
			r.With(auth.RequireAuth).Post("/", imageHandler.HandleUpload)
			r.Get("/{id}", imageHandler.HandleGet)
			r.Delete("/{id}", imageHandler.HandleDelete)
		})
	}
	api(s.router)
	s.router.Route("/api", api)

	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to the configured shutdown timeout and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("driver", s.config.Driver),
			slog.String("blob_backend", s.config.Backend),
			slog.String("version", s.version),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
