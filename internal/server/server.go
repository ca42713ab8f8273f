// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// cmd/server builds a *config.Config and a logger, then:
//
//	Server.New() creates: sqlstore.DB → AuthService, NoteService → handlers
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/auth"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/config"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/handler"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/middleware"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/model"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/repository/sqlstore"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database pool. Start closes it after the HTTP server
// has drained; callers that never Start must call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqlstore.DB
}

// OpenStore opens the configured database engine. For SQLite file paths
// the parent directory is created first (like `mkdir -p`).
func OpenStore(ctx context.Context, cfg config.StorageConfig) (*sqlstore.DB, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.PostgresDSN
	if dialect == sqlstore.DialectSQLite {
		dsn = cfg.SQLitePath
		if dsn != "" && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("server: creating database directory: %w", err)
			}
		}
	}

	return sqlstore.Open(ctx, dialect, dsn)
}

// New creates a Server from a validated config.
//
// WIRING:
//  1. Open the store and bring its schema up to date
//  2. Build the token and password utilities from config
//  3. Build the services on top of the repository interfaces
//  4. Build the handlers on top of the services and register routes
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	version, err := db.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("database ready",
		slog.String("driver", string(db.Dialect())),
		slog.Int64("schema_version", version),
	)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /api/auth/register            → create account
// POST   /api/auth/login               → bearer token
// GET    /api/me                       → current user            [auth]
// POST   /api/notes                    → create note             [auth]
// GET    /api/notes                    → list notes              [auth]
// GET    /api/notes/search?keyword=    → keyword/tag search      [auth]
// GET    /api/notes/tag/{tag}          → by tag                  [auth]
// GET    /api/notes/date/{date}        → by creation day         [auth]
// GET    /api/notes/pinned|favorites|archived                    [auth]
// GET    /api/notes/{id}               → one note                [auth]
// PUT    /api/notes/{id}               → partial update          [auth, 409]
// DELETE /api/notes/{id}               → soft delete             [auth, 409]
// PUT    /api/notes/{id}/pin|favorite|archive → toggle flag       [auth, 409]
//
// [409]: writes are guarded by the note's version. If another request
// changed the note between our read and our write, the route answers
// 409 {"error":"conflict"} and nothing is written; the client re-reads and
// retries.
//
// Chi matches static segments before parameters, so /api/notes/pinned never
// reaches the {id} route.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns an id the logger and auth rejections both report
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordServiceWithCost(s.config.Auth.BcryptCost)

	// s.db implements both repository interfaces; services only see those.
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	noteService := service.NewNoteService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	noteHandler := handler.NewNoteHandler(noteService, s.logger)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens, middleware.AuthRejected(s.logger)))

			r.Get("/me", authHandler.HandleMe)

			r.Route("/notes", func(r chi.Router) {
				r.Post("/", noteHandler.HandleCreate)
				r.Get("/", noteHandler.HandleList)

				r.Get("/search", noteHandler.HandleSearch)
				r.Get("/tag/{tag}", noteHandler.HandleListByTag)
				r.Get("/date/{date}", noteHandler.HandleListByDate)
				r.Get("/pinned", noteHandler.HandleListByFlag(model.FlagPinned))
				r.Get("/favorites", noteHandler.HandleListByFlag(model.FlagFavorite))
				r.Get("/archived", noteHandler.HandleListByFlag(model.FlagArchived))

				r.Get("/{id}", noteHandler.HandleGet)
				r.Put("/{id}", noteHandler.HandleUpdate)
				r.Delete("/{id}", noteHandler.HandleDelete)
				r.Put("/{id}/pin", noteHandler.HandleToggle(model.FlagPinned))
				r.Put("/{id}/favorite", noteHandler.HandleToggle(model.FlagFavorite))
				r.Put("/{id}/archive", noteHandler.HandleToggle(model.FlagArchived))
			})
		})
	})

	return nil
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database pool.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait up to ShutdownTimeout for in-flight requests to finish
// 3. Close the database pool (flushes the SQLite WAL, releases the file lock)
//
// cmd/server cancels ctx on SIGINT/SIGTERM via signal.NotifyContext.
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", s.config.Addr),
			slog.String("driver", string(s.db.Dialect())),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
