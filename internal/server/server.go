// Package server is the composition root: it opens the store, builds the
// services, mounts the Procedure Router and auth endpoints on a chi router,
// and runs the HTTP server with graceful shutdown.
//
// DEPENDENCY CHAIN:
//
//	config → sqlstore.Store → services → handlers → chi routes
//
// Every dependency is wired here and nowhere else.
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

	"github.com/sakif/timekeeper/internal/auth"
	"github.com/sakif/timekeeper/internal/config"
	"github.com/sakif/timekeeper/internal/handler"
	"github.com/sakif/timekeeper/internal/middleware"
	"github.com/sakif/timekeeper/internal/repository/sqlstore"
	"github.com/sakif/timekeeper/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
// It owns the store and closes it when Start returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  *sqlstore.Store
}

// New opens the database, applies pending migrations and wires all routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root HTTP handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it itself on return.
func (s *Server) Close() error {
	return s.store.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /                            → welcome text (public)
//	POST /api/auth/sign-up/email      → create account + session
//	POST /api/auth/sign-in/email      → session for valid credentials
//	GET  /api/auth/sign-in/google     → redirect to Google
//	GET  /api/auth/callback/google    → session for a Google account
//	POST /api/auth/sign-out           → delete the calling session (gated)
//	GET  /api/auth/get-session        → the calling session (gated)
//	GET  /api/{procedure}?input=...   → query procedures
//	POST /api/{procedure}             → mutation procedures
//
// MIDDLEWARE ORDER MATTERS: RequestID first so the logger can print it,
// RealIP before anything reads RemoteAddr, Recoverer innermost of the
// global set so a panic still gets logged with its status.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.CORSOrigins))

	var tokens *auth.TokenService
	if s.config.SessionsEnabled() {
		var err error
		tokens, err = auth.NewTokenService(s.config.SessionSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("SESSION_SECRET not set: sign-up and sign-in are disabled")
	}

	var google *auth.GoogleProvider
	if s.config.GoogleEnabled() {
		google = auth.NewGoogleProvider(s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackURL)
	}

	authService := service.NewAuthService(s.store, s.store, tokens, auth.NewPasswordService(),
		s.config.SessionMaxAge, nil, s.logger)
	categoryService := service.NewCategoryService(s.store, nil, s.logger)
	entryService := service.NewEntryService(s.store, s.store, nil, s.logger)

	gate := auth.NewGate(s.store, nil, s.logger)
	if tokens != nil {
		gate.WithTokens(tokens)
	}
	requireSession := gate.Require(handler.WriteError)

	procs := handler.NewProcedures(gate, s.logger)
	handler.RegisterSystem(procs)
	handler.NewCategoryHandler(categoryService).Register(procs)
	handler.NewEntryHandler(entryService).Register(procs)

	authHandler := handler.NewAuthHandler(authService, google, s.logger)

	s.router.Get("/", handler.HandleWelcome)
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-up/email", authHandler.HandleSignUpEmail)
			r.Post("/sign-in/email", authHandler.HandleSignInEmail)
			r.Get("/sign-in/google", authHandler.HandleGoogleLogin)
			r.Get("/callback/google", authHandler.HandleGoogleCallback)
			r.With(requireSession).Post("/sign-out", authHandler.HandleSignOut)
			r.With(requireSession).Get("/get-session", authHandler.HandleGetSession)
		})
		r.Handle("/{procedure}", procs)
	})

	s.logger.Debug("procedures registered", slog.Any("names", procs.Names()))
	return nil
}

// Start runs the server until SIGINT/SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.store.Driver()),
			slog.Bool("sessions", s.config.SessionsEnabled()),
			slog.Bool("google", s.config.GoogleEnabled()),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
