// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: config goes in, and every dependency is built
// and wired here rather than scattered across the codebase.
//
//	config.Config
//	  → Store (sqlite.DB or memory.Store)
//	  → github.Client
//	  → services (reputation, vouching, developers, projects, auth)
//	  → handlers → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/vouchnet/internal/auth"
	"github.com/sakif/vouchnet/internal/config"
	"github.com/sakif/vouchnet/internal/github"
	"github.com/sakif/vouchnet/internal/handler"
	"github.com/sakif/vouchnet/internal/middleware"
	"github.com/sakif/vouchnet/internal/repository"
	"github.com/sakif/vouchnet/internal/repository/memory"
	sqliteRepo "github.com/sakif/vouchnet/internal/repository/sqlite"
	"github.com/sakif/vouchnet/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. Close (called by Start on shutdown) releases it;
// for SQLite that flushes the WAL and drops the file lock.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	closer io.Closer // nil for the memory driver
}

// New creates a Server from cfg. The caller must Start or Close it.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, closer, err := openStore(cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		closer: closer,
	}

	if err := s.setupRoutes(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openStore(cfg config.Database) (repository.Store, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil, nil
	case config.DriverSQLite:
		db, err := sqliteRepo.New(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		return db, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store.
func (s *Server) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz
//	GET    /auth/github/login            (only with a JWT secret + OAuth app)
//	GET    /auth/github/callback
//	POST   /auth/logout
//
//	POST   /api/reputation/calculate/{id}
//	GET    /api/reputation/{id}
//	GET    /api/reputation/{id}/history
//	POST   /api/reputation/recalculate-all   (operator key)
//
//	POST   /api/vouches                      (auth)
//	GET    /api/vouches/eligibility/{id}
//	GET    /api/vouches/{id}
//	GET    /api/vouches/{id}/given
//	DELETE /api/vouches/{id}                 (auth)
//
//	GET    /api/developers
//	PUT    /api/developers/me                (auth)
//	GET    /api/developers/{id}
//	GET    /api/developers/{id}/github
//	GET    /api/developers/{id}/projects
//
//	POST   /api/projects                     (auth)
//	PUT    /api/projects/{id}                (auth, owner)
//	DELETE /api/projects/{id}                (auth, owner)
//	POST   /api/projects/{id}/sync           (auth, owner)
//
//	GET    /api/me                           (auth)
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can print it; Recoverer sits innermost
// so a panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Dependencies ===
	gh := github.New(github.Config{
		BaseURL:  s.config.GitHub.APIBaseURL,
		Token:    s.config.GitHub.Token,
		Timeout:  time.Duration(s.config.GitHub.Timeout) * time.Second,
		CacheTTL: time.Duration(s.config.GitHub.CacheTTL) * time.Minute,
		MaxPages: s.config.GitHub.MaxRepoPages,
	})

	var tokens *auth.TokenService
	if s.config.Auth.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.Auth.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT secret not set, authentication is disabled")
	}

	operatorKey, err := auth.NewOperatorKey(s.config.Auth.OperatorKeyHash)
	if err != nil {
		return fmt.Errorf("loading operator key: %w", err)
	}
	if !operatorKey.Enabled() {
		s.logger.Warn("operator key not set, recalculate-all is disabled")
	}

	reputationService := service.NewReputationService(s.store, gh, s.logger,
		service.WithBatchConcurrency(s.config.Reputation.BatchConcurrency))
	vouchService := service.NewVouchService(s.store, s.logger)
	developerService := service.NewDeveloperService(s.store, gh, s.logger)
	projectService := service.NewProjectService(s.store, gh, s.logger)
	authService := service.NewAuthService(s.store, tokens, s.logger)

	reputationHandler := handler.NewReputationHandler(reputationService, s.logger)
	vouchHandler := handler.NewVouchHandler(vouchService, authService, s.logger)
	developerHandler := handler.NewDeveloperHandler(developerService, projectService, authService, s.logger)
	projectHandler := handler.NewProjectHandler(projectService, authService, s.logger)

	requireAuth := authDisabled
	if tokens != nil {
		requireAuth = auth.RequireAuth(tokens)
	}

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// === Auth Routes ===
	var authHandler *handler.AuthHandler
	if tokens != nil {
		callbackURL := s.config.Auth.GitHubCallbackURL
		if callbackURL == "" {
			callbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", s.config.Server.Port)
		}
		provider := auth.NewGitHubProvider(
			s.config.Auth.GitHubClientID,
			s.config.Auth.GitHubClientSecret,
			callbackURL,
		).WithAPIURL(s.config.GitHub.APIBaseURL)

		authHandler = handler.NewAuthHandler(provider, authService, handler.CookieOptions{
			TTL:    tokens.TTL(),
			Secure: s.config.Auth.SecureCookies,
		}, s.logger)

		if s.config.Auth.GitHubClientID != "" {
			s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
			s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		} else {
			s.logger.Warn("GitHub OAuth client ID not set, login routes are disabled")
		}
		s.router.Post("/auth/logout", authHandler.HandleLogout)
	}

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/reputation", func(r chi.Router) {
			r.With(auth.RequireOperator(operatorKey)).Post("/recalculate-all", reputationHandler.HandleRecalculateAll)
			r.Post("/calculate/{id}", reputationHandler.HandleCalculate)
			r.Get("/{id}", reputationHandler.HandleGet)
			r.Get("/{id}/history", reputationHandler.HandleHistory)
		})

		r.Route("/vouches", func(r chi.Router) {
			r.With(requireAuth).Post("/", vouchHandler.HandleCreate)
			r.Get("/eligibility/{id}", vouchHandler.HandleEligibility)
			r.Get("/{id}", vouchHandler.HandleReceived)
			r.Get("/{id}/given", vouchHandler.HandleGiven)
			r.With(requireAuth).Delete("/{id}", vouchHandler.HandleRevoke)
		})

		r.Route("/developers", func(r chi.Router) {
			r.Get("/", developerHandler.HandleList)
			r.With(requireAuth).Put("/me", developerHandler.HandleUpdateMe)
			r.Get("/{id}", developerHandler.HandleGet)
			r.Get("/{id}/github", developerHandler.HandleGitHub)
			r.Get("/{id}/projects", developerHandler.HandleProjects)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", projectHandler.HandleCreate)
			r.Put("/{id}", projectHandler.HandleUpdate)
			r.Delete("/{id}", projectHandler.HandleDelete)
			r.Post("/{id}/sync", projectHandler.HandleSync)
		})

		if authHandler != nil {
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
		}
	})

	return nil
}

// authDisabled stands in for RequireAuth when no JWT secret is configured.
func authDisabled(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"unavailable","message":"authentication is not configured"}`))
	})
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully:
//  1. stop accepting new connections
//  2. wait for in-flight requests (server.shutdown_timeout)
//  3. close the store
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing store failed", slog.String("error", err.Error()))
		}
	}()

	srvCfg := s.config.Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", srvCfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(srvCfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(srvCfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(srvCfg.IdleTimeout) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", srvCfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", srvCfg.Port)),
			slog.String("driver", s.config.Database.Driver),
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

		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(srvCfg.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
