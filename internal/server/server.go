// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: New opens the database, builds every
// service and handler, and mounts them on one chi router. Nothing below
// this package knows how its dependencies are constructed.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/learnify/internal/auth"
	"github.com/sakif/learnify/internal/config"
	"github.com/sakif/learnify/internal/generator"
	"github.com/sakif/learnify/internal/handler"
	"github.com/sakif/learnify/internal/middleware"
	"github.com/sakif/learnify/internal/notify"
	sqliteRepo "github.com/sakif/learnify/internal/repository/sqlite"
	"github.com/sakif/learnify/internal/service"
)

const (
	serviceName = "learnify"
	// collaboratorTimeout bounds each outbound generator or video call.
	collaboratorTimeout = 60 * time.Second
)

// Option overrides one of the collaborators New would otherwise build from
// config. Tests use these to keep mail and generation in-process.
type Option func(*collaborators)

type collaborators struct {
	notifier notify.Dispatcher
	content  generator.ContentGenerator
	videos   generator.VideoFinder
	github   handler.GitHubLogin
}

// WithNotifier replaces the SMTP dispatcher.
func WithNotifier(n notify.Dispatcher) Option {
	return func(c *collaborators) { c.notifier = n }
}

// WithGenerator replaces the HTTP content generator and video finder.
func WithGenerator(content generator.ContentGenerator, videos generator.VideoFinder) Option {
	return func(c *collaborators) {
		c.content = content
		c.videos = videos
	}
}

// WithGitHub replaces the GitHub OAuth provider. GitHub login still needs
// STATE_SIGNING_KEY.
func WithGitHub(g handler.GitHubLogin) Option {
	return func(c *collaborators) { c.github = g }
}

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and closes it on shutdown, after
// in-flight requests have finished.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	sessions *auth.SessionManager
}

// New opens the database, applies migrations and wires every route.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		sessions: auth.NewSessionManager(db, cfg.SessionTTL),
	}

	if err := s.setupRoutes(s.collaborators(opts)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// collaborators builds the outbound dependencies from config, then lets
// opts replace any of them.
func (s *Server) collaborators(opts []Option) collaborators {
	client := generator.NewHTTPClient(collaboratorTimeout)
	c := collaborators{
		notifier: notify.NewSMTPDispatcher(s.config.SMTP, s.logger),
		content:  generator.NewHTTPGenerator(s.config.GeneratorURL, client),
		videos:   generator.NewHTTPVideoFinder(s.config.VideoSearchURL, client),
	}
	if s.config.GitHubEnabled() {
		c.github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubRedirectURL)
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Handler returns the root handler, tracing included.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, serviceName)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTES:
//
//	GET    /healthz /readyz /metrics
//	POST   /auth/sign-up | sign-in | sign-out     (rate limited)
//	GET    /auth/me
//	GET    /auth/github/login | callback          (only when configured)
//	GET    /professors
//	GET    /verification?token=                   (rate limited, token auth)
//	POST   /verification/review                   (rate limited, token auth)
//	PATCH  /user                                  (session)
//	POST   /courses  GET /courses  GET /courses/{cid}
//	POST   /courses/generate-content | submit-verification | cancel-verification
//	POST   /enroll-course  GET /enroll-course  PUT /enroll-course
//
// MIDDLEWARE ORDER:
// RequestID first so the logger can print it, Recoverer inside the logger
// so a panic is still logged as a 500, identity last so every handler sees
// the caller.
func (s *Server) setupRoutes(c collaborators) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", auth.LegacyIdentityHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	identity := auth.NewIdentityResolver(s.sessions, s.logger)
	s.router.Use(identity.Identify)

	// === Operational ===
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/readyz", s.handleReady)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// === Services ===
	authService := service.NewAuthService(s.db, s.sessions, auth.NewPasswordService(), s.logger)
	courseService := service.NewCourseService(s.db, generator.NewPipeline(c.content, c.videos, s.logger), s.logger)
	reviewService := service.NewReviewService(s.db, s.db, c.notifier, s.config.ReviewLink, s.logger)
	enrollmentService := service.NewEnrollmentService(s.db, s.db, s.logger)
	professorService := service.NewProfessorService(s.db)

	// === Handlers ===
	cookies := auth.CookiePolicy{Secure: s.config.SecureCookies(), MaxAge: s.sessions.TTL()}
	authHandler := handler.NewAuthHandler(authService, cookies, s.config.AppBaseURL, s.logger)
	if c.github != nil {
		states, err := auth.NewStateSigner(s.config.StateSigningKey)
		if err != nil {
			return fmt.Errorf("GitHub login: %w", err)
		}
		authHandler.WithGitHub(c.github, states)
	}
	userHandler := handler.NewUserHandler(authService, s.logger)
	courseHandler := handler.NewCourseHandler(courseService, s.logger)
	verificationHandler := handler.NewVerificationHandler(reviewService, s.logger)
	professorHandler := handler.NewProfessorHandler(professorService, s.logger)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, s.logger)

	// Credential and token endpoints are the ones worth guessing against.
	limit := httprate.LimitByIP(s.config.RateLimitPerMinute, time.Minute)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/me", authHandler.HandleMe)
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/sign-up", authHandler.HandleSignUp)
			r.Post("/sign-in", authHandler.HandleSignIn)
			r.Post("/sign-out", authHandler.HandleSignOut)
			if authHandler.GitHubEnabled() {
				r.Get("/github/login", authHandler.HandleGitHubLogin)
				r.Get("/github/callback", authHandler.HandleGitHubCallback)
			}
		})
	})

	s.router.Get("/professors", professorHandler.HandleList)

	s.router.Route("/verification", func(r chi.Router) {
		r.Use(limit)
		r.Get("/", verificationHandler.HandleView)
		r.Post("/review", verificationHandler.HandleReview)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireIdentity)

		r.Patch("/user", userHandler.HandleUpdate)

		r.Route("/courses", func(r chi.Router) {
			r.Post("/", courseHandler.HandleCreate)
			r.Get("/", courseHandler.HandleList)
			r.Get("/{cid}", courseHandler.HandleGet)
			r.Post("/generate-content", courseHandler.HandleGenerateContent)
			r.Post("/submit-verification", verificationHandler.HandleSubmit)
			r.Post("/cancel-verification", verificationHandler.HandleCancel)
		})

		r.Post("/enroll-course", enrollmentHandler.HandleEnroll)
		r.Get("/enroll-course", enrollmentHandler.HandleGet)
		r.Put("/enroll-course", enrollmentHandler.HandleProgress)
	})

	return nil
}

// handleReady reports whether the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("readiness check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Close releases the database. Start calls it on the way out.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the database (flushes WAL, releases the file lock)
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Content generation calls out to the generator once per chapter.
		WriteTimeout: 2 * collaboratorTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DBPath),
			slog.Bool("githubLogin", s.config.GitHubEnabled()),
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
