// Package server provides the HTTP server and routing for the IPO tracker.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/ipotracker/internal/di"
	accountshandlers "github.com/aristath/ipotracker/internal/modules/accounts/handlers"
	feeshandlers "github.com/aristath/ipotracker/internal/modules/fees/handlers"
	ledgerhandlers "github.com/aristath/ipotracker/internal/modules/ledger/handlers"
	positionshandlers "github.com/aristath/ipotracker/internal/modules/positions/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Container *di.Container
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	port      int
	container *di.Container
	system    *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
		container: cfg.Container,
		system: NewSystemHandlers(
			cfg.Container.LedgerDB,
			cfg.Container.Scheduler,
			cfg.Container.BackupService,
			cfg.Log,
		),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler (tests)
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		accountshandlers.NewHandler(s.container.AccountService, s.log).RegisterRoutes(r)
		ledgerhandlers.NewHandler(s.container.LedgerService, s.log).RegisterRoutes(r)
		positionshandlers.NewHandler(s.container.PositionService, s.log).RegisterRoutes(r)
		feeshandlers.NewHandler(s.container.FeeCalculator, s.log).RegisterRoutes(r)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.system.HandleSystemStatus)

			r.Get("/jobs", s.system.HandleListJobs)
			r.Post("/jobs/{name}", s.system.HandleTriggerJob)

			r.Route("/backups", func(r chi.Router) {
				r.Get("/", s.system.HandleListBackups)
				r.Post("/", s.system.HandleCreateBackup)
				r.Post("/restore", s.system.HandleRestoreBackup)
				r.Post("/rotate", s.system.HandleRotateBackups)
			})

			r.Get("/export", s.system.HandleExport)
			r.Post("/import", s.system.HandleImport)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
