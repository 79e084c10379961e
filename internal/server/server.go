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

	"github.com/fincast/fincast/internal/modules/forecast"
	"github.com/fincast/fincast/internal/modules/ledger"
	"github.com/fincast/fincast/internal/modules/recommendations"
	"github.com/fincast/fincast/internal/modules/risk"
)

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	DevMode bool

	Ledger          *ledger.Handler
	Forecast        *forecast.Handler
	Risk            *risk.Handler
	Recommendations *recommendations.Handler
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	port   int
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		port:   cfg.Port,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
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
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/transactions", cfg.Ledger.HandleGetTransactions)
			r.Post("/transactions", cfg.Ledger.HandleImportTransactions)
			r.Post("/planned", cfg.Ledger.HandleImportPlanned)
			r.Post("/arap", cfg.Ledger.HandleImportARAP)
			r.Post("/sales", cfg.Ledger.HandleImportSales)
			r.Get("/summary", cfg.Ledger.HandleGetSummary)
		})

		r.Route("/forecast", func(r chi.Router) {
			r.Get("/cashflow", cfg.Forecast.HandleGetForecast)
		})

		r.Route("/risks", func(r chi.Router) {
			r.Get("/score", cfg.Risk.HandleGetScore)
		})

		r.Get("/recommendations", cfg.Recommendations.HandleGetRecommendations)
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

// loggingMiddleware logs HTTP requests
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
