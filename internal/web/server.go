// Package web provides the HTTP server and handlers for the data import,
// re-header and export pipeline.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/dataport/internal/config"
	"github.com/JonMunkholm/dataport/internal/core"
	webmw "github.com/JonMunkholm/dataport/internal/web/middleware"
)

// multipartOverhead is allowed on top of the file size for the other form
// fields and part headers.
const multipartOverhead = 1 << 20

// Server is the HTTP server for the data pipeline.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) (*Server, error) {
	creds, err := cfg.Security.Credentials()
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}

	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes(creds)
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(requestMetadata)
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(creds []config.Credential) {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(creds, s.cfg.Security.RequireAPIKey))

		r.Route("/data", func(r chi.Router) {
			// Stored files are visible to every authenticated user;
			// the service applies the per-file rules.
			r.Get("/files", s.handleListFiles)
			r.Get("/files/{id}/download", s.handleDownloadFile)
			r.Delete("/files/{id}", s.handleDeleteFile)

			r.Group(func(r chi.Router) {
				r.Use(webmw.RequireRole(core.RoleSuperAdmin))

				r.Get("/", s.handleIndex)
				r.Get("/view/{sessionKey}", s.handleView)
				r.Post("/reassign-headers", s.handleReassignHeaders)
				r.Post("/clear-session", s.handleClearSession)
				r.Get("/template", s.handleTemplate)

				r.Group(func(r chi.Router) {
					if s.cfg.Rate.Enabled {
						r.Use(s.newRateLimiter(s.cfg.Rate.UploadLimit).middleware)
					}
					r.Post("/process", s.handleProcess)
					r.Post("/export", s.handleExport)
				})
			})
		})
	})
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown, even when Shutdown ran first.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"jobs":   s.service.Limiter().Status(),
		"time":   time.Now().UTC(),
	})
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		}

		next.ServeHTTP(w, r)
	})
}
