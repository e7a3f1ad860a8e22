// Package web provides the HTTP server and handlers for the vendor rates UI.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/app"
	"github.com/JonMunkholm/vendorrates/internal/config"
	"github.com/JonMunkholm/vendorrates/internal/metrics"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/JonMunkholm/vendorrates/internal/upload"
	mw "github.com/JonMunkholm/vendorrates/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators a Server needs. Metrics and Gatherer may be
// nil; Logger defaults to slog.Default.
type Deps struct {
	Config   config.Config
	Sessions *app.Sessions
	Cache    *rates.Cache
	Store    Pinger
	Limiter  *upload.Limiter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server is the HTTP server for the vendor rates application.
type Server struct {
	cfg      config.Config
	sessions *app.Sessions
	cache    *rates.Cache
	store    Pinger
	limiter  *upload.Limiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	router        *chi.Mux
	server        *http.Server
	rateLimiter   *mw.RateLimiter
	uploadLimiter *mw.RateLimiter

	// pingInterval is how often idle event streams send a keep-alive.
	pingInterval time.Duration

	// closing is closed on Shutdown so event streams end and let it finish.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a Server and registers its routes.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{
		cfg:          d.Config,
		sessions:     d.Sessions,
		cache:        d.Cache,
		store:        d.Store,
		limiter:      d.Limiter,
		metrics:      d.Metrics,
		gatherer:     d.Gatherer,
		logger:       d.Logger,
		router:       chi.NewRouter(),
		pingInterval: 25 * time.Second,
		closing:      make(chan struct{}),
	}
	if s.cfg.Rate.Enabled {
		s.rateLimiter = mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute)
		s.uploadLimiter = mw.NewRateLimiter(s.cfg.Rate.UploadLimit)
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps event streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	s.server.RegisterOnShutdown(func() {
		s.closeOnce.Do(func() { close(s.closing) })
	})
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger(s.metrics))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5, "text/html", "text/css", "text/csv", "application/json"))
	s.router.Use(securityHeaders)

	if s.rateLimiter != nil {
		s.router.Use(s.rateLimiter.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/vendors", http.StatusSeeOther)
	})

	s.router.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Operator pages, one state per session cookie.
	s.router.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", s.handleVendors)
			r.Get("/table", s.handleLive)
			r.Get("/events", s.handleEvents)
			r.Post("/select/{vendor}", s.handleSelectVendor)
			r.Post("/page/next", s.handleNextPage)
			r.Post("/page/prev", s.handlePreviousPage)
		})

		r.Route("/upload", func(r chi.Router) {
			if s.uploadLimiter != nil {
				r.Use(s.uploadLimiter.Handler)
			}
			r.Post("/open", s.handleOpenUpload)
			r.Post("/close", s.handleCloseUpload)
			r.Post("/file", s.handleUploadFile)
			r.Post("/submit", s.handleSubmit)
		})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/vendors", s.handleListVendors)
		r.Get("/vendors/{vendor}", s.handleVendorPage)
		r.Get("/vendors/{vendor}/csv", s.handleVendorCSV)
	})
}

// Start begins listening for HTTP requests. It returns nil after Shutdown,
// including a Shutdown that happened before Start.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// RunMaintenance expires idle rate limiter entries until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, rl := range []*mw.RateLimiter{s.rateLimiter, s.uploadLimiter} {
		if rl != nil {
			g.Go(func() error { return rl.Run(ctx) })
		}
	}
	return g.Wait()
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		// htmx is loaded from unpkg; the live refresh script is inline.
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Encoding errors are only logged since headers are already sent.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("json encode error", "error", err)
	}
}
