// Package web provides the HTTP server and handlers for the soil map UI and
// its JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/JonMunkholm/SoilMap/internal/config"
	"github.com/JonMunkholm/SoilMap/internal/core"
	"github.com/JonMunkholm/SoilMap/internal/export"
	"github.com/JonMunkholm/SoilMap/internal/metrics"
	"github.com/JonMunkholm/SoilMap/internal/session"
	webmw "github.com/JonMunkholm/SoilMap/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

var errRateLimited = errors.New("rate limit exceeded")

// Server is the HTTP server for the soil map.
type Server struct {
	cfg        *config.Config
	store      session.Store
	exporter   *export.Exporter
	limiter    *core.RenderLimiter
	classifier core.Classifier

	router *chi.Mux
	server *http.Server
	rates  *rateLimiter
}

// NewServer creates a new Server. limiter is the one the exporter was built
// with; it is only read for health reporting and may be nil.
func NewServer(cfg *config.Config, store session.Store, exporter *export.Exporter, limiter *core.RenderLimiter) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		exporter:   exporter,
		limiter:    limiter,
		classifier: core.DefaultClassifier,
		router:     chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger("/healthz", s.cfg.Metrics.Path))
	s.router.Use(middleware.Recoverer)
	if s.cfg.Metrics.Enabled {
		s.router.Use(metrics.Middleware)
	}
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.rates = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.rates.middleware(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			s.respondError(w, r, errRateLimited, http.StatusTooManyRequests)
		}))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, metrics.Handler())
	}

	s.router.Group(func(r chi.Router) {
		r.Use(s.loadSession)

		// Page and form posts
		r.Get("/", s.handleIndex)
		r.Post("/upload/{dataset}", s.handleUpload)
		r.Post("/markers", s.handleAddMarker)
		r.Post("/export", s.handleExport)
		r.Post("/reset", s.handleReset)

		r.Route("/api", func(r chi.Router) {
			if len(s.cfg.Security.AllowedOrigins) > 0 {
				r.Use(cors.New(cors.Options{
					AllowedOrigins:   s.cfg.Security.AllowedOrigins,
					AllowedMethods:   []string{http.MethodGet, http.MethodPost},
					AllowedHeaders:   []string{"Content-Type", webmw.HeaderAPIKey},
					AllowCredentials: true,
				}).Handler)
			}
			r.Use(webmw.APIKeyAuth(&s.cfg.Security))

			r.Get("/map", s.handleMapJSON)
			r.Get("/map.geojson", s.handleMapGeoJSON)
			r.Get("/legend", s.handleLegend)
			r.Get("/export", s.handleAPIExport)

			r.Post("/upload/{dataset}", s.handleAPIUpload)
			r.Post("/markers", s.handleAPIAddMarker)
			r.Post("/reset", s.handleAPIReset)
		})
	})
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	cfg := s.cfg.Server
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	slog.Info("starting server", "addr", cfg.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rates != nil {
		s.rates.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	csp := contentSecurityPolicy(s.cfg.Map)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", csp)
		}
		next.ServeHTTP(w, r)
	})
}

// contentSecurityPolicy allows Leaflet from its CDN and tiles from the tile
// server. Inline styles are needed for the map container and Leaflet panes.
func contentSecurityPolicy(m config.MapConfig) string {
	return strings.Join([]string{
		"default-src 'self'",
		join("script-src 'self'", origin(m.LeafletJS)),
		join("style-src 'self' 'unsafe-inline'", origin(m.LeafletCSS)),
		join("img-src 'self' data:", origin(strings.ReplaceAll(m.TileURL, "{s}", "*"))),
		"font-src 'self'",
		"object-src 'none'",
		"frame-ancestors 'none'",
	}, "; ")
}

// origin returns scheme://host of a URL or URL template.
func origin(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" || rest == "" {
		return ""
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}

func join(directive, source string) string {
	if source == "" {
		return directive
	}
	return directive + " " + source
}

// rateLimiter implements a simple token bucket rate limiter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window
// and starts its cleanup goroutine.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries once per window.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *rateLimiter) prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for ip, v := range rl.visitors {
		if rl.now().Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by client IP and calls reject when over the limit.
func (rl *rateLimiter) middleware(reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(webmw.ClientIP(r)) {
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
