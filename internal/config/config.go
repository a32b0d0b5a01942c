// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Session  SessionConfig
	Map      MapConfig
	Render   RenderConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds CSV upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`
}

// SessionConfig holds per-browser session settings.
type SessionConfig struct {
	// Backend selects the session store: memory or valkey (default: memory)
	Backend string `env:"SESSION_BACKEND" default:"memory"`

	// TTL is how long an idle session is kept (default: 24h)
	TTL time.Duration `env:"SESSION_TTL" default:"24h"`

	// ValkeyAddr is the Valkey/Redis address used when Backend is valkey
	ValkeyAddr string `env:"SESSION_VALKEY_ADDR" envAlt:"VALKEY_ADDR"`

	// CookieName is the name of the session cookie (default: soilmap_session)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"soilmap_session"`

	// CookieSecure marks the session cookie Secure (default: false)
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" default:"false"`
}

// MapConfig holds settings for the interactive map view.
type MapConfig struct {
	// Width is the map view width in pixels (default: 700)
	Width int `env:"MAP_WIDTH" default:"700"`

	// Height is the map view height in pixels (default: 500)
	Height int `env:"MAP_HEIGHT" default:"500"`

	// TileURL is the Leaflet tile layer URL template
	TileURL string `env:"MAP_TILE_URL" default:"https://tile.openstreetmap.org/{z}/{x}/{y}.png"`

	// Attribution is shown in the corner of the map view
	Attribution string `env:"MAP_ATTRIBUTION" default:"&copy; OpenStreetMap contributors"`

	// LeafletJS and LeafletCSS are the Leaflet asset URLs
	LeafletJS  string `env:"MAP_LEAFLET_JS" default:"https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"`
	LeafletCSS string `env:"MAP_LEAFLET_CSS" default:"https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"`
}

// RenderConfig holds raster export settings.
type RenderConfig struct {
	// Backend selects the rasterizer: software or browser (default: software)
	Backend string `env:"RENDER_BACKEND" default:"software"`

	// ChromeBin is the Chrome/Chromium binary for the browser backend.
	// Empty lets the launcher find or download one.
	ChromeBin string `env:"RENDER_CHROME_BIN"`

	// Timeout bounds a single rasterization (default: 30s)
	Timeout time.Duration `env:"RENDER_TIMEOUT" default:"30s"`

	// MaxConcurrent is the maximum number of parallel rasterizations (default: 2)
	MaxConcurrent int `env:"RENDER_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for a render slot (default: 10s)
	MaxWaitTime time.Duration `env:"RENDER_MAX_WAIT_TIME" default:"10s"`

	// JPEGQuality is the encoder quality for JPG exports (default: 75)
	JPEGQuality int `env:"RENDER_JPEG_QUALITY" default:"75"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects the /api routes with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// AllowedOrigins is a comma-separated list of CORS origins for /api
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is where metrics are served (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
