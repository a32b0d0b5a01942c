package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with a custom variable lookup.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}

	l := loader{lookup: lookup}
	l.fill(reflect.ValueOf(cfg).Elem())
	if len(l.errs) > 0 {
		return nil, fmt.Errorf("config load: %w", errors.Join(l.errs...))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// loader fills tagged struct fields and collects every bad variable, so a
// misconfigured deployment reports all of them at once.
type loader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (l *loader) get(name string) string {
	if name == "" {
		return ""
	}
	v, _ := l.lookup(name)
	return strings.TrimSpace(v)
}

// fill walks v's fields, recursing into nested sections.
func (l *loader) fill(v reflect.Value) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			l.fill(fv)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		value := l.get(name)
		if value == "" {
			value = l.get(field.Tag.Get("envAlt"))
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				l.errs = append(l.errs, fmt.Errorf("required environment variable %s is not set", name))
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := set(fv, value); err != nil {
			l.errs = append(l.errs, fmt.Errorf("invalid value for %s=%q: %w", name, value, err))
		}
	}
}

// set parses value into fv according to its type.
func set(fv reflect.Value, value string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		fv.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		fv.SetBool(b)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", fv.Type().Elem().Kind())
		}
		fv.Set(reflect.ValueOf(splitList(value)))
	default:
		return fmt.Errorf("unsupported field type: %s", fv.Kind())
	}
	return nil
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}

	// Session validation
	switch strings.ToLower(c.Session.Backend) {
	case "memory":
	case "valkey":
		if c.Session.ValkeyAddr == "" {
			errs = append(errs, "SESSION_VALKEY_ADDR is required when SESSION_BACKEND is valkey")
		}
	default:
		errs = append(errs, fmt.Sprintf("SESSION_BACKEND (%q) must be one of: memory, valkey", c.Session.Backend))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}
	if c.Session.CookieName == "" {
		errs = append(errs, "SESSION_COOKIE_NAME must not be empty")
	}

	// Map validation
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		errs = append(errs, fmt.Sprintf("MAP_WIDTH and MAP_HEIGHT (%dx%d) must be positive", c.Map.Width, c.Map.Height))
	}

	// Render validation
	validBackends := map[string]bool{"software": true, "browser": true}
	if !validBackends[strings.ToLower(c.Render.Backend)] {
		errs = append(errs, fmt.Sprintf("RENDER_BACKEND (%q) must be one of: software, browser", c.Render.Backend))
	}
	if c.Render.Timeout <= 0 {
		errs = append(errs, "RENDER_TIMEOUT must be positive")
	}
	if c.Render.MaxConcurrent <= 0 {
		errs = append(errs, "RENDER_MAX_CONCURRENT must be positive")
	}
	if c.Render.MaxWaitTime <= 0 {
		errs = append(errs, "RENDER_MAX_WAIT_TIME must be positive")
	}
	if c.Render.JPEGQuality < 1 || c.Render.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("RENDER_JPEG_QUALITY (%d) must be 1-100", c.Render.JPEGQuality))
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("METRICS_PATH (%q) must start with /", c.Metrics.Path))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like API keys and the Valkey address are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Upload: {MaxFileSize: %d}, ", c.Upload.MaxFileSize))
	valkey := ""
	if c.Session.ValkeyAddr != "" {
		valkey = "[MASKED]"
	}
	b.WriteString(fmt.Sprintf("Session: {Backend: %q, TTL: %s, ValkeyAddr: %q}, ", c.Session.Backend, c.Session.TTL, valkey))
	b.WriteString(fmt.Sprintf("Map: {Width: %d, Height: %d}, ", c.Map.Width, c.Map.Height))
	b.WriteString(fmt.Sprintf("Render: {Backend: %q, MaxConcurrent: %d, Timeout: %s}, ",
		c.Render.Backend, c.Render.MaxConcurrent, c.Render.Timeout))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: [MASKED x%d]}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
