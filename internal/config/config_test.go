package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Upload:  UploadConfig{MaxFileSize: 1},
		Session: SessionConfig{Backend: "memory", TTL: time.Hour, CookieName: "s"},
		Map:     MapConfig{Width: 700, Height: 500},
		Render:  RenderConfig{Backend: "software", Timeout: time.Second, MaxConcurrent: 1, MaxWaitTime: time.Second, JPEGQuality: 75},
		Rate:    RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Upload.MaxFileSize != 10485760 {
		t.Errorf("Upload.MaxFileSize = %d, want %d", cfg.Upload.MaxFileSize, 10485760)
	}
	if cfg.Map.Width != 700 || cfg.Map.Height != 500 {
		t.Errorf("Map = %dx%d, want 700x500", cfg.Map.Width, cfg.Map.Height)
	}
	if cfg.Render.Backend != "software" {
		t.Errorf("Render.Backend = %q, want %q", cfg.Render.Backend, "software")
	}
	if cfg.Session.CookieName != "soilmap_session" {
		t.Errorf("Session.CookieName = %q, want %q", cfg.Session.CookieName, "soilmap_session")
	}
	if cfg.Rate.RequestsPerMinute != 100 {
		t.Errorf("Rate.RequestsPerMinute = %d, want %d", cfg.Rate.RequestsPerMinute, 100)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RENDER_MAX_CONCURRENT", "4")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Render.MaxConcurrent != 4 {
		t.Errorf("Render.MaxConcurrent = %d, want %d", cfg.Render.MaxConcurrent, 4)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "valkey")
	t.Setenv("VALKEY_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Session.ValkeyAddr != "localhost:6379" {
		t.Errorf("Session.ValkeyAddr = %q, want %q", cfg.Session.ValkeyAddr, "localhost:6379")
	}
}

func TestLoad_ValkeyWithoutAddr(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "valkey")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for valkey backend without address")
	}
	if !strings.Contains(err.Error(), "SESSION_VALKEY_ADDR") {
		t.Errorf("error should mention SESSION_VALKEY_ADDR: %v", err)
	}
}

func TestLoad_Duration(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("RENDER_MAX_WAIT_TIME", "1m30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Render.MaxWaitTime != 90*time.Second {
		t.Errorf("Render.MaxWaitTime = %v, want %v", cfg.Render.MaxWaitTime, 90*time.Second)
	}
}

func TestLoad_InvalidInteger(t *testing.T) {
	t.Setenv("MAP_WIDTH", "wide")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for non-integer MAP_WIDTH")
	}
}

func TestLoadFrom_ReportsEveryBadVariable(t *testing.T) {
	env := map[string]string{
		"MAP_WIDTH":           "wide",
		"SERVER_READ_TIMEOUT": "soon",
		"SECURITY_ENABLE_CSP": "maybe",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	_, err := LoadFrom(lookup)
	if err == nil {
		t.Fatal("LoadFrom() expected error")
	}
	for name := range env {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestLoadFrom_Empty(t *testing.T) {
	cfg, err := LoadFrom(func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Session.CookieName != "soilmap_session" {
		t.Errorf("Session.CookieName = %q, want soilmap_session", cfg.Session.CookieName)
	}
	if cfg.Security.APIKeys != nil {
		t.Errorf("Security.APIKeys = %v, want nil", cfg.Security.APIKeys)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if len(cfg.Security.TrustedProxies) != len(expected) {
		t.Fatalf("TrustedProxies length = %d, want %d", len(cfg.Security.TrustedProxies), len(expected))
	}
	for i, v := range expected {
		if cfg.Security.TrustedProxies[i] != v {
			t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.Security.TrustedProxies[i], v)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"invalid render backend", func(c *Config) { c.Render.Backend = "gpu" }, "RENDER_BACKEND"},
		{"jpeg quality", func(c *Config) { c.Render.JPEGQuality = 0 }, "RENDER_JPEG_QUALITY"},
		{"map size", func(c *Config) { c.Map.Height = 0 }, "MAP_WIDTH"},
		{"session backend", func(c *Config) { c.Session.Backend = "disk" }, "SESSION_BACKEND"},
		{"api key without keys", func(c *Config) { c.Security.RequireAPIKey = true }, "API_KEYS"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "METRICS_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %s: %v", tt.wantErr, err)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		if got := cfg.Addr(); got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Session.ValkeyAddr = "secret-host:6379"
	cfg.Security.APIKeys = []string{"topsecret"}

	str := cfg.String()
	if strings.Contains(str, "secret-host") || strings.Contains(str, "topsecret") {
		t.Error("String() should mask secrets")
	}
	if !strings.Contains(str, "MASKED") {
		t.Error("String() should contain MASKED placeholder")
	}
}
