package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/SoilMap/internal/config"
	"github.com/JonMunkholm/SoilMap/internal/logging"
)

// HeaderAPIKey carries the key checked by APIKeyAuth.
const HeaderAPIKey = "X-API-Key"

type authError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// APIKeyAuth returns middleware that validates the X-API-Key header against
// the configured keys. If RequireAPIKey is false, all requests pass through.
// If RequireAPIKey is true but no keys are configured, all requests are rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context())

			apiKey := r.Header.Get(HeaderAPIKey)
			if apiKey == "" {
				logger.Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				rejectAuth(w, http.StatusUnauthorized, "missing API key")
				return
			}

			if !isValidAPIKey([]byte(apiKey), keys) {
				logger.Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				rejectAuth(w, http.StatusForbidden, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectAuth(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authError{
		Error:   msg,
		Message: "Missing or invalid API key",
		Code:    "AUTH001",
	})
}

// isValidAPIKey checks key against every configured key in constant time,
// so the timing does not reveal which key (if any) matched.
func isValidAPIKey(key []byte, validKeys [][]byte) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare(key, validKey)
	}
	return valid == 1
}
