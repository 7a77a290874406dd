package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/hrimport/internal/config"
	"github.com/JonMunkholm/hrimport/internal/core"
)

// APIKeyAuth validates X-API-Key against the configured keys and records
// the matching key's name as the audit actor.
//
// A key is configured either bare ("s3cret") or named ("hr-office:s3cret").
// Bare keys are named "api-key-N" by position. If RequireAPIKey is false
// every request passes with no actor.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := parseKeys(cfg.APIKeys)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			name, ok := matchKey(apiKey, keys)
			if !ok {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			recordActor(r.Context(), name)
			next.ServeHTTP(w, r.WithContext(core.ContextWithActor(r.Context(), name)))
		})
	}
}

type namedKey struct {
	name   string
	secret []byte
}

func parseKeys(raw []string) []namedKey {
	out := make([]namedKey, 0, len(raw))
	for i, k := range raw {
		name, secret, ok := strings.Cut(k, ":")
		if !ok || name == "" {
			name, secret = "api-key-"+strconv.Itoa(i+1), k
		}
		out = append(out, namedKey{name: name, secret: []byte(secret)})
	}
	return out
}

// matchKey compares against every key in constant time so the response
// time does not reveal which key, if any, matched.
func matchKey(key string, keys []namedKey) (string, bool) {
	var name string
	matched := 0
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(key), k.secret) == 1 {
			name = k.name
			matched = 1
		}
	}
	return name, matched == 1
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
