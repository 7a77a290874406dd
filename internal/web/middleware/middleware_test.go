package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/hrimport/internal/config"
	"github.com/JonMunkholm/hrimport/internal/core"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		header     map[string]string
		want       string
	}{
		{
			name:       "trusted proxy real ip",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5555",
			header:     map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "trusted single address forwarded-for",
			trusted:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:4000",
			header:     map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"},
			want:       "198.51.100.7",
		},
		{
			name:       "untrusted source keeps remote addr",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "192.0.2.1:1234",
			header:     map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "192.0.2.1:1234",
		},
		{
			name:       "garbage header ignored",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.5:80",
			header:     map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "10.0.0.5:80",
		},
		{
			name:       "invalid trusted entry skipped",
			trusted:    []string{"bogus", ""},
			remoteAddr: "10.0.0.5:80",
			header:     map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "10.0.0.5:80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{
		RequireAPIKey: true,
		APIKeys:       []string{"hr-office:alpha-secret", "beta-secret"},
	}

	tests := []struct {
		name      string
		key       string
		wantCode  int
		wantActor string
	}{
		{"named key", "alpha-secret", http.StatusOK, "hr-office"},
		{"bare key", "beta-secret", http.StatusOK, "api-key-2"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong", "gamma", http.StatusForbidden, ""},
		{"name is not a key", "hr-office", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var actor string
			h := APIKeyAuth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				actor = core.ActorFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantActor, actor)
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	called := false
	h := APIKeyAuth(&config.SecurityConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogger_CapturesStatusAndActor(t *testing.T) {
	var sink *responseWriter
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sink = w.(*responseWriter)
		recordActor(r.Context(), "hr-office")
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	Logger(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, http.StatusTeapot, sink.status)
	assert.Equal(t, "hr-office", sink.actor)
}
