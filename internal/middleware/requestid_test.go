package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"
)

func setupRequestIDRouter(cfg RequestIDConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDWithConfig(cfg))
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	r.GET("/ctx", func(c *gin.Context) {
		c.String(http.StatusOK, findAttrValue(logger.FromContext(c.Request.Context()), "request_id"))
	})
	return r
}

func findAttrValue(attrs []slog.Attr, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value.String()
		}
	}
	return ""
}

func requestWithID(r http.Handler, path, remoteAddr, upstream string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	if upstream != "" {
		req.Header.Set("X-Request-ID", upstream)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesUUID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := requestWithID(r, "/test", "", "")
	body := w.Body.String()
	if _, err := uuid.Parse(body); err != nil {
		t.Fatalf("expected a UUID request id, got %q: %v", body, err)
	}
	if got := w.Header().Get("X-Request-ID"); got != body {
		t.Errorf("response header = %q, want %q", got, body)
	}
	if !isValidRequestID(body) {
		t.Errorf("generated id %q should pass validation", body)
	}
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	r := setupRequestIDRouter(RequestIDConfig{})
	seen := make(map[string]bool)
	for range 20 {
		id := requestWithID(r, "/test", "", "").Body.String()
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}

func TestRequestID_StoredInGoContext(t *testing.T) {
	r := setupRequestIDRouter(RequestIDConfig{})

	w := requestWithID(r, "/ctx", "", "")
	if w.Body.String() == "" || w.Body.String() != w.Header().Get("X-Request-ID") {
		t.Errorf("context id %q does not match header %q", w.Body.String(), w.Header().Get("X-Request-ID"))
	}
}

func TestRequestID_UpstreamTrust(t *testing.T) {
	const upstream = "dash-7f3a"

	tests := []struct {
		name       string
		cfg        RequestIDConfig
		remoteAddr string
		upstream   string
		wantReuse  bool
	}{
		{"untrusted by default", RequestIDConfig{}, "127.0.0.1:4000", upstream, false},
		{"trust upstream from anywhere", RequestIDConfig{TrustUpstream: true}, "203.0.113.9:4000", upstream, true},
		{"loopback caller trusted", RequestIDConfig{TrustLoopback: true}, "127.0.0.1:4000", upstream, true},
		{"ipv6 loopback trusted", RequestIDConfig{TrustLoopback: true}, "[::1]:4000", upstream, true},
		{"remote caller not trusted", RequestIDConfig{TrustLoopback: true}, "203.0.113.9:4000", upstream, false},
		{"too long rejected", RequestIDConfig{TrustUpstream: true}, "", strings.Repeat("a", 65), false},
		{"bad charset rejected", RequestIDConfig{TrustUpstream: true}, "", "id with spaces", false},
		{"64 chars accepted", RequestIDConfig{TrustUpstream: true}, "", strings.Repeat("b", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := requestWithID(setupRequestIDRouter(tt.cfg), "/ctx", tt.remoteAddr, tt.upstream)
			got := w.Body.String()
			if tt.wantReuse && got != tt.upstream {
				t.Errorf("expected upstream id %q to be reused, got %q", tt.upstream, got)
			}
			if !tt.wantReuse {
				if got == tt.upstream {
					t.Errorf("upstream id %q should not be reused", tt.upstream)
				}
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("expected generated UUID, got %q", got)
				}
			}
		})
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	r := gin.New()
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "[%s]", GetRequestID(c))
	})

	w := requestWithID(r, "/test", "", "")
	if w.Body.String() != "[]" {
		t.Errorf("expected empty request id, got %q", w.Body.String())
	}
}
