package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hrdesk/internal/pkg"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newErrorContext(method, target string, headers map[string]string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c, w
}

func TestAcceptsHTML(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		want   bool
	}{
		{"text/html", "text/html", true},
		{"text/html with charset", "text/html; charset=utf-8", true},
		{"mixed with html", "application/json, text/html", true},
		{"application/json only", "application/json", false},
		{"empty accept", "", true},
		{"wildcard accept", "*/*", true},
		{"case insensitive", "Text/HTML", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newErrorContext(http.MethodGet, "/", map[string]string{"Accept": tt.accept})
			if got := acceptsHTML(c); got != tt.want {
				t.Fatalf("acceptsHTML() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderError_JSON(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		accept  string
		code    int
		message string
	}{
		{"api path", "/api/roles/list", "text/html", 404, "not found"},
		{"json accept", "/roles", "application/json", 400, "bad request"},
		{"json with wildcard", "/roles", "application/json, */*", 500, "internal server error"},
		{"rate limited", "/roles", "application/json", 429, "too many requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newErrorContext(http.MethodGet, tt.target, map[string]string{"Accept": tt.accept})

			renderError(c, tt.code, tt.message)

			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			var resp pkg.Response
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("json decode error: %v", err)
			}
			if resp.Code != tt.code || resp.Message != tt.message || resp.Data != nil {
				t.Fatalf("resp = %+v", resp)
			}
		})
	}
}

func TestRenderError_HTML_FallsBackToPlainText(t *testing.T) {
	// No renderer is configured, so c.HTML panics and the plain text fallback runs.
	tests := []struct {
		code     int
		wantBody string
	}{
		{500, "500 Internal Server Error"},
		{400, "400 Bad Request"},
		{404, "404 Not Found"},
		{429, "429 Too Many Requests"},
	}

	for _, tt := range tests {
		t.Run(tt.wantBody, func(t *testing.T) {
			c, w := newErrorContext(http.MethodGet, "/roles", map[string]string{"Accept": "text/html"})

			renderError(c, tt.code, "ignored for html")

			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if w.Body.String() != tt.wantBody {
				t.Fatalf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
				t.Fatalf("Content-Type = %q", ct)
			}
		})
	}
}

func TestRenderError_HTMX(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
		want    string
	}{
		{"not found", 404, "not found", "That page no longer exists"},
		{"message kept", 400, "bad filter", "bad filter"},
		{"status text fallback", 503, "", "Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newErrorContext(http.MethodGet, "/roles/rows", map[string]string{
				"HX-Request": "true",
				"Accept":     "text/html",
			})

			renderError(c, tt.code, tt.message)

			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if w.Header().Get("HX-Reswap") != "none" {
				t.Errorf("HX-Reswap = %q", w.Header().Get("HX-Reswap"))
			}
			var trigger map[string]map[string]string
			if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &trigger); err != nil {
				t.Fatalf("HX-Trigger is not JSON: %v", err)
			}
			if got := trigger["showToast"]["message"]; got != tt.want {
				t.Errorf("toast message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorTemplates(t *testing.T) {
	expected := map[int]string{
		400: "errors/400.html",
		404: "errors/404.html",
		500: "errors/500.html",
	}
	for code, tmpl := range expected {
		if got := errorTemplates[code]; got != tmpl {
			t.Fatalf("errorTemplates[%d] = %q, want %q", code, got, tmpl)
		}
	}
}
