package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func setupTimeoutRouter(d time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(Timeout(d))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); !ok {
			c.String(http.StatusOK, "no deadline")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestTimeout_SlowHandler_Returns408(t *testing.T) {
	r := setupTimeoutRouter(10 * time.Millisecond)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("expected 408, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["message"] != "request timeout" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestTimeout_SlowHTMXHandler_TriggersToast(t *testing.T) {
	r := setupTimeoutRouter(10 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	req.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("expected 408, got %d", w.Code)
	}
	if w.Header().Get("HX-Trigger") == "" {
		t.Error("expected HX-Trigger toast header")
	}
}

func TestTimeout_FastHandler_CarriesDeadline(t *testing.T) {
	r := setupTimeoutRouter(time.Second)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestTimeout_Disabled(t *testing.T) {
	r := setupTimeoutRouter(0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))

	if w.Body.String() != "no deadline" {
		t.Fatalf("body = %q, want no deadline", w.Body.String())
	}
}
