package app

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/simp-lee/hrdesk/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- test helpers ---

// routeTestFS returns a minimal template filesystem for route handler tests.
func routeTestFS() fstest.MapFS {
	return fstest.MapFS{
		"templates/layouts/base.html": &fstest.MapFile{
			Data: []byte(`{{ define "base" }}{{ block "content" . }}{{ end }}{{ end }}`),
		},
		"templates/partials/nav.html": &fstest.MapFile{
			Data: []byte(`{{ define "nav" }}{{ end }}`),
		},
		"templates/dashboard/overview.html": &fstest.MapFile{
			Data: []byte(`{{ template "base" . }}{{ define "content" }}overview:{{ .CSRFToken }}{{ end }}`),
		},
		"templates/errors/404.html": &fstest.MapFile{
			Data: []byte(`{{ template "base" . }}{{ define "content" }}404{{ end }}`),
		},
		"templates/errors/500.html": &fstest.MapFile{
			Data: []byte(`{{ template "base" . }}{{ define "content" }}500{{ end }}`),
		},
	}
}

// setupTestRouter creates a gin.Engine with the route-test template renderer.
func setupTestRouter() *gin.Engine {
	r := gin.New()
	renderer, err := NewTemplateRenderer(routeTestFS(), true)
	if err != nil {
		panic("setup renderer: " + err.Error())
	}
	r.HTMLRender = renderer
	return r
}

// --- Health check ---

func TestHealthHandler_OK(t *testing.T) {
	r := gin.New()

	// Use a real SQLite in-memory DB for a passing ping.
	db := openTestSQLiteDB(t)

	r.GET("/health", healthHandler(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	comps, ok := body["components"].(map[string]any)
	if !ok {
		t.Fatal("missing components")
	}
	if comps["database"] != "ok" {
		t.Errorf("expected database ok, got %v", comps["database"])
	}
}

func TestHealthHandler_DBDown(t *testing.T) {
	r := gin.New()

	db := openTestSQLiteDB(t)
	// Close the underlying sql.DB so Ping fails.
	sqlDB, _ := db.DB()
	sqlDB.Close()

	r.GET("/health", healthHandler(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "degraded" {
		t.Errorf("expected status degraded, got %v", body["status"])
	}
	comps := body["components"].(map[string]any)
	if comps["database"] != "error" {
		t.Errorf("expected database error, got %v", comps["database"])
	}
}

func TestHealthHandler_UsesRequestContextTimeout(t *testing.T) {
	registerBlockingPingDriver()

	sqlDB, err := sql.Open(blockingPingDriverName, "")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}

	r := gin.New()
	r.GET("/health", healthHandler(db))

	reqCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	t.Cleanup(cancel)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(reqCtx)

	start := time.Now()
	r.ServeHTTP(w, req)
	elapsed := time.Since(start)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if elapsed > 300*time.Millisecond {
		t.Fatalf("expected health response to honor request context timeout, elapsed=%v", elapsed)
	}
}

// --- NoRoute handler ---

func TestNoRouteHandler(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		headers  map[string]string
		wantJSON bool
	}{
		{"json accept", "/nonexistent/x/y", map[string]string{"Accept": "application/json"}, true},
		{"json with wildcard", "/nonexistent/x/y", map[string]string{"Accept": "application/json, */*"}, true},
		{"api path with wildcard", "/api/roles/nope", map[string]string{"Accept": "*/*"}, true},
		{"browser", "/nonexistent/x/y", map[string]string{"Accept": "text/html"}, false},
		{"wildcard", "/nonexistent/x/y", map[string]string{"Accept": "*/*"}, false},
		{"exact api path is a page", "/api", map[string]string{"Accept": "*/*"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupTestRouter()
			r.NoRoute(noRouteHandler())

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", w.Code)
			}
			ct := w.Header().Get("Content-Type")
			if tt.wantJSON {
				var body map[string]any
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if body["message"] != "not found" {
					t.Errorf("expected message 'not found', got %v", body["message"])
				}
				if !strings.Contains(ct, "application/json") {
					t.Errorf("expected JSON Content-Type, got %q", ct)
				}
				return
			}
			if !strings.Contains(w.Body.String(), "404") || !strings.Contains(ct, "text/html") {
				t.Errorf("expected HTML 404 page, got %q (%s)", w.Body.String(), ct)
			}
		})
	}
}

func TestNoRouteHandler_HTMX(t *testing.T) {
	r := setupTestRouter()
	r.NoRoute(noRouteHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gone/x/y", nil)
	req.Header.Set("HX-Request", "true")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w.Body.Len() != 0 || w.Header().Get("HX-Reswap") != "none" {
		t.Errorf("expected empty no-swap response, got %q", w.Body.String())
	}
}

// --- Static routes ---

func TestRegisterStaticRoutes(t *testing.T) {
	for _, mode := range []string{gin.DebugMode, gin.ReleaseMode} {
		r := gin.New()
		if err := registerStaticRoutes(r, mode); err != nil {
			t.Fatalf("%s: registerStaticRoutes: %v", mode, err)
		}

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 for app.js, got %d", mode, w.Code)
		}
		if !strings.Contains(w.Body.String(), "showToast") {
			t.Errorf("%s: unexpected app.js body", mode)
		}
		cc := w.Header().Get("Cache-Control")
		if mode == gin.ReleaseMode && cc != "public, max-age=86400" {
			t.Errorf("release: Cache-Control = %q", cc)
		}
		if mode == gin.DebugMode && cc != "" {
			t.Errorf("debug: Cache-Control = %q, want none", cc)
		}
	}
}

func TestRegisterStaticRoutes_MissingAsset(t *testing.T) {
	r := gin.New()
	if err := registerStaticRoutes(r, gin.ReleaseMode); err != nil {
		t.Fatalf("registerStaticRoutes: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/missing.css", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSourceStaticDir(t *testing.T) {
	dir, err := sourceStaticDir()
	if err != nil {
		t.Fatalf("sourceStaticDir: %v", err)
	}
	if filepath.Base(dir) != "static" {
		t.Errorf("dir = %q", dir)
	}
}

// --- RegisterRoutes ---

// mockModule registers one API and one page route.
type mockModule struct {
	called bool
	name   string
}

func (m *mockModule) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	m.called = true
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "api") })
	pages.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "dashboard/overview.html", gin.H{"CSRFToken": middleware.GetCSRFToken(c)})
	})
	pages.POST("/submit", func(c *gin.Context) { c.String(http.StatusOK, "submitted") })
}

const testRouteSecret = "test-secret-32-chars-long-enough"

func TestRegisterRoutes_Validation(t *testing.T) {
	tests := []struct {
		name   string
		router *gin.Engine
		deps   *RouteDeps
		want   string
	}{
		{"nil router", nil, &RouteDeps{}, "router is nil"},
		{"nil deps", setupTestRouter(), nil, "route dependencies are nil"},
		{"no modules", setupTestRouter(), &RouteDeps{CSRFSecret: testRouteSecret}, "at least one module is required"},
		{"empty csrf", setupTestRouter(), &RouteDeps{Modules: []Module{&mockModule{}}}, "csrf secret is required"},
		{"nil module", setupTestRouter(), &RouteDeps{
			Modules:    []Module{&mockModule{}, nil},
			Mode:       gin.DebugMode,
			CSRFSecret: testRouteSecret,
		}, "module at index 1 is nil"},
		{"duplicate module", setupTestRouter(), &RouteDeps{
			Modules:    []Module{&mockModule{name: "records"}, &mockModule{name: "records"}},
			Mode:       gin.DebugMode,
			CSRFSecret: testRouteSecret,
		}, `module "records" registered twice`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RegisterRoutes(tt.router, tt.deps)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q error, got %v", tt.want, err)
			}
		})
	}
}

func TestRegisterRoutes_Groups(t *testing.T) {
	m := &mockModule{}
	var pageHits int
	r := setupTestRouter()
	err := RegisterRoutes(r, &RouteDeps{
		Modules:    []Module{m},
		DB:         openTestSQLiteDB(t),
		Mode:       gin.DebugMode,
		CSRFSecret: testRouteSecret,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("hrdesk_http_requests_total 1"))
		}),
		PageMiddleware: []gin.HandlerFunc{func(c *gin.Context) { pageHits++ }},
	})
	if err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	if !m.called {
		t.Fatal("expected module RegisterRoutes to be called")
	}

	// API routes live under /api and skip CSRF.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	if w.Code != http.StatusOK || w.Body.String() != "api" {
		t.Fatalf("GET /api/ping = %d %q", w.Code, w.Body.String())
	}

	// Pages get a CSRF token and run the page middleware.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "overview:") || w.Body.String() == "overview:" {
		t.Fatalf("GET / = %d %q", w.Code, w.Body.String())
	}
	if pageHits != 1 {
		t.Errorf("page middleware ran %d times, want 1", pageHits)
	}

	// Page mutations without a token are refused.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submit", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("POST /submit without token = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "hrdesk_http_requests_total") {
		t.Fatalf("GET /metrics = %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
}

// --- openTestSQLiteDB helper ---

func openTestSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db
}

const blockingPingDriverName = "hrdesk_blocking_ping"

var registerBlockingPingDriverOnce sync.Once

func registerBlockingPingDriver() {
	registerBlockingPingDriverOnce.Do(func() {
		sql.Register(blockingPingDriverName, blockingPingDriver{})
	})
}

type blockingPingDriver struct{}

func (blockingPingDriver) Open(string) (driver.Conn, error) {
	return blockingPingConn{}, nil
}

type blockingPingConn struct{}

func (blockingPingConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (blockingPingConn) Close() error                        { return nil }
func (blockingPingConn) Begin() (driver.Tx, error)           { return blockingPingTx{}, nil }

func (blockingPingConn) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type blockingPingTx struct{}

func (blockingPingTx) Commit() error   { return nil }
func (blockingPingTx) Rollback() error { return nil }
