package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simp-lee/hrdesk/internal/middleware"
	"github.com/simp-lee/hrdesk/web"
)

// RouteDeps holds all dependencies needed to register routes.
type RouteDeps struct {
	Modules    []Module
	DB         *gorm.DB
	Mode       string // "debug" or "release"
	CSRFSecret string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// PageMiddleware runs on dashboard routes after CSRF.
	PageMiddleware []gin.HandlerFunc
}

// RegisterRoutes registers all application routes on the given gin.Engine.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	if r == nil {
		return errors.New("router is nil")
	}
	if deps == nil {
		return errors.New("route dependencies are nil")
	}
	if len(deps.Modules) == 0 {
		return errors.New("at least one module is required")
	}
	if strings.TrimSpace(deps.CSRFSecret) == "" {
		return errors.New("csrf secret is required")
	}

	if err := registerStaticRoutes(r, deps.Mode); err != nil {
		return fmt.Errorf("register static routes: %w", err)
	}

	r.GET("/health", healthHandler(deps.DB))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// API routes: bearer or actor header, no CSRF.
	api := r.Group("/api")

	// Dashboard routes: CSRF on every mutation.
	pages := r.Group("/")
	pages.Use(middleware.CSRF(deps.CSRFSecret))
	pages.Use(deps.PageMiddleware...)

	seen := make(map[string]struct{}, len(deps.Modules))
	for i, m := range deps.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
		name := m.Name()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("module %q registered twice", name)
		}
		seen[name] = struct{}{}
		m.RegisterRoutes(api, pages)
	}

	r.NoRoute(noRouteHandler())

	return nil
}

// healthHandler reports whether the database answers a ping within a second.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code, dbStatus := "ok", http.StatusOK, "ok"
		if err := pingDatabase(c.Request.Context(), db); err != nil {
			status, code, dbStatus = "degraded", http.StatusServiceUnavailable, "error"
		}
		c.JSON(code, gin.H{
			"status":     status,
			"components": gin.H{"database": dbStatus},
		})
	}
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database not configured")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// noRouteHandler answers unmatched paths through renderError.
func noRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		renderError(c, http.StatusNotFound, "not found")
	}
}

// registerStaticRoutes serves /static from web/static on disk in debug mode,
// so asset edits show up without a rebuild, and from the embedded copy with
// a one day Cache-Control otherwise.
func registerStaticRoutes(r *gin.Engine, mode string) error {
	assets, cacheControl := fs.FS(nil), ""
	if mode == "debug" {
		dir, err := sourceStaticDir()
		if err != nil {
			return fmt.Errorf("resolve debug static directory: %w", err)
		}
		assets = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(web.EmbeddedFS, "static")
		if err != nil {
			return fmt.Errorf("open embedded static assets: %w", err)
		}
		assets, cacheControl = sub, "public, max-age=86400"
	}

	fileServer := http.StripPrefix("/static", http.FileServer(http.FS(assets)))
	r.GET("/static/*filepath", func(c *gin.Context) {
		if cacheControl != "" {
			c.Header("Cache-Control", cacheControl)
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	})
	return nil
}

// sourceStaticDir locates web/static relative to this source file.
func sourceStaticDir() (string, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("resolve current file path")
	}
	dir := filepath.Join(filepath.Dir(currentFile), "..", "..", "web", "static")
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("stat static directory %q: %w", dir, err)
	}
	return filepath.Clean(dir), nil
}
