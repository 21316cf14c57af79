package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hrdesk/internal/session"
)

// defaultQuietPrefixes are polled by probes, scrapers and the browser often
// enough that a successful hit is only worth a debug line.
var defaultQuietPrefixes = []string{"/health", "/metrics", "/static/"}

// Logger is LoggerWithQuietPaths with the health, metrics and static paths
// kept quiet.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return LoggerWithQuietPaths(logger, defaultQuietPrefixes...)
}

// LoggerWithQuietPaths returns a gin middleware that logs each request after
// it completes: method, path, matched route, status, latency and client IP,
// plus the entity, the acting operator and whether htmx issued the request.
//
// 5xx responses log at Error and 4xx at Warn. Other responses log at Info,
// except paths starting with one of quiet, which drop to Debug.
//
// Records go through the Context variants so the request_id attached by
// RequestID rides along.
func LoggerWithQuietPaths(logger *slog.Logger, quiet ...string) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if route := c.FullPath(); route != "" {
			attrs = append(attrs, slog.String("route", route))
		}
		if entity := c.Param("entity"); entity != "" {
			attrs = append(attrs, slog.String("entity", entity))
		}
		if s, ok := session.FromContext(c.Request.Context()); ok && s.UserID != "" {
			attrs = append(attrs, slog.String("actor", s.UserID))
		}
		if IsHTMX(c) {
			attrs = append(attrs, slog.Bool("htmx", true))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case hasAnyPrefix(path, quiet):
			level = slog.LevelDebug
		}
		logger.LogAttrs(c.Request.Context(), level, "request", attrs...)
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
