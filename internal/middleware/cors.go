package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds the configuration for the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists the origins allowed to call cross-origin. ["*"]
	// allows any origin; an empty list allows none.
	AllowOrigins []string

	AllowMethods []string
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts on another origin may
	// read. htmx needs its HX-* headers here to apply toasts and swaps.
	ExposeHeaders []string

	AllowCredentials bool

	// MaxAge is how long browsers may cache a preflight answer.
	MaxAge time.Duration
}

// DefaultCORSConfig returns a permissive configuration for development that
// still lets an htmx page on another origin drive the dashboard.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With",
			csrfHeaderName, "HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger",
			actorIDHeader, requestIDHeader,
		},
		ExposeHeaders: []string{requestIDHeader, "HX-Trigger", "HX-Reswap", "Retry-After"},
		MaxAge:        24 * time.Hour,
	}
}

// CORS returns the middleware with DefaultCORSConfig.
func CORS() gin.HandlerFunc {
	return CORSWithConfig(DefaultCORSConfig())
}

// CORSWithConfig returns a middleware answering preflight requests and
// tagging cross-origin responses according to cfg. Requests from origins
// outside the allowlist pass through without CORS headers, so the browser
// blocks them.
func CORSWithConfig(cfg CORSConfig) gin.HandlerFunc {
	wildcard := slices.Contains(cfg.AllowOrigins, "*")
	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(int(cfg.MaxAge / time.Second))
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Writer.Header().Add("Vary", "Origin")

		switch {
		case wildcard && !cfg.AllowCredentials:
			c.Header("Access-Control-Allow-Origin", "*")
		case wildcard || slices.Contains(cfg.AllowOrigins, origin):
			// Credentialed responses must name the origin.
			c.Header("Access-Control-Allow-Origin", origin)
		default:
			c.Next()
			return
		}
		if cfg.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			if maxAge != "" {
				c.Header("Access-Control-Max-Age", maxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if exposeHeaders != "" {
			c.Header("Access-Control-Expose-Headers", exposeHeaders)
		}
		c.Next()
	}
}
