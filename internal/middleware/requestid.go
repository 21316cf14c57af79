package middleware

import (
	"log/slog"
	"net"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "request_id"
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// RequestIDConfig controls when an incoming X-Request-ID is reused.
type RequestIDConfig struct {
	// TrustUpstream reuses a valid id from any caller, e.g. behind a proxy
	// that assigns them.
	TrustUpstream bool
	// TrustLoopback reuses a valid id only from loopback callers. With an
	// embedded backend the dashboard calls its own /api over loopback, and
	// this keeps both hops of one page action under the same id.
	TrustLoopback bool
}

// RequestID returns a gin middleware that assigns a fresh request ID to
// every request and never trusts the incoming header.
func RequestID() gin.HandlerFunc {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig returns a gin middleware that assigns request IDs.
//
// The ID is:
//   - stored in gin.Context under "request_id"
//   - echoed in the X-Request-ID response header
//   - attached to the Go context via logger.WithContextAttrs, where the
//     records client picks it up and forwards it to the backend
func RequestIDWithConfig(cfg RequestIDConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if upstream := c.GetHeader(requestIDHeader); isValidRequestID(upstream) && trusts(cfg, c) {
			id = upstream
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)

		ctx := logger.WithContextAttrs(c.Request.Context(), slog.String("request_id", id))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func trusts(cfg RequestIDConfig, c *gin.Context) bool {
	if cfg.TrustUpstream {
		return true
	}
	if !cfg.TrustLoopback {
		return false
	}
	ip := net.ParseIP(c.RemoteIP())
	return ip != nil && ip.IsLoopback()
}

func isValidRequestID(id string) bool {
	return requestIDPattern.MatchString(id)
}

// GetRequestID returns the request ID stored in c, or "".
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(requestIDContextKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
