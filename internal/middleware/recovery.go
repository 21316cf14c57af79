package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hrdesk/internal/pkg"
)

// Recovery returns a gin middleware that turns a panic into a 500 after
// logging it with the stack, route and entity.
//
// htmx requests get an error toast and no swap. Browsers asking for
// text/html get errors/500.html with the request id as a reference. Anything
// else gets the JSON envelope:
//
//	{"code": 500, "message": "internal server error", "data": null}
//
// Nothing is written when the handler already started its response.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				attrs := []slog.Attr{
					slog.Any("panic", err),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
				}
				if route := c.FullPath(); route != "" {
					attrs = append(attrs, slog.String("route", route))
				}
				if entity := c.Param("entity"); entity != "" {
					attrs = append(attrs, slog.String("entity", entity))
				}
				attrs = append(attrs, slog.String("stack", string(debug.Stack())))
				logger.LogAttrs(c.Request.Context(), slog.LevelError, "panic recovered", attrs...)

				if c.Writer.Written() {
					// Headers are gone; the client sees a truncated body.
					c.Abort()
					return
				}
				c.Abort()

				if IsHTMX(c) {
					AbortHTMX(c, http.StatusInternalServerError, "Something went wrong, please try again")
				} else if acceptsHTML(c) {
					renderHTMLError(c)
				} else {
					c.JSON(http.StatusInternalServerError, pkg.Response{
						Code:    http.StatusInternalServerError,
						Message: "internal server error",
					})
				}
			}
		}()
		c.Next()
	}
}

// renderHTMLError attempts to render the errors/500.html template.
// If the HTML renderer is not configured or rendering fails, it falls back
// to a plain text 500 response.
func renderHTMLError(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			// HTML rendering failed (e.g., no renderer configured).
			// Fall back to a plain text response.
			c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("500 Internal Server Error"))
		}
	}()
	c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{"RequestID": GetRequestID(c)})
}

// acceptsHTML returns true if the request's Accept header contains "text/html".
func acceptsHTML(c *gin.Context) bool {
	accept := strings.ToLower(c.GetHeader("Accept"))
	return strings.Contains(accept, "text/html")
}
