package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hrdesk/internal/middleware"
	"github.com/simp-lee/hrdesk/internal/pkg"
)

// errorTemplates maps status codes to their error pages. Unmapped codes use
// the 500 page.
var errorTemplates = map[int]string{
	http.StatusBadRequest:          "errors/400.html",
	http.StatusNotFound:            "errors/404.html",
	http.StatusInternalServerError: "errors/500.html",
}

// renderError answers a failed request in the shape the caller expects:
// a toast for htmx, a JSON envelope for API and JSON clients, and an error
// page for browsers.
func renderError(c *gin.Context, code int, message string) {
	if middleware.IsHTMX(c) {
		middleware.AbortHTMX(c, code, toastMessage(code, message))
		return
	}
	if strings.HasPrefix(c.Request.URL.Path, "/api/") || !acceptsHTML(c) || prefersJSON(c) {
		c.JSON(code, pkg.Response{Code: code, Message: message})
		return
	}
	renderHTMLErrorPage(c, code)
}

// renderHTMLErrorPage falls back to plain text when no renderer is
// configured or the page fails to render.
func renderHTMLErrorPage(c *gin.Context, code int) {
	defer func() {
		if r := recover(); r != nil {
			c.Data(code, "text/plain; charset=utf-8",
				[]byte(fmt.Sprintf("%d %s", code, http.StatusText(code))))
		}
	}()

	tmpl, ok := errorTemplates[code]
	if !ok {
		tmpl = errorTemplates[http.StatusInternalServerError]
	}
	c.HTML(code, tmpl, gin.H{"RequestID": middleware.GetRequestID(c)})
}

func toastMessage(code int, message string) string {
	if code == http.StatusNotFound {
		return "That page no longer exists"
	}
	if message == "" {
		return http.StatusText(code)
	}
	return message
}

// acceptsHTML matches text/html, */* and an empty Accept header.
func acceptsHTML(c *gin.Context) bool {
	accept := strings.ToLower(c.GetHeader("Accept"))
	return strings.Contains(accept, "text/html") ||
		strings.Contains(accept, "*/*") ||
		strings.TrimSpace(accept) == ""
}

// prefersJSON reports an explicit JSON Accept without text/html. It is
// checked separately because "application/json, */*" also passes acceptsHTML.
func prefersJSON(c *gin.Context) bool {
	accept := strings.ToLower(c.GetHeader("Accept"))
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
