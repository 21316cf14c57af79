package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hrdesk/internal/pkg"
)

// Timeout bounds the request context by d. Backend calls and queries made
// with that context stop at the deadline; if the handler wrote nothing by
// then the request is answered with 408. A non-positive d disables it.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if c.Writer.Written() || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		if IsHTMX(c) {
			AbortHTMX(c, http.StatusRequestTimeout, "The request took too long, please try again")
			return
		}
		c.AbortWithStatusJSON(http.StatusRequestTimeout, pkg.Response{
			Code:    http.StatusRequestTimeout,
			Message: "request timeout",
		})
	}
}
