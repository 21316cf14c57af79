package middleware

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
)

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// AbortHTMX ends an htmx request with status and an empty body. The page
// swaps nothing and shows message as an error toast.
func AbortHTMX(c *gin.Context, status int, message string) {
	trigger, _ := json.Marshal(map[string]any{
		"showToast": map[string]string{"message": message, "type": "error"},
	})
	c.Header("HX-Reswap", "none")
	c.Header("HX-Trigger", string(trigger))
	c.AbortWithStatus(status)
}
