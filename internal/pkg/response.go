package pkg

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hrdesk/internal/domain"
)

// Response is the standard JSON envelope for API responses.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ValidationErrorResponse is the JSON envelope for validation error responses.
type ValidationErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// Error sends a JSON error response. If err is a *domain.AppError, its code is
// mapped to the appropriate HTTP status; otherwise 500 is returned.
//
// A *domain.ValidationError is rendered as a 400 with its field messages.
func Error(c *gin.Context, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
			Errors:  ve.Fields,
		})
		return
	}

	status := domain.HTTPStatusCode(err)

	var appErr *domain.AppError
	msg := "internal error"
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}

	c.JSON(status, Response{
		Code:    status,
		Message: msg,
		Data:    nil,
	})
}

// Collection sends a 200 list envelope whose data object holds the items
// under key next to the total across all pages.
func Collection(c *gin.Context, key string, items any, total int64) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data: gin.H{
			key:     items,
			"total": total,
		},
	})
}

// Message sends a flat body: the message next to the fields of record.
// A "message" key inside record is overwritten.
func Message(c *gin.Context, status int, message string, record map[string]any) {
	body := make(gin.H, len(record)+1)
	for k, v := range record {
		body[k] = v
	}
	body["message"] = message
	c.JSON(status, body)
}

