package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/careview/backend/pkg/errors"
)

// ErrorBody is the wire format for API failures. Additional context (required
// roles, retry hints) is merged in as extra top-level fields.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSON writes a success payload as-is.
func JSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// Error writes a structured error body derived from an AppError.
func Error(c *gin.Context, err error) {
	ErrorWith(c, err, nil)
}

// ErrorWith writes a structured error body with extra top-level fields merged in.
func ErrorWith(c *gin.Context, err error, extra map[string]interface{}) {
	if err == nil {
		err = apperrors.ErrInternalServer
	}

	appErr := apperrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	for k, v := range extra {
		body[k] = v
	}

	c.JSON(status, body)
}
