package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"salesledger/internal/core/apperror"
	"salesledger/pkg/logger"
)

// ErrorHandler renders the last error registered on the context as
// {code, message, details}. Internal causes are logged, not returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// Response already written by handler.
		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil || appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"details", appErr.Details,
					"cause", appErr.Err,
				)
			}

			renderError(c, appErr)
			return
		}

		logger.Error(c.Request.Context(), "unhandled error", "error", err)

		body := gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": c.GetString("request_id"),
			},
		}
		FailIdempotency(c, http.StatusInternalServerError, body)
		c.JSON(http.StatusInternalServerError, body)
	}
}

func renderError(c *gin.Context, appErr *apperror.AppError) {
	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	}
	FailIdempotency(c, appErr.HTTPStatus, body)
	c.JSON(appErr.HTTPStatus, body)
}
