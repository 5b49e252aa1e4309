// Package middleware provides the HTTP middleware chain of the API.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"salesledger/internal/core/apperror"
	"salesledger/pkg/logger"
)

// Recovery turns a panic into an INTERNAL_ERROR response. The stack goes to
// the log and the span, never to the client. A panic after the response was
// written only aborts the chain.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			err := fmt.Errorf("panic: %v", rec)
			logger.Error(ctx, "panic recovered",
				"route", c.FullPath(),
				"error", rec,
				"stack", string(debug.Stack()),
			)

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")

			c.Abort()
			if !c.Writer.Written() {
				renderError(c, apperror.NewInternal(err).WithDetail("request_id", c.GetString("request_id")))
			}
		}()
		c.Next()
	}
}
