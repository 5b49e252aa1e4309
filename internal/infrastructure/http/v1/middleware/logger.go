package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"salesledger/pkg/logger"
)

// Logger writes one access line per request. Probes log at debug so they do
// not drown the document traffic; 5xx log at error and 4xx at warn.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			kv = append(kv, "query", q)
		}
		if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
			kv = append(kv, "idempotency_key", key, "replayed", c.Writer.Header().Get(HeaderIdempotentReplayed) != "")
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			kv = append(kv, "error", errs)
		}

		entry := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			entry.Errorw("http request", kv...)
		case status >= 400:
			entry.Warnw("http request", kv...)
		case isProbe(c.FullPath()):
			entry.Debugw("http request", kv...)
		default:
			entry.Infow("http request", kv...)
		}
	}
}

func isProbe(route string) bool {
	return route == "/health" || route == "/health/ready" || route == "/metrics"
}
