package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"salesledger/internal/core/apperror"
	appctx "salesledger/internal/core/context"
	"salesledger/internal/infrastructure/cache"
	"salesledger/pkg/logger"
)

const (
	HeaderIdempotencyKey     = "X-Idempotency-Key"
	HeaderIdempotentReplayed = "Idempotent-Replayed"
	maxIdempotencyBodyBytes  = 1 << 20 // 1 MiB

	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore remembers responses by key. cache.IdempotencyStore
// implements it on Redis.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*cache.Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// Idempotency replays the first response of a POST that carries an
// X-Idempotency-Key header. Requests without the header pass through.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("failed to read request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		operation := c.Request.Method + " " + c.FullPath()
		actorID := appctx.GetActorID(c.Request.Context())

		replay, err := store.AcquireKey(c.Request.Context(), key, actorID, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
				c.Abort()
				return
			}
			_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			c.Abort()
			return
		}

		if replay != nil {
			c.Header(HeaderIdempotentReplayed, "true")
			if replay.StatusCode == http.StatusNoContent {
				c.Status(http.StatusNoContent)
			} else {
				c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			}
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency stores a successful response under the request's key.
// It is a no-op when the request carries no key.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	finishIdempotency(c, func(ctx context.Context, s IdempotencyStore, key string) error {
		return s.CompleteKey(ctx, key, statusCode, contentType, response)
	})
}

// FailIdempotency stores an error response under the request's key.
func FailIdempotency(c *gin.Context, statusCode int, response any) {
	finishIdempotency(c, func(ctx context.Context, s IdempotencyStore, key string) error {
		return s.FailKey(ctx, key, statusCode, "application/json", response)
	})
}

func finishIdempotency(c *gin.Context, fn func(ctx context.Context, s IdempotencyStore, key string) error) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return
	}
	store, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return
	}
	s, ok := store.(IdempotencyStore)
	if !ok || s == nil {
		return
	}
	if err := fn(c.Request.Context(), s, key); err != nil {
		logger.Warn(c.Request.Context(), "idempotency key not finished", "key", key, "error", err)
	}
}
