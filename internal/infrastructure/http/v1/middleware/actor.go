package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "salesledger/internal/core/context"
)

const (
	HeaderActorID = "X-Actor-ID"
	HeaderChannel = "X-Channel"
)

// Actor records who sent the request (a cashier, a POS terminal) on the
// request context. The engine performs no authorization; the actor only
// shows up in logs and idempotency records.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if id != "" {
			channel := strings.TrimSpace(c.GetHeader(HeaderChannel))
			if channel == "" {
				channel = "api"
			}
			ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{ID: id, Channel: channel})
			c.Request = c.Request.WithContext(ctx)
			c.Set("actor_id", id)
		}
		c.Next()
	}
}
