package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/obelousov/sntledger/internal/requestinfo"
)

// ActorIDHeader carries the acting user's identifier, set by the admin
// console frontend after login.
const ActorIDHeader = "X-Actor-ID"

// Actor propagates the acting user's identity and the client address into
// the request context, where the services pick them up for audit entries.
// Requests without the header are attributed to the anonymous actor.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = requestinfo.WithActorID(ctx, c.GetHeader(ActorIDHeader))
		ctx = requestinfo.WithOrigin(ctx, c.ClientIP())
		ctx = requestinfo.WithRequestID(ctx, GetRequestID(c))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
