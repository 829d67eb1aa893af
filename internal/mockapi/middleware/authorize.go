package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticketone/sync/internal/model"
)

// RequireChannel rejects tokens issued to a different identity channel.
// An attendee token on an organizer route is authenticated but not
// authorized, hence 403 rather than 401.
func RequireChannel(channel model.Channel) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if claims.Channel != string(channel) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
