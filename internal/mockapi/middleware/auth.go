package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ticketone/sync/internal/security"
)

const claimsKey = "access_claims"

// Auth requires a valid bearer token signed with secret. It does not
// check which channel issued it; see RequireChannel.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is missing"})
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, err := security.ParseAccessToken(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		if _, err := claims.AccountID(); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims returns what Auth stored on the context.
func Claims(c *gin.Context) (*security.AccessClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.AccessClaims)
	return claims, ok
}

// AccountID is the numeric subject of the authenticated caller. Only
// valid behind Auth.
func AccountID(c *gin.Context) int64 {
	claims, ok := Claims(c)
	if !ok {
		return 0
	}
	id, _ := claims.AccountID()
	return id
}
