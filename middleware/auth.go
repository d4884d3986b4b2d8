package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bazario/pushgate/service/gateway"
)

// CtxUserKey is where authenticated handlers read the caller's identity.
const CtxUserKey = "userID"

// Auth authenticates REST calls with the same resolver the sockets use:
// Authorization bearer header first, ?token= fallback for parity with the
// websocket handshake.
func Auth(resolver gateway.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token == "" {
			token = c.Query("token")
		}

		user, err := resolver.Resolve(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "authentication rejected"})
			return
		}
		c.Set(CtxUserKey, user)
		c.Next()
	}
}

// UserFrom returns the authenticated identity set by Auth.
func UserFrom(c *gin.Context) string {
	return c.GetString(CtxUserKey)
}
