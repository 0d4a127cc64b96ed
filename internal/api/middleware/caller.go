package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvix/internal/api/respond"
	"cvix/internal/auth"
	"cvix/internal/errcode"
)

const callerIDKey = "callerID"

// TokenVerifier verifies a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.TokenClaims, error)
}

// CallerIdentity stores the caller ID in the context. With a verifier set a
// valid Bearer token is required; otherwise the client IP identifies the caller.
func CallerIdentity(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Set(callerIDKey, "ip:"+c.ClientIP())
			c.Next()
			return
		}

		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			respond.Abort(c, http.StatusUnauthorized, errcode.Unauthorized, respond.MsgUnauthorized)
			return
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			LoggerFromContext(c).Info("caller token rejected", "error", err)
			respond.Abort(c, http.StatusUnauthorized, errcode.Unauthorized, respond.MsgUnauthorized)
			return
		}

		c.Set(callerIDKey, "sub:"+claims.Subject)
		c.Next()
	}
}

// CallerID returns the caller set by CallerIdentity.
func CallerID(c *gin.Context) string {
	return c.GetString(callerIDKey)
}
