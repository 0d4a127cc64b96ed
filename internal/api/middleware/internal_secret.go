package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvix/internal/api/respond"
	"cvix/internal/errcode"
)

// InternalSecret guards operational endpoints with the X-Internal-Secret
// header. An empty secret leaves the endpoint open.
func InternalSecret(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		// The secret is read from the header only so that it never lands in access logs via the query.
		token := strings.TrimSpace(c.GetHeader("X-Internal-Secret"))
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			respond.Abort(c, http.StatusUnauthorized, errcode.Unauthorized, respond.MsgUnauthorized)
			return
		}
		c.Next()
	}
}
