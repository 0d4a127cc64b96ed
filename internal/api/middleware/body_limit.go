package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvix/internal/api/respond"
	"cvix/internal/errcode"
)

// BodyLimit rejects requests whose declared length exceeds n and caps the
// body reader at n bytes for the rest.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			respond.Abort(c, http.StatusRequestEntityTooLarge, errcode.PayloadTooLarge, respond.MsgPayloadTooLarge, n)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
