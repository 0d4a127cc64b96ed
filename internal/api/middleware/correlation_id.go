package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cvix/internal/api/respond"
)

const correlationIDKey = "correlationID"

// requestIDHeader is honoured when a proxy in front sets it instead.
const requestIDHeader = "X-Request-ID"

// inbound ids are echoed into headers and logs, so only a safe shape is kept
var correlationPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// CorrelationID settles the request's correlation ID and echoes it in the response header.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := inboundCorrelationID(c)
		c.Set(correlationIDKey, id)
		c.Header(respond.CorrelationHeader, id)
		c.Next()
	}
}

func inboundCorrelationID(c *gin.Context) string {
	for _, h := range []string{respond.CorrelationHeader, requestIDHeader} {
		if id := c.GetHeader(h); correlationPattern.MatchString(id) {
			return id
		}
	}
	return uuid.NewString()
}

// GetCorrelationID returns the id chosen by CorrelationID, or "" outside it.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}
