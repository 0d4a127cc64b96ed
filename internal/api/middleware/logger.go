package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const slogLoggerKey = "slogLogger"

// SlogLogger replaces gin's access log. It stores a request logger carrying the
// correlation ID and logs status, caller and latency once the request ends.
func SlogLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		reqLogger := logger.With(
			slog.String("correlation_id", GetCorrelationID(c)),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
		)
		c.Set(slogLoggerKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.Int("bytes", c.Writer.Size()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
		}
		if caller := CallerID(c); caller != "" {
			attrs = append(attrs, slog.String("caller", callerKey(caller)))
		}
		reqLogger.LogAttrs(c.Request.Context(), accessLevel(route, status), "request completed", attrs...)
	}
}

// accessLevel keeps probes quiet and raises server-side failures.
func accessLevel(route string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelWarn
	case route == "/health" || route == "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// LoggerFromContext returns the request logger, or slog.Default() when none is set.
func LoggerFromContext(c *gin.Context) *slog.Logger {
	if l, ok := c.Value(slogLoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
