package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvix/internal/api/middleware"
	"cvix/internal/config"
	"cvix/internal/metrics"
)

// Deps collects what the router needs. Verifier and RateCounter may be nil.
type Deps struct {
	Config      *config.Config
	Logger      *slog.Logger
	Generator   Generator
	Templates   TemplateLister
	Verifier    middleware.TokenVerifier
	RateCounter middleware.RateCounter
}

// NewRouter builds the gin engine with every endpoint registered.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	// ClientIP must come from the socket, not from forwarding headers.
	_ = router.SetTrustedProxies(nil)
	router.Use(
		gin.Recovery(),
		middleware.CorrelationID(),
		middleware.SecurityHeaders(),
		middleware.SlogLogger(logger),
		metrics.GinMiddleware(),
		middleware.Locale(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.NoRoute(notFound)

	RegisterRoutes(router, deps)
	return router
}
