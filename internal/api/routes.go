package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cvix/internal/api/middleware"
)

// RegisterRoutes mounts /metrics and the /v1 group.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	cfg := deps.Config

	router.GET("/metrics", middleware.InternalSecret(cfg.Metrics.Secret), gin.WrapH(promhttp.Handler()))

	generateHandler := NewGenerateHandler(deps.Generator, cfg.API.MaxPayloadBytes, cfg.API.RequestTimeout)
	templatesHandler := NewTemplatesHandler(deps.Templates)

	v1 := router.Group("/v1")
	{
		v1.GET("/templates", templatesHandler.List)

		chain := []gin.HandlerFunc{
			middleware.BodyLimit(cfg.API.MaxPayloadBytes),
			middleware.CallerIdentity(deps.Verifier),
		}
		if deps.RateCounter != nil {
			chain = append(chain, middleware.RateLimit(deps.RateCounter, cfg.RateLimit.Requests, cfg.RateLimit.Window))
		}
		chain = append(chain, generateHandler.Generate)
		v1.POST("/resume/generate", chain...)
	}
}
