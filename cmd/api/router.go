package main

import (
	"asset-library-backend/internal/shared/middleware"
	"asset-library-backend/pkg/container"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(c.Config.App.AllowedOrigins),
		middleware.ClientIPMiddleware(),
	)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		c.AssetHandler.RegisterRoutes(v1)
		c.UserHandler.RegisterRoutes(v1)
	}

	return router
}

// ========================================
// HEALTH CHECK
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		services, healthy := appCtx.HealthCheck(ctx)
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
			"store":     appCtx.Config.Store.Driver,
			"services":  services,
		}

		if appCtx.DB != nil {
			if stats, err := appCtx.DB.Stats(); err == nil {
				health["database"] = stats
			}
		}

		status := http.StatusOK
		if !healthy {
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, health)
	}
}
