package middleware

import (
	"github.com/gin-gonic/gin"
)

// ClientIPKey is where ClientIPMiddleware stores the resolved address
const ClientIPKey = "client_ip"

// ClientIPMiddleware resolves the client address once per request. Forwarded
// headers are honored only for the proxies trusted by the engine.
//
// Usage:
//
//	router.Use(middleware.ClientIPMiddleware())
func ClientIPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ClientIPKey, c.ClientIP())
		c.Next()
	}
}
