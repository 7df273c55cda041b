package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// checkTimeout bounds one full probe pass behind the health endpoints.
const checkTimeout = 5 * time.Second

// GinHandler returns the health endpoint handler. A degraded service still
// answers 200 so load balancers keep routing; only unhealthy returns 503.
func (c *Checker) GinHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), checkTimeout)
		defer cancel()

		status, results := c.Check(checkCtx)

		statusCode := http.StatusOK
		if status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		ctx.JSON(statusCode, gin.H{
			"status":    status,
			"checks":    results,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// GinLivenessHandler answers that the process is up, without touching any
// dependency.
func GinLivenessHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

// RegisterRoutes mounts the health endpoints on the router.
func RegisterRoutes(router *gin.Engine, checker *Checker) {
	router.GET("/health", checker.GinHandler())
	router.GET("/health/live", GinLivenessHandler())
	router.GET("/health/ready", checker.GinHandler())
}
