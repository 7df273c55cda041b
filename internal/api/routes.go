package api

import (
	"github.com/gin-gonic/gin"

	"github.com/civicgrid/triage/internal/health"
	"github.com/civicgrid/triage/internal/telemetry"
)

// RegisterRoutes mounts the health probes, the Prometheus endpoint, the
// monitoring surface, and the lifecycle operations.
func RegisterRoutes(router *gin.Engine, handler *Handler, checker *health.Checker, tp *telemetry.Provider) {
	health.RegisterRoutes(router, checker)
	if tp != nil {
		router.GET("/metrics", gin.WrapH(tp.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		reports := v1.Group("/reports")
		{
			reports.GET("/:id", handler.GetReport)
			reports.GET("/:id/history", handler.History)
			reports.GET("/:id/allowed-next", handler.AllowedNext)
			reports.POST("/:id/transition", handler.Transition)
			reports.POST("/:id/appeals", handler.SubmitAppeal)
			reports.POST("/:id/feedback", handler.SubmitFeedback)
			reports.POST("/:id/escalations", handler.RaiseEscalation)
		}

		appeals := v1.Group("/appeals")
		{
			appeals.POST("/:appeal_id/review", handler.ReviewAppeal)
		}

		escalations := v1.Group("/escalations")
		{
			escalations.POST("/:escalation_id/progress", handler.ProgressEscalation)
		}

		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/heartbeat", handler.Heartbeat)
			monitoring.GET("/queue", handler.Queue)
			monitoring.GET("/accuracy", handler.Accuracy)
		}
	}
}
