package api

import (
	"github.com/gin-gonic/gin"

	"github.com/inboxrelay/inboxrelay/api/handlers"
	"github.com/inboxrelay/inboxrelay/internal/cron"
	"github.com/inboxrelay/inboxrelay/services/poller"
)

// RegisterRoutes sets up the operational endpoints.
func RegisterRoutes(r *gin.Engine, worker *cron.CronManager, p *poller.Service) {
	r.Use(gin.Recovery())

	r.GET("/health", handlers.HealthCheck(worker))
	r.GET("/status", handlers.Status(p))
}
