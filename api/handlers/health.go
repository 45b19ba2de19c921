package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inboxrelay/inboxrelay/internal/cron"
	"github.com/inboxrelay/inboxrelay/services/poller"
)

// HealthCheck reports process and worker liveness.
func HealthCheck(worker *cron.CronManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":             true,
			"worker_running": worker.Running(),
		})
	}
}

// Status returns the summary of the most recent poll cycle.
func Status(p *poller.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := p.LastReport()
		if report == nil {
			c.JSON(http.StatusOK, gin.H{"status": "no cycle completed yet"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
