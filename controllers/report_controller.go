package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/services"
)

// ListAuditLogs handles GET /api/v1/audit-logs?entity_type=&entity_id=
func ListAuditLogs(c *gin.Context) {
	var q services.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	logs, err := services.ListAuditLogs(c.Request.Context(), config.GetDB(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, logs)
}

// Summary handles GET /api/v1/reports/summary
func Summary(c *gin.Context) {
	summary, err := services.NewReportService(config.GetDB()).Summary(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, summary)
}
