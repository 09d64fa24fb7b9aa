package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"playjelly/models"
)

// HealthCheck probes every eligible service.
func (h *Handler) HealthCheck(c *gin.Context) {
	summary, err := h.dispatcher.CheckAll(c.Request.Context())
	if err != nil {
		h.log.Error("health check batch failed", "err", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Health check failed", "summary": summary})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ImmediateHealthCheck(c *gin.Context) {
	var req struct {
		ServiceID string `json:"service_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ServiceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service_id is required"})
		return
	}
	out, err := h.dispatcher.CheckOne(c.Request.Context(), req.ServiceID)
	if err != nil {
		h.fail(c, err, "Service")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ArchiveUptimeHistory(c *gin.Context) {
	res, err := h.archiver.Run(c.Request.Context())
	if err != nil {
		h.log.Error("uptime archive failed", "err", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Archive failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateServiceStatus(c *gin.Context) {
	var req struct {
		ServiceID string               `json:"service_id"`
		Status    models.ServiceStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if req.ServiceID == "" || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service_id and status are required"})
		return
	}
	svc, err := h.status.SetStatus(c.Request.Context(), req.ServiceID, req.Status)
	if err != nil {
		h.fail(c, err, "Service")
		return
	}
	c.JSON(http.StatusOK, svc)
}
