package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"playjelly/models"
)

type serviceInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      models.ServiceStatus `json:"status"`
	URL         *string              `json:"url"`
	IPAddress   *string              `json:"ip_address"`
	Port        *int                 `json:"port"`
	Position    int                  `json:"position"`
}

func (in serviceInput) validate() string {
	if in.Name == "" || len(in.Name) > 255 {
		return "Name is required and must be under 255 chars"
	}
	if in.Status != "" && !in.Status.IsValid() {
		return "Invalid status"
	}
	if in.URL != nil && *in.URL != "" {
		u, err := url.Parse(*in.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "URL must be an absolute http or https URL"
		}
	}
	if in.Port != nil && (*in.Port < 1 || *in.Port > 65535) {
		return "Port must be between 1 and 65535"
	}
	return ""
}

func (in serviceInput) apply(s *models.Service) {
	s.Name = in.Name
	s.Description = in.Description
	if in.Status != "" {
		s.Status = in.Status
	}
	s.URL = in.URL
	s.IPAddress = in.IPAddress
	s.Port = in.Port
	s.Position = in.Position
}

func (h *Handler) ListServices(c *gin.Context) {
	list, err := h.repo.ListServices(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Services")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetService(c *gin.Context) {
	svc, err := h.repo.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Service")
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (h *Handler) CreateService(c *gin.Context) {
	var in serviceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if msg := in.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	var svc models.Service
	in.apply(&svc)
	created, err := h.repo.CreateService(c.Request.Context(), svc)
	if err != nil {
		h.fail(c, err, "Service")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateService(c *gin.Context) {
	var in serviceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if msg := in.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	ctx := c.Request.Context()
	svc, err := h.repo.GetService(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Service")
		return
	}
	status := in.Status
	in.Status = ""
	in.apply(&svc)
	updated, err := h.repo.UpdateService(ctx, svc)
	if err != nil {
		h.fail(c, err, "Service")
		return
	}
	// Status changes go through the manual override.
	if status != "" && status != updated.Status {
		if updated, err = h.status.SetStatus(ctx, updated.ID, status); err != nil {
			h.fail(c, err, "Service")
			return
		}
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteService(c *gin.Context) {
	if err := h.repo.DeleteService(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "Service")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetServiceResults returns the latest raw probe results, newest first.
func (h *Handler) GetServiceResults(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.repo.GetService(ctx, id); err != nil {
		h.fail(c, err, "Service")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	results, err := h.repo.ListResults(ctx, id, limit)
	if err != nil {
		h.fail(c, err, "Results")
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetServiceUptime returns daily rollups for charting. ?days= defaults to 90.
func (h *Handler) GetServiceUptime(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	svc, err := h.repo.GetService(ctx, id)
	if err != nil {
		h.fail(c, err, "Service")
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "90"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	history, err := h.uptime.History(ctx, id, days)
	if err != nil {
		h.fail(c, err, "Uptime")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service_id":        svc.ID,
		"uptime_percentage": svc.UptimePercentage,
		"days":              history,
	})
}
