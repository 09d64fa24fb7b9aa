package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"playjelly/middleware"
	"playjelly/models"
)

type incidentInput struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      models.IncidentStatus `json:"status"`
	ServiceID   *string               `json:"service_id"`
}

func (h *Handler) validateIncident(c *gin.Context, in incidentInput) bool {
	if in.Title == "" || len(in.Title) > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required and must be under 255 chars"})
		return false
	}
	if in.Status != "" && !in.Status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid incident status"})
		return false
	}
	return h.serviceExists(c, in.ServiceID)
}

// serviceExists writes a 400 and returns false when id names no service.
func (h *Handler) serviceExists(c *gin.Context, id *string) bool {
	if id == nil || *id == "" {
		return true
	}
	if _, err := h.repo.GetService(c.Request.Context(), *id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown service_id"})
		return false
	}
	return true
}

// ListIncidents lists incidents newest first. ?active=true hides resolved ones.
func (h *Handler) ListIncidents(c *gin.Context) {
	list, err := h.repo.ListIncidents(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		h.fail(c, err, "Incidents")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetIncident(c *gin.Context) {
	inc, err := h.repo.GetIncident(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Incident")
		return
	}
	c.JSON(http.StatusOK, inc)
}

func (h *Handler) CreateIncident(c *gin.Context) {
	var in incidentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if !h.validateIncident(c, in) {
		return
	}
	inc, err := h.repo.CreateIncident(c.Request.Context(), models.Incident{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		ServiceID:   in.ServiceID,
		AuthorID:    middleware.UserID(c),
	})
	if err != nil {
		h.fail(c, err, "Incident")
		return
	}
	c.JSON(http.StatusCreated, inc)
}

func (h *Handler) UpdateIncident(c *gin.Context) {
	var in incidentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if !h.validateIncident(c, in) {
		return
	}
	ctx := c.Request.Context()
	inc, err := h.repo.GetIncident(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Incident")
		return
	}
	inc.Title = in.Title
	inc.Description = in.Description
	inc.ServiceID = in.ServiceID
	if in.Status != "" {
		inc.Status = in.Status
	}
	updated, err := h.repo.UpdateIncident(ctx, inc)
	if err != nil {
		h.fail(c, err, "Incident")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteIncident(c *gin.Context) {
	if err := h.repo.DeleteIncident(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "Incident")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddIncidentUpdate(c *gin.Context) {
	var req struct {
		Status  models.IncidentStatus `json:"status"`
		Message string                `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid incident status"})
		return
	}
	u, err := h.repo.AddIncidentUpdate(c.Request.Context(), models.IncidentUpdate{
		IncidentID: c.Param("id"),
		Status:     req.Status,
		Message:    req.Message,
		AuthorID:   middleware.UserID(c),
	})
	if err != nil {
		h.fail(c, err, "Incident")
		return
	}
	c.JSON(http.StatusCreated, u)
}
