package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"playjelly/middleware"
	"playjelly/models"
)

type maintenanceInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ServiceID   *string   `json:"service_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// ListMaintenances lists windows by start time. ?upcoming=true keeps windows
// that have not ended yet.
func (h *Handler) ListMaintenances(c *gin.Context) {
	list, err := h.repo.ListMaintenances(c.Request.Context(), c.Query("upcoming") == "true")
	if err != nil {
		h.fail(c, err, "Maintenances")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetMaintenance(c *gin.Context) {
	m, err := h.repo.GetMaintenance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Maintenance")
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) CreateMaintenance(c *gin.Context) {
	var in maintenanceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if in.Title == "" || len(in.Title) > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required and must be under 255 chars"})
		return
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() || !in.EndTime.After(in.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}
	if !h.serviceExists(c, in.ServiceID) {
		return
	}
	m, err := h.repo.CreateMaintenance(c.Request.Context(), models.Maintenance{
		Title:       in.Title,
		Description: in.Description,
		ServiceID:   in.ServiceID,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		AuthorID:    middleware.UserID(c),
	})
	if err != nil {
		h.fail(c, err, "Maintenance")
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) DeleteMaintenance(c *gin.Context) {
	if err := h.repo.DeleteMaintenance(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "Maintenance")
		return
	}
	c.Status(http.StatusNoContent)
}
