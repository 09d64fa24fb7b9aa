package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"playjelly/db"
	"playjelly/events"
	"playjelly/middleware"
	"playjelly/services"
)

// Handler holds everything the HTTP API needs.
type Handler struct {
	repo       *db.Repository
	dispatcher *services.Dispatcher
	status     *services.StatusUpdater
	uptime     *services.Aggregator
	archiver   *services.Archiver
	auth       *middleware.Auth
	broker     *events.Broker
	cache      *StatusCache
	log        *slog.Logger
}

type Deps struct {
	Repo       *db.Repository
	Dispatcher *services.Dispatcher
	Status     *services.StatusUpdater
	Uptime     *services.Aggregator
	Archiver   *services.Archiver
	Auth       *middleware.Auth
	Broker     *events.Broker
	Cache      *StatusCache
	Logger     *slog.Logger
}

func New(d Deps) *Handler {
	h := &Handler{
		repo:       d.Repo,
		dispatcher: d.Dispatcher,
		status:     d.Status,
		uptime:     d.Uptime,
		archiver:   d.Archiver,
		auth:       d.Auth,
		broker:     d.Broker,
		cache:      d.Cache,
		log:        d.Logger,
	}
	if h.cache == nil {
		h.cache = NewStatusCache(d.Repo, DefaultStatusTTL)
	}
	return h
}

// Router wires every route onto a fresh gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(h.log))

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	admin := h.auth.AdminRequired()

	// Function endpoints, called by the scheduler or an external cron.
	r.POST("/health-check", admin, h.HealthCheck)
	r.POST("/immediate-health-check", admin, h.ImmediateHealthCheck)
	r.POST("/archive-uptime-history", admin, h.ArchiveUptimeHistory)
	r.POST("/update-service-status", admin, h.UpdateServiceStatus)

	api := r.Group("/api")
	{
		api.POST("/auth/login", h.Login)

		api.GET("/status", h.GetStatus)
		api.GET("/events", h.StreamEvents)

		api.GET("/services", h.ListServices)
		api.GET("/services/:id", h.GetService)
		api.GET("/services/:id/results", h.GetServiceResults)
		api.GET("/services/:id/uptime", h.GetServiceUptime)
		api.POST("/services", admin, h.CreateService)
		api.PUT("/services/:id", admin, h.UpdateService)
		api.DELETE("/services/:id", admin, h.DeleteService)

		api.GET("/incidents", h.ListIncidents)
		api.GET("/incidents/:id", h.GetIncident)
		api.POST("/incidents", admin, h.CreateIncident)
		api.PUT("/incidents/:id", admin, h.UpdateIncident)
		api.DELETE("/incidents/:id", admin, h.DeleteIncident)
		api.POST("/incidents/:id/updates", admin, h.AddIncidentUpdate)

		api.GET("/maintenances", h.ListMaintenances)
		api.GET("/maintenances/:id", h.GetMaintenance)
		api.POST("/maintenances", admin, h.CreateMaintenance)
		api.DELETE("/maintenances/:id", admin, h.DeleteMaintenance)
	}
	return r
}

// fail maps store and domain errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
	case errors.Is(err, services.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrIncidentResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "Incident is already resolved"})
	case errors.Is(err, db.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "path", c.FullPath(), "err", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
	}
}
