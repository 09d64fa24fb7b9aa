package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"playjelly/db"
	"playjelly/events"
	"playjelly/models"
)

const DefaultStatusTTL = 30 * time.Second

// StatusSummary is the public dashboard payload.
type StatusSummary struct {
	Overall         models.ServiceStatus `json:"overall"`
	Services        []models.Service     `json:"services"`
	ActiveIncidents []models.Incident    `json:"active_incidents"`
	Maintenances    []models.Maintenance `json:"maintenances"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// OverallStatus picks the worst status across services.
func OverallStatus(list []models.Service) models.ServiceStatus {
	rank := map[models.ServiceStatus]int{
		models.StatusOperational: 0,
		models.StatusMaintenance: 1,
		models.StatusDegraded:    2,
		models.StatusDowntime:    3,
	}
	overall := models.StatusOperational
	for _, s := range list {
		if rank[s.Status] > rank[overall] {
			overall = s.Status
		}
	}
	return overall
}

// StatusCache memoises the summary for a TTL. Invalidate drops it early.
type StatusCache struct {
	repo *db.Repository
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	value   *StatusSummary
	expires time.Time
	loads   int
}

func NewStatusCache(repo *db.Repository, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusCache{repo: repo, ttl: ttl, now: time.Now}
}

func (sc *StatusCache) Get(ctx context.Context) (StatusSummary, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	now := sc.now()
	if sc.value != nil && now.Before(sc.expires) {
		return *sc.value, nil
	}
	sum, err := sc.load(ctx, now)
	if err != nil {
		return sum, err
	}
	sc.value = &sum
	sc.expires = now.Add(sc.ttl)
	sc.loads++
	return sum, nil
}

func (sc *StatusCache) Invalidate() {
	sc.mu.Lock()
	sc.value = nil
	sc.mu.Unlock()
}

// Watch invalidates the cache on every change event until ctx ends or the
// channel closes.
func (sc *StatusCache) Watch(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			sc.Invalidate()
		}
	}
}

func (sc *StatusCache) load(ctx context.Context, now time.Time) (StatusSummary, error) {
	list, err := sc.repo.ListServices(ctx)
	if err != nil {
		return StatusSummary{}, err
	}
	incidents, err := sc.repo.ListIncidents(ctx, true)
	if err != nil {
		return StatusSummary{}, err
	}
	maint, err := sc.repo.ListMaintenances(ctx, true)
	if err != nil {
		return StatusSummary{}, err
	}
	return StatusSummary{
		Overall:         OverallStatus(list),
		Services:        list,
		ActiveIncidents: incidents,
		Maintenances:    maint,
		GeneratedAt:     now.UTC(),
	}, nil
}

func (h *Handler) GetStatus(c *gin.Context) {
	sum, err := h.cache.Get(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Status")
		return
	}
	c.JSON(http.StatusOK, sum)
}
