package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"playjelly/db"
	"playjelly/models"
)

// UptimeWindowDays is the span behind services.uptime_percentage.
const UptimeWindowDays = 90

// Aggregator maintains the per-day uptime rollup.
type Aggregator struct {
	repo *db.Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewAggregator(repo *db.Repository, logger *slog.Logger) *Aggregator {
	return &Aggregator{repo: repo, log: logger, now: time.Now}
}

// Record folds the results of the day containing at into uptime_history and
// refreshes the service's headline uptime. The day is recomputed from raw
// results, so calling Record twice for the same result changes nothing.
func (a *Aggregator) Record(ctx context.Context, serviceID string, at time.Time) (models.UptimeRecord, error) {
	rec, ok, err := a.repo.RecomputeUptimeDay(ctx, serviceID, at)
	if err != nil {
		return rec, fmt.Errorf("recompute uptime: %w", err)
	}
	if !ok {
		return rec, nil
	}

	since := db.DayKey(at.UTC().AddDate(0, 0, -(UptimeWindowDays - 1)))
	pct, ok, err := a.repo.UptimeRatio(ctx, serviceID, since)
	if err != nil {
		return rec, fmt.Errorf("uptime ratio: %w", err)
	}
	if ok {
		if err := a.repo.SetServiceUptime(ctx, serviceID, pct); err != nil {
			return rec, fmt.Errorf("set service uptime: %w", err)
		}
	}
	return rec, nil
}

// History returns the last days rollups of a service, oldest first.
func (a *Aggregator) History(ctx context.Context, serviceID string, days int) ([]models.UptimeRecord, error) {
	if days <= 0 {
		days = UptimeWindowDays
	}
	if days > 366 {
		days = 366
	}
	since := db.DayKey(a.now().UTC().AddDate(0, 0, -(days - 1)))
	return a.repo.UptimeHistory(ctx, serviceID, since)
}
