package services

import (
	"context"
	"log/slog"
	"time"

	"playjelly/db"
)

// Retention prunes raw health check results. Daily rollups are kept; the
// Archiver handles those.
type Retention struct {
	repo *db.Repository
	days int
	log  *slog.Logger
	now  func() time.Time
}

func NewRetention(repo *db.Repository, days int, logger *slog.Logger) *Retention {
	if days <= 0 {
		days = 30
	}
	return &Retention{repo: repo, days: days, log: logger, now: time.Now}
}

func (r *Retention) Prune(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().AddDate(0, 0, -r.days)
	n, err := r.repo.DeleteResultsBefore(ctx, cutoff)
	if err != nil {
		r.log.Error("result retention failed", "err", err)
		return 0, err
	}
	r.log.Info("result retention completed", "cutoff", cutoff, "deleted", n)
	return n, nil
}
