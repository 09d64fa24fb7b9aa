package services

import (
	"context"
	"log/slog"
	"time"
)

type SchedulerConfig struct {
	CheckInterval     time.Duration
	ArchiveInterval   time.Duration
	RetentionInterval time.Duration
}

// Scheduler drives the periodic jobs in-process. It stops when the context
// passed to Run is cancelled.
type Scheduler struct {
	cfg        SchedulerConfig
	dispatcher *Dispatcher
	archiver   *Archiver
	retention  *Retention
	log        *slog.Logger
}

func NewScheduler(cfg SchedulerConfig, d *Dispatcher, a *Archiver, r *Retention, logger *slog.Logger) *Scheduler {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ArchiveInterval <= 0 {
		cfg.ArchiveInterval = 24 * time.Hour
	}
	if cfg.RetentionInterval <= 0 {
		cfg.RetentionInterval = 6 * time.Hour
	}
	return &Scheduler{cfg: cfg, dispatcher: d, archiver: a, retention: r, log: logger}
}

func (s *Scheduler) Run(ctx context.Context) {
	checkTicker := time.NewTicker(s.cfg.CheckInterval)
	archiveTicker := time.NewTicker(s.cfg.ArchiveInterval)
	retentionTicker := time.NewTicker(s.cfg.RetentionInterval)
	defer checkTicker.Stop()
	defer archiveTicker.Stop()
	defer retentionTicker.Stop()

	s.log.Info("scheduler started",
		"check_interval", s.cfg.CheckInterval,
		"archive_interval", s.cfg.ArchiveInterval,
		"retention_interval", s.cfg.RetentionInterval)

	// Immediate first run
	s.tick(ctx, "health-check", s.checkAll)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-checkTicker.C:
			s.tick(ctx, "health-check", s.checkAll)
		case <-archiveTicker.C:
			s.tick(ctx, "archive", s.archive)
		case <-retentionTicker.C:
			s.tick(ctx, "retention", s.prune)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler tick panic", "job", job, "panic", r)
		}
	}()
	fn(ctx)
}

func (s *Scheduler) checkAll(ctx context.Context) {
	if _, err := s.dispatcher.CheckAll(ctx); err != nil {
		s.log.Error("health check batch had errors", "err", err)
	}
}

func (s *Scheduler) archive(ctx context.Context) {
	if s.archiver == nil {
		return
	}
	if _, err := s.archiver.Run(ctx); err != nil {
		s.log.Error("uptime archive failed", "err", err)
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	if s.retention == nil {
		return
	}
	_, _ = s.retention.Prune(ctx)
}
