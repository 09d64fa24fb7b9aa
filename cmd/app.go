package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"playjelly/config"
	"playjelly/db"
	"playjelly/events"
	"playjelly/services"
	"playjelly/storage"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	broker *events.Broker
	repo   *db.Repository

	status     *services.StatusUpdater
	uptime     *services.Aggregator
	dispatcher *services.Dispatcher
	archiver   *services.Archiver
	retention  *services.Retention
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func newBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	if cfg.ArchiveBucket != "" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:   cfg.ArchiveBucket,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.S3Endpoint,
		})
	}
	return storage.NewFileStore(cfg.ArchiveDir), nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	conn, dialect, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(conn, dialect); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("database ready", "dialect", dialect)

	broker := events.NewBroker(256)
	repo := db.NewRepository(conn, dialect, broker)

	var notifier services.Notifier
	if cfg.Features.NotificationsEnabled {
		notifier = services.NewAlerts(cfg.SlackWebhookURL, cfg.SendGridAPIKey, cfg.AlertEmail, logger.With("module", "alerts"))
	}

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	status := services.NewStatusUpdater(repo, notifier, logger.With("module", "status"))
	uptime := services.NewAggregator(repo, logger.With("module", "uptime"))
	prober := services.NewProber(cfg.ProbeTimeout)

	logger.Info("features",
		"auth", cfg.Features.AuthEnabled,
		"notifications", cfg.Features.NotificationsEnabled,
		"scheduler", cfg.Features.SchedulerEnabled)

	return &app{
		cfg:        cfg,
		log:        logger,
		broker:     broker,
		repo:       repo,
		status:     status,
		uptime:     uptime,
		dispatcher: services.NewDispatcher(repo, prober, status, uptime, cfg.MaxConcurrentProbes, logger.With("module", "dispatcher")),
		archiver:   services.NewArchiver(repo, store, cfg.ArchivePrefix, cfg.UptimeRetentionDays, logger.With("module", "archive")),
		retention:  services.NewRetention(repo, cfg.ResultRetentionDays, logger.With("module", "retention")),
	}, nil
}

// Close waits for pending notifications and releases the database.
func (a *app) Close() error {
	a.status.Wait()
	a.broker.Close()
	return a.repo.DB().Close()
}
