package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"playjelly/config"
	"playjelly/handlers"
	"playjelly/middleware"
	"playjelly/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the in-process scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.ServicesFile != "" {
			seed, err := config.LoadSeedFile(a.cfg.ServicesFile)
			if err != nil {
				return err
			}
			res, err := services.ImportServices(ctx, a.repo, seed)
			if err != nil {
				return err
			}
			a.log.Info("services imported", "file", a.cfg.ServicesFile, "created", res.Created, "updated", res.Updated)
		}

		cache := handlers.NewStatusCache(a.repo, handlers.DefaultStatusTTL)
		changes, unsubscribe := a.broker.Subscribe()
		defer unsubscribe()
		go cache.Watch(ctx, changes)

		if a.cfg.Features.SchedulerEnabled {
			sched := services.NewScheduler(services.SchedulerConfig{
				CheckInterval:     a.cfg.CheckInterval,
				ArchiveInterval:   a.cfg.ArchiveInterval,
				RetentionInterval: a.cfg.RetentionInterval,
			}, a.dispatcher, a.archiver, a.retention, a.log.With("module", "scheduler"))
			go sched.Run(ctx)
		}

		gin.SetMode(gin.ReleaseMode)
		h := handlers.New(handlers.Deps{
			Repo:       a.repo,
			Dispatcher: a.dispatcher,
			Status:     a.status,
			Uptime:     a.uptime,
			Archiver:   a.archiver,
			Auth:       middleware.NewAuth(a.cfg.JWTSecret, a.cfg.CronSecret, a.cfg.Features.AuthEnabled),
			Broker:     a.broker,
			Cache:      cache,
			Logger:     a.log.With("module", "http"),
		})
		srv := &http.Server{Addr: ":" + a.cfg.Port, Handler: h.Router(), ReadHeaderTimeout: 10 * time.Second}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			return err
		}
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Closing the broker ends open SSE streams so Shutdown can drain.
		a.broker.Close()
		return srv.Shutdown(shutdownCtx)
	},
}
