package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"playjelly/db"
	"playjelly/models"
)

var ErrInvalidStatus = errors.New("invalid service status")

// Transition describes a change of a service's visible status.
type Transition struct {
	Service models.Service
	From    models.ServiceStatus
	To      models.ServiceStatus
	At      time.Time
}

// Notifier receives status transitions. Implementations must not block for
// long; they are called from their own goroutine.
type Notifier interface {
	Notify(ctx context.Context, t Transition)
}

// StatusUpdater derives a service's status from probe results and handles
// manual overrides.
type StatusUpdater struct {
	repo   *db.Repository
	notify Notifier
	log    *slog.Logger

	wg sync.WaitGroup
}

func NewStatusUpdater(repo *db.Repository, notify Notifier, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{repo: repo, notify: notify, log: logger}
}

// StatusFor maps a probe outcome onto a service status.
func StatusFor(c models.CheckStatus) models.ServiceStatus {
	if c == models.CheckUp {
		return models.StatusOperational
	}
	return models.StatusDowntime
}

// Apply writes the status implied by res onto svc. Services in maintenance
// keep their status and applied is false.
func (u *StatusUpdater) Apply(ctx context.Context, svc models.Service, res models.HealthCheckResult) (status models.ServiceStatus, applied bool, err error) {
	next := StatusFor(res.Status)
	prev, applied, err := u.repo.ApplyCheck(ctx, svc.ID, next, res.ResponseTimeMs, res.CheckedAt)
	if err != nil {
		return prev, false, fmt.Errorf("apply status for %s: %w", svc.Name, err)
	}
	if !applied {
		return prev, false, nil
	}
	if prev != next {
		u.log.Info("service status changed", "service", svc.Name, "from", prev, "to", next)
		svc.Status = next
		u.dispatch(Transition{Service: svc, From: prev, To: next, At: res.CheckedAt})
	}
	return next, true, nil
}

// SetStatus is the manual override. Any of the four statuses is accepted,
// including maintenance.
func (u *StatusUpdater) SetStatus(ctx context.Context, serviceID string, status models.ServiceStatus) (models.Service, error) {
	if !status.IsValid() {
		return models.Service{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	prev, err := u.repo.SetServiceStatus(ctx, serviceID, status)
	if err != nil {
		return models.Service{}, err
	}
	svc, err := u.repo.GetService(ctx, serviceID)
	if err != nil {
		return svc, err
	}
	if prev != status {
		u.log.Info("service status set manually", "service", svc.Name, "from", prev, "to", status)
		u.dispatch(Transition{Service: svc, From: prev, To: status, At: time.Now().UTC()})
	}
	return svc, nil
}

func (u *StatusUpdater) dispatch(t Transition) {
	if u.notify == nil {
		return
	}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				u.log.Error("notifier panic recovered", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		u.notify.Notify(ctx, t)
	}()
}

// Wait blocks until in-flight notifications have returned.
func (u *StatusUpdater) Wait() { u.wg.Wait() }
