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

// ServiceProber is satisfied by *Prober.
type ServiceProber interface {
	Probe(ctx context.Context, svc models.Service) ProbeResult
}

type Summary struct {
	Checked int `json:"checked"`
	Up      int `json:"up"`
	Down    int `json:"down"`
	Skipped int `json:"skipped"`
}

// Outcome is what a single check did to a service.
type Outcome struct {
	ServiceID   string                    `json:"service_id"`
	ServiceName string                    `json:"service_name"`
	Skipped     bool                      `json:"skipped"`
	SkipReason  string                    `json:"skip_reason,omitempty"`
	Result      *models.HealthCheckResult `json:"result,omitempty"`
	Status      models.ServiceStatus      `json:"status"`
}

// Dispatcher runs probes for registered services and records their outcome.
type Dispatcher struct {
	repo          *db.Repository
	prober        ServiceProber
	status        *StatusUpdater
	uptime        *Aggregator
	maxConcurrent int
	log           *slog.Logger
	now           func() time.Time
}

// NewDispatcher builds a dispatcher. maxConcurrent <= 0 leaves the batch
// unbounded.
func NewDispatcher(repo *db.Repository, prober ServiceProber, status *StatusUpdater, uptime *Aggregator, maxConcurrent int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:          repo,
		prober:        prober,
		status:        status,
		uptime:        uptime,
		maxConcurrent: maxConcurrent,
		log:           logger,
		now:           time.Now,
	}
}

func skipReason(svc models.Service) string {
	if svc.Status == models.StatusMaintenance {
		return "maintenance"
	}
	return "no url"
}

// CheckOne probes a single service immediately.
func (d *Dispatcher) CheckOne(ctx context.Context, serviceID string) (Outcome, error) {
	svc, err := d.repo.GetService(ctx, serviceID)
	if err != nil {
		return Outcome{ServiceID: serviceID}, err
	}
	if !svc.Probeable() {
		return Outcome{ServiceID: svc.ID, ServiceName: svc.Name, Skipped: true, SkipReason: skipReason(svc), Status: svc.Status}, nil
	}
	return d.check(ctx, svc)
}

// CheckAll probes every eligible service concurrently. A failure on one
// service never stops the others; their errors are joined and returned with
// the summary once every service has been processed.
func (d *Dispatcher) CheckAll(ctx context.Context) (Summary, error) {
	list, err := d.repo.ListServices(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list services: %w", err)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		summary Summary
		errs    []error
		sem     chan struct{}
	)
	if d.maxConcurrent > 0 {
		sem = make(chan struct{}, d.maxConcurrent)
	}

	for _, svc := range list {
		if !svc.Probeable() {
			summary.Skipped++
			continue
		}
		wg.Add(1)
		go func(svc models.Service) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("check %s: panic: %v", svc.Name, r))
					mu.Unlock()
				}
			}()

			out, err := d.check(ctx, svc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if out.Skipped {
				summary.Skipped++
				return
			}
			if out.Result == nil {
				return
			}
			summary.Checked++
			if out.Result.Status == models.CheckUp {
				summary.Up++
			} else {
				summary.Down++
			}
		}(svc)
	}
	wg.Wait()

	d.log.Info("health check batch finished",
		"checked", summary.Checked, "up", summary.Up, "down", summary.Down,
		"skipped", summary.Skipped, "errors", len(errs))
	return summary, errors.Join(errs...)
}

func (d *Dispatcher) check(ctx context.Context, svc models.Service) (Outcome, error) {
	out := Outcome{ServiceID: svc.ID, ServiceName: svc.Name, Status: svc.Status}

	pr := d.prober.Probe(ctx, svc)
	res := models.HealthCheckResult{
		ServiceID:      svc.ID,
		Status:         pr.Status,
		ResponseTimeMs: pr.ResponseTimeMs,
		StatusCode:     pr.StatusCode,
		FailureReason:  pr.FailureReason,
		CheckedAt:      d.now().UTC(),
	}
	if pr.Status == models.CheckDown {
		res.ResponseTimeMs = nil
		d.log.Warn("service probe failed", "service", svc.Name, "reason", pr.FailureReason, "err", pr.Err)
	}

	saved, err := d.repo.InsertResult(ctx, res)
	if errors.Is(err, db.ErrInMaintenance) {
		d.log.Info("service entered maintenance during check", "service", svc.Name)
		out.Skipped, out.SkipReason, out.Status = true, "maintenance", models.StatusMaintenance
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("check %s: insert result: %w", svc.Name, err)
	}
	out.Result = &saved

	status, _, err := d.status.Apply(ctx, svc, saved)
	if err != nil {
		return out, fmt.Errorf("check %s: %w", svc.Name, err)
	}
	out.Status = status

	if _, err := d.uptime.Record(ctx, svc.ID, saved.CheckedAt); err != nil {
		return out, fmt.Errorf("check %s: %w", svc.Name, err)
	}
	return out, nil
}
