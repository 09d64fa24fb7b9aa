package models

import (
	"time"
)

type ServiceStatus string

const (
	StatusOperational ServiceStatus = "operational"
	StatusDegraded    ServiceStatus = "degraded"
	StatusDowntime    ServiceStatus = "downtime"
	StatusMaintenance ServiceStatus = "maintenance"
)

func (s ServiceStatus) IsValid() bool {
	switch s {
	case StatusOperational, StatusDegraded, StatusDowntime, StatusMaintenance:
		return true
	}
	return false
}

type CheckStatus string

const (
	CheckUp   CheckStatus = "up"
	CheckDown CheckStatus = "down"
)

// FailureReason refines a down result. Empty for up results.
type FailureReason string

const (
	FailureTimeout    FailureReason = "timeout"
	FailureConnection FailureReason = "connection"
	FailureHTTPStatus FailureReason = "http_status"
	FailureRequest    FailureReason = "request"
)

type Service struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	Status             ServiceStatus `json:"status"`
	URL                *string       `json:"url"`
	IPAddress          *string       `json:"ip_address,omitempty"`
	Port               *int          `json:"port,omitempty"`
	UptimePercentage   float64       `json:"uptime_percentage"`
	Position           int           `json:"position"`
	LastResponseTimeMs *int64        `json:"last_response_time_ms"`
	LastCheckedAt      *time.Time    `json:"last_checked_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Probeable reports whether the dispatcher should issue a probe.
func (s Service) Probeable() bool {
	return s.URL != nil && *s.URL != "" && s.Status != StatusMaintenance
}

type HealthCheckResult struct {
	ID             string        `json:"id"`
	ServiceID      string        `json:"service_id"`
	Status         CheckStatus   `json:"status"`
	ResponseTimeMs *int64        `json:"response_time_ms"`
	StatusCode     *int          `json:"status_code,omitempty"`
	FailureReason  FailureReason `json:"failure_reason,omitempty"`
	CheckedAt      time.Time     `json:"checked_at"`
}

// UptimeRecord is one service's rollup for one UTC day.
type UptimeRecord struct {
	ServiceID         string   `json:"service_id"`
	Date              string   `json:"date"`
	UpChecks          int      `json:"up_checks"`
	TotalChecks       int      `json:"total_checks"`
	UptimePercentage  float64  `json:"uptime_percentage"`
	AvgResponseTimeMs *float64 `json:"avg_response_time_ms"`
}

type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)

func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentInvestigating, IncidentIdentified, IncidentMonitoring, IncidentResolved:
		return true
	}
	return false
}

type Incident struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      IncidentStatus   `json:"status"`
	ServiceID   *string          `json:"service_id"`
	AuthorID    string           `json:"author_id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
	Updates     []IncidentUpdate `json:"updates,omitempty"`
}

func (i Incident) Active() bool { return i.Status != IncidentResolved }

type IncidentUpdate struct {
	ID         string         `json:"id"`
	IncidentID string         `json:"incident_id"`
	Status     IncidentStatus `json:"status"`
	Message    string         `json:"message"`
	AuthorID   string         `json:"author_id"`
	CreatedAt  time.Time      `json:"created_at"`
}

type Maintenance struct {
	ID          string    `json:"id"`
	ServiceID   *string   `json:"service_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
	InProgress  bool      `json:"in_progress"` // Computed at read time
}

func (m Maintenance) ActiveAt(now time.Time) bool {
	return !now.Before(m.StartTime) && now.Before(m.EndTime)
}

func (m Maintenance) UpcomingAt(now time.Time) bool {
	return m.EndTime.After(now)
}
