package models

import (
	"testing"
	"time"
)

func TestServiceStatusIsValid(t *testing.T) {
	for _, s := range []ServiceStatus{StatusOperational, StatusDegraded, StatusDowntime, StatusMaintenance} {
		if !s.IsValid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	if ServiceStatus("partial_outage").IsValid() {
		t.Fatal("partial_outage should be invalid")
	}
}

func TestServiceProbeable(t *testing.T) {
	u := "https://example.com"
	empty := ""
	cases := []struct {
		name string
		svc  Service
		want bool
	}{
		{"with url", Service{URL: &u, Status: StatusOperational}, true},
		{"nil url", Service{Status: StatusOperational}, false},
		{"empty url", Service{URL: &empty, Status: StatusOperational}, false},
		{"maintenance", Service{URL: &u, Status: StatusMaintenance}, false},
		{"degraded", Service{URL: &u, Status: StatusDegraded}, true},
	}
	for _, tc := range cases {
		if got := tc.svc.Probeable(); got != tc.want {
			t.Fatalf("%s: Probeable() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMaintenanceWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := Maintenance{StartTime: start, EndTime: start.Add(2 * time.Hour)}

	if m.ActiveAt(start.Add(-time.Minute)) {
		t.Fatal("window should not be active before start")
	}
	if !m.ActiveAt(start) {
		t.Fatal("window should be active at start")
	}
	if m.ActiveAt(start.Add(2 * time.Hour)) {
		t.Fatal("window should not be active at end")
	}
	if !m.UpcomingAt(start.Add(time.Hour)) {
		t.Fatal("window in progress is still upcoming")
	}
	if m.UpcomingAt(start.Add(3 * time.Hour)) {
		t.Fatal("finished window is not upcoming")
	}
}
