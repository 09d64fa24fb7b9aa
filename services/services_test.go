package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"playjelly/db"
	"playjelly/db/dbtest"
	"playjelly/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []Transition
}

func (n *recordingNotifier) Notify(_ context.Context, t Transition) {
	n.mu.Lock()
	n.got = append(n.got, t)
	n.mu.Unlock()
}

func (n *recordingNotifier) transitions() []Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Transition(nil), n.got...)
}

type fixture struct {
	repo       *db.Repository
	notifier   *recordingNotifier
	status     *StatusUpdater
	uptime     *Aggregator
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, prober ServiceProber, maxConcurrent int) *fixture {
	t.Helper()
	repo := dbtest.New(t, nil)
	n := &recordingNotifier{}
	status := NewStatusUpdater(repo, n, discardLogger())
	uptime := NewAggregator(repo, discardLogger())
	if prober == nil {
		prober = NewProber(time.Second)
	}
	return &fixture{
		repo:       repo,
		notifier:   n,
		status:     status,
		uptime:     uptime,
		dispatcher: NewDispatcher(repo, prober, status, uptime, maxConcurrent, discardLogger()),
	}
}

func (f *fixture) addService(t *testing.T, name, rawURL string) models.Service {
	t.Helper()
	svc := models.Service{Name: name}
	if rawURL != "" {
		svc.URL = &rawURL
	}
	created, err := f.repo.CreateService(context.Background(), svc)
	if err != nil {
		t.Fatalf("create service %s: %v", name, err)
	}
	return created
}

type proberFunc func(ctx context.Context, svc models.Service) ProbeResult

func (f proberFunc) Probe(ctx context.Context, svc models.Service) ProbeResult { return f(ctx, svc) }

func TestCheckAllRecordsUpAndDown(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	f := newFixture(t, nil, 20)
	ctx := context.Background()
	jelly := f.addService(t, "jellyfin", up.URL)
	tmdb := f.addService(t, "tmdb", down.URL)
	f.addService(t, "captcha", "")

	summary, err := f.dispatcher.CheckAll(ctx)
	if err != nil {
		t.Fatalf("check all: %v", err)
	}
	if summary != (Summary{Checked: 2, Up: 1, Down: 1, Skipped: 1}) {
		t.Fatalf("summary = %+v", summary)
	}

	got, _ := f.repo.GetService(ctx, jelly.ID)
	if got.Status != models.StatusOperational || got.LastResponseTimeMs == nil {
		t.Fatalf("jellyfin = %+v, want operational with response time", got)
	}
	got, _ = f.repo.GetService(ctx, tmdb.ID)
	if got.Status != models.StatusDowntime || got.LastResponseTimeMs != nil {
		t.Fatalf("tmdb = %+v, want downtime with null response time", got)
	}
	if got.UptimePercentage != 0 {
		t.Fatalf("tmdb uptime = %v, want 0", got.UptimePercentage)
	}

	res, err := f.repo.LatestResult(ctx, tmdb.ID)
	if err != nil {
		t.Fatalf("latest result: %v", err)
	}
	if res.Status != models.CheckDown || res.ResponseTimeMs != nil || res.FailureReason != models.FailureHTTPStatus {
		t.Fatalf("tmdb result = %+v", res)
	}

	hist, _ := f.repo.UptimeHistory(ctx, jelly.ID, "2000-01-01")
	if len(hist) != 1 || hist[0].TotalChecks != 1 || hist[0].UptimePercentage != 100 {
		t.Fatalf("jellyfin history = %+v", hist)
	}

	f.status.Wait()
	tr := f.notifier.transitions()
	if len(tr) != 1 || tr[0].Service.ID != tmdb.ID || tr[0].To != models.StatusDowntime {
		t.Fatalf("transitions = %+v, want one tmdb -> downtime", tr)
	}
}

func TestCheckAllMaintenanceMidCheckWritesNothing(t *testing.T) {
	var f *fixture
	f = newFixture(t, proberFunc(func(ctx context.Context, svc models.Service) ProbeResult {
		if _, err := f.repo.SetServiceStatus(ctx, svc.ID, models.StatusMaintenance); err != nil {
			t.Errorf("set maintenance: %v", err)
		}
		return ProbeResult{Status: models.CheckDown, FailureReason: models.FailureConnection}
	}), 0)
	ctx := context.Background()
	svc := f.addService(t, "auth", "https://auth.playjelly.app")

	summary, err := f.dispatcher.CheckAll(ctx)
	if err != nil {
		t.Fatalf("check all: %v", err)
	}
	if summary != (Summary{Skipped: 1}) {
		t.Fatalf("summary = %+v", summary)
	}
	if n, _ := f.repo.CountResults(ctx, svc.ID); n != 0 {
		t.Fatalf("results = %d, want 0", n)
	}
	got, _ := f.repo.GetService(ctx, svc.ID)
	if got.Status != models.StatusMaintenance || got.LastCheckedAt != nil {
		t.Fatalf("service = %+v", got)
	}

	out, err := f.dispatcher.CheckOne(ctx, svc.ID)
	if err != nil || !out.Skipped || out.Result != nil {
		t.Fatalf("check one = %+v %v", out, err)
	}
}

func TestCheckAllSkipsMaintenance(t *testing.T) {
	var probes int32
	f := newFixture(t, proberFunc(func(ctx context.Context, svc models.Service) ProbeResult {
		atomic.AddInt32(&probes, 1)
		return ProbeResult{Status: models.CheckDown, FailureReason: models.FailureConnection}
	}), 0)
	ctx := context.Background()
	svc := f.addService(t, "auth", "https://auth.playjelly.app")
	if _, err := f.status.SetStatus(ctx, svc.ID, models.StatusMaintenance); err != nil {
		t.Fatalf("set status: %v", err)
	}

	summary, err := f.dispatcher.CheckAll(ctx)
	if err != nil {
		t.Fatalf("check all: %v", err)
	}
	if summary.Skipped != 1 || summary.Checked != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if atomic.LoadInt32(&probes) != 0 {
		t.Fatal("maintenance service was probed")
	}
	if n, _ := f.repo.CountResults(ctx, svc.ID); n != 0 {
		t.Fatalf("results = %d, want 0", n)
	}
	got, _ := f.repo.GetService(ctx, svc.ID)
	if got.Status != models.StatusMaintenance {
		t.Fatalf("status = %s, want maintenance", got.Status)
	}
}

func TestCheckAllBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	f := newFixture(t, proberFunc(func(ctx context.Context, svc models.Service) ProbeResult {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		ms := int64(5)
		return ProbeResult{Status: models.CheckUp, ResponseTimeMs: &ms}
	}), 2)

	for i := 0; i < 6; i++ {
		f.addService(t, fmt.Sprintf("svc-%d", i), "https://example.com")
	}
	summary, err := f.dispatcher.CheckAll(context.Background())
	if err != nil {
		t.Fatalf("check all: %v", err)
	}
	if summary.Up != 6 {
		t.Fatalf("summary = %+v", summary)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", p)
	}
}

func TestCheckAllIsolatesPanics(t *testing.T) {
	f := newFixture(t, proberFunc(func(ctx context.Context, svc models.Service) ProbeResult {
		if svc.Name == "bad" {
			panic("boom")
		}
		return ProbeResult{Status: models.CheckDown, FailureReason: models.FailureConnection}
	}), 0)
	f.addService(t, "bad", "https://bad.example.com")
	good := f.addService(t, "good", "https://good.example.com")

	summary, err := f.dispatcher.CheckAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("err = %v, want joined panic error", err)
	}
	if summary.Checked != 1 || summary.Down != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if n, _ := f.repo.CountResults(context.Background(), good.ID); n != 1 {
		t.Fatalf("good results = %d, want 1", n)
	}
}

func TestCheckOne(t *testing.T) {
	f := newFixture(t, proberFunc(func(ctx context.Context, svc models.Service) ProbeResult {
		ms := int64(42)
		return ProbeResult{Status: models.CheckUp, ResponseTimeMs: &ms}
	}), 0)
	ctx := context.Background()
	svc := f.addService(t, "jellyfin", "https://media.playjelly.app")
	noURL := f.addService(t, "captcha", "")

	out, err := f.dispatcher.CheckOne(ctx, svc.ID)
	if err != nil {
		t.Fatalf("check one: %v", err)
	}
	if out.Result == nil || out.Result.Status != models.CheckUp || *out.Result.ResponseTimeMs != 42 {
		t.Fatalf("outcome = %+v", out)
	}

	out, err = f.dispatcher.CheckOne(ctx, noURL.ID)
	if err != nil || !out.Skipped || out.SkipReason != "no url" {
		t.Fatalf("outcome = %+v err=%v, want skipped", out, err)
	}

	if _, err := f.dispatcher.CheckOne(ctx, "missing"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	svc := f.addService(t, "jellyfin", "https://x")
	res := models.HealthCheckResult{ServiceID: svc.ID, Status: models.CheckDown, CheckedAt: time.Now().UTC()}

	for i := 0; i < 2; i++ {
		status, applied, err := f.status.Apply(ctx, svc, res)
		if err != nil || !applied || status != models.StatusDowntime {
			t.Fatalf("apply #%d: %s %v %v", i, status, applied, err)
		}
	}
	f.status.Wait()
	if n := len(f.notifier.transitions()); n != 1 {
		t.Fatalf("transitions = %d, want 1", n)
	}
}

func TestApplyOverwritesDegraded(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	svc := f.addService(t, "tmdb", "https://x")
	if _, err := f.status.SetStatus(ctx, svc.ID, models.StatusDegraded); err != nil {
		t.Fatal(err)
	}
	ms := int64(10)
	res := models.HealthCheckResult{ServiceID: svc.ID, Status: models.CheckUp, ResponseTimeMs: &ms, CheckedAt: time.Now()}
	if status, _, _ := f.status.Apply(ctx, svc, res); status != models.StatusOperational {
		t.Fatalf("status = %s, want operational", status)
	}
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	svc := f.addService(t, "auth", "")

	got, err := f.status.SetStatus(ctx, svc.ID, models.StatusDegraded)
	if err != nil || got.Status != models.StatusDegraded {
		t.Fatalf("set status = %+v %v", got, err)
	}
	if _, err := f.status.SetStatus(ctx, svc.ID, "exploded"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
	if _, err := f.status.SetStatus(ctx, "missing", models.StatusOperational); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	f.status.Wait()
	tr := f.notifier.transitions()
	if len(tr) != 1 || tr[0].From != models.StatusOperational || tr[0].To != models.StatusDegraded {
		t.Fatalf("transitions = %+v", tr)
	}
}

func TestAggregatorRecordUpdatesServiceUptime(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	svc := f.addService(t, "jellyfin", "https://x")
	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	statuses := []models.CheckStatus{models.CheckUp, models.CheckDown, models.CheckUp, models.CheckUp}
	for i, s := range statuses {
		if _, err := f.repo.InsertResult(ctx, models.HealthCheckResult{ServiceID: svc.ID, Status: s, CheckedAt: day.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		rec, err := f.uptime.Record(ctx, svc.ID, day)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if rec.UpChecks != 3 || rec.TotalChecks != 4 || rec.UptimePercentage != 75 {
			t.Fatalf("record = %+v", rec)
		}
	}
	got, _ := f.repo.GetService(ctx, svc.ID)
	if got.UptimePercentage != 75 {
		t.Fatalf("service uptime = %v, want 75", got.UptimePercentage)
	}

	f.uptime.now = func() time.Time { return day.AddDate(0, 0, 10) }
	hist, err := f.uptime.History(ctx, svc.ID, 30)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history = %+v %v", hist, err)
	}
	hist, _ = f.uptime.History(ctx, svc.ID, 5)
	if len(hist) != 0 {
		t.Fatalf("5 day history = %+v, want empty", hist)
	}
}

type memStore struct {
	mu   sync.Mutex
	objs map[string][]byte
	err  error
}

func (m *memStore) Put(_ context.Context, key string, body []byte, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objs == nil {
		m.objs = map[string][]byte{}
	}
	m.objs[key] = append([]byte(nil), body...)
	return nil
}

func seedUptime(t *testing.T, repo *db.Repository, serviceID string, start time.Time, days int) {
	t.Helper()
	for i := 0; i < days; i++ {
		avg := 120.5
		rec := models.UptimeRecord{
			ServiceID:         serviceID,
			Date:              db.DayKey(start.AddDate(0, 0, i)),
			UpChecks:          1439,
			TotalChecks:       1440,
			UptimePercentage:  db.UptimePercentage(1439, 1440),
			AvgResponseTimeMs: &avg,
		}
		if err := repo.InsertUptimeRecord(context.Background(), rec); err != nil {
			t.Fatalf("insert uptime: %v", err)
		}
	}
}

func TestArchiverExportsThenDeletes(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 3, 0, 0, 0, time.UTC)
	a := f.addService(t, "jellyfin", "")
	b := f.addService(t, "tmdb", "")
	// 250 old rows per service, plus 30 recent rows for one of them.
	seedUptime(t, f.repo, a.ID, now.AddDate(-2, 0, 0), 250)
	seedUptime(t, f.repo, b.ID, now.AddDate(-2, 0, 0), 250)
	seedUptime(t, f.repo, a.ID, now.AddDate(0, 0, -30), 30)

	store := &memStore{}
	arch := NewArchiver(f.repo, store, "uptime-archives/", 365, discardLogger())
	arch.now = func() time.Time { return now }

	res, err := arch.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Archived != 500 {
		t.Fatalf("archived = %d, want 500", res.Archived)
	}
	wantKey := fmt.Sprintf("uptime-archives/uptime_history_2025-10-01_%d.csv", now.Unix())
	if res.ObjectKey != wantKey {
		t.Fatalf("key = %q, want %q", res.ObjectKey, wantKey)
	}
	body := string(store.objs[wantKey])
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 501 {
		t.Fatalf("csv lines = %d, want 501", len(lines))
	}
	if lines[0] != "service_id,date,uptime_percentage,avg_response_time_ms,up_checks,total_checks" {
		t.Fatalf("header = %q", lines[0])
	}
	if left, _ := f.repo.CountUptimeRecords(ctx); left != 30 {
		t.Fatalf("remaining rows = %d, want 30", left)
	}

	// Second run finds nothing and writes nothing.
	res, err = arch.Run(ctx)
	if err != nil || res.Archived != 0 || res.ObjectKey != "" {
		t.Fatalf("second run = %+v %v", res, err)
	}
	if len(store.objs) != 1 {
		t.Fatalf("objects = %d, want 1", len(store.objs))
	}
}

func TestArchiverBlobFailureDeletesNothing(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	svc := f.addService(t, "jellyfin", "")
	seedUptime(t, f.repo, svc.ID, now.AddDate(-2, 0, 0), 40)

	arch := NewArchiver(f.repo, &memStore{err: errors.New("bucket unavailable")}, "", 365, discardLogger())
	arch.now = func() time.Time { return now }

	if _, err := arch.Run(ctx); err == nil {
		t.Fatal("expected upload error")
	}
	if n, _ := f.repo.CountUptimeRecords(ctx); n != 40 {
		t.Fatalf("rows = %d, want 40 untouched", n)
	}
}

func TestEncodeUptimeCSVNullAverage(t *testing.T) {
	out, err := encodeUptimeCSV([]models.UptimeRecord{{ServiceID: "s", Date: "2024-01-01", UpChecks: 0, TotalChecks: 2, UptimePercentage: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "s,2024-01-01,0,,0,2") {
		t.Fatalf("csv = %q", out)
	}
}

func TestRetentionPrune(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := f.addService(t, "jellyfin", "")
	for _, age := range []int{1, 10, 40, 90} {
		if _, err := f.repo.InsertResult(ctx, models.HealthCheckResult{ServiceID: svc.ID, Status: models.CheckUp, CheckedAt: now.AddDate(0, 0, -age)}); err != nil {
			t.Fatal(err)
		}
	}
	r := NewRetention(f.repo, 30, discardLogger())
	r.now = func() time.Time { return now }
	n, err := r.Prune(ctx)
	if err != nil || n != 2 {
		t.Fatalf("prune = %d %v, want 2", n, err)
	}
	if left, _ := f.repo.CountResults(ctx, svc.ID); left != 2 {
		t.Fatalf("remaining = %d, want 2", left)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestAlertsNotify(t *testing.T) {
	var slackBody string
	alerts := NewAlerts("https://hooks.slack.test/T000", "", "ops@playjelly.app", discardLogger())
	alerts.slack.HTTP = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(r.Body)
		slackBody = string(b)
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("ok")), Header: http.Header{}}, nil
	})}
	var subject string
	alerts.sendMail = func(m *mail.SGMailV3) (int, error) {
		subject = m.Subject
		return 202, nil
	}

	u := "https://media.playjelly.app"
	alerts.Notify(context.Background(), Transition{
		Service: models.Service{ID: "s1", Name: "Jellyfin", URL: &u},
		From:    models.StatusOperational,
		To:      models.StatusDowntime,
		At:      time.Now(),
	})
	if !strings.Contains(slackBody, "Jellyfin") || !strings.Contains(slackBody, "downtime") {
		t.Fatalf("slack body = %q", slackBody)
	}
	if subject != "[CRITICAL] Jellyfin is down" {
		t.Fatalf("subject = %q", subject)
	}
}

func TestSlackWebhookError(t *testing.T) {
	s := NewSlackWebhook("https://hooks.slack.test/T000")
	s.HTTP = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 404, Body: io.NopCloser(strings.NewReader("no_service")), Header: http.Header{}}, nil
	})}
	err := s.Send(context.Background(), Transition{Service: models.Service{Name: "x"}, To: models.StatusDowntime})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want status 404", err)
	}
	if (&SlackWebhook{}).Enabled() {
		t.Fatal("empty webhook should be disabled")
	}
}

func TestSchedulerRunsImmediatelyAndStops(t *testing.T) {
	var probes int32
	f := newFixture(t, proberFunc(func(ctx context.Context, svc models.Service) ProbeResult {
		atomic.AddInt32(&probes, 1)
		ms := int64(1)
		return ProbeResult{Status: models.CheckUp, ResponseTimeMs: &ms}
	}), 0)
	f.addService(t, "jellyfin", "https://x")

	s := NewScheduler(SchedulerConfig{CheckInterval: time.Hour}, f.dispatcher, nil, nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&probes) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if atomic.LoadInt32(&probes) != 1 {
		t.Fatalf("probes = %d, want 1", probes)
	}
}
