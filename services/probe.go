package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"playjelly/models"
)

const DefaultProbeTimeout = 5 * time.Second

// ProbeResult is the outcome of one liveness probe.
type ProbeResult struct {
	Status         models.CheckStatus
	ResponseTimeMs *int64
	StatusCode     *int
	FailureReason  models.FailureReason
	Err            error
}

// Prober issues HTTP liveness probes. A probe sends HEAD and retries with GET
// inside the same deadline when the server rejects HEAD.
type Prober struct {
	timeout time.Duration
	base    *http.Transport
	dialer  *net.Dialer
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.MaxIdleConnsPerHost = 4
	return &Prober{
		timeout: timeout,
		base:    base,
		dialer:  &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second},
	}
}

// Probe checks svc. It never returns an error: every failure, including a
// panic in the HTTP stack, becomes a down result.
func (p *Prober) Probe(ctx context.Context, svc models.Service) (res ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			res = down(models.FailureRequest, fmt.Errorf("probe panic: %v", r))
		}
	}()

	if svc.URL == nil || *svc.URL == "" {
		return down(models.FailureRequest, errors.New("service has no url"))
	}
	target, err := url.Parse(*svc.URL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return down(models.FailureRequest, fmt.Errorf("invalid url %q", *svc.URL))
	}

	client, cleanup := p.clientFor(svc, target)
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.do(ctx, client, http.MethodHead, target.String())
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		drain(resp)
		start = time.Now()
		resp, err = p.do(ctx, client, http.MethodGet, target.String())
	}
	if err != nil {
		return down(classify(ctx, err), err)
	}
	elapsed := time.Since(start).Milliseconds()
	drain(resp)

	code := resp.StatusCode
	if code < 200 || code > 299 {
		res = down(models.FailureHTTPStatus, fmt.Errorf("unexpected status %d", code))
		res.StatusCode = &code
		return res
	}
	return ProbeResult{Status: models.CheckUp, ResponseTimeMs: &elapsed, StatusCode: &code}
}

func (p *Prober) do(ctx context.Context, client *http.Client, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "playjelly-status/1.0")
	return client.Do(req)
}

// clientFor returns a client for svc. With an IP or port override, dials to
// the URL's own host:port go to the override address instead. The Host
// header and TLS server name stay those of the URL.
func (p *Prober) clientFor(svc models.Service, target *url.URL) (*http.Client, func()) {
	hasIP := svc.IPAddress != nil && *svc.IPAddress != ""
	hasPort := svc.Port != nil && *svc.Port > 0
	if !hasIP && !hasPort {
		return &http.Client{Transport: p.base}, func() {}
	}

	origPort := target.Port()
	if origPort == "" {
		origPort = "80"
		if target.Scheme == "https" {
			origPort = "443"
		}
	}
	original := net.JoinHostPort(target.Hostname(), origPort)

	host, port := target.Hostname(), origPort
	if hasIP {
		host = *svc.IPAddress
	}
	if hasPort {
		port = strconv.Itoa(*svc.Port)
	}
	override := net.JoinHostPort(host, port)

	t := p.base.Clone()
	t.Proxy = nil
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if addr == original {
			addr = override
		}
		return p.dialer.DialContext(ctx, network, addr)
	}
	return &http.Client{Transport: t}, t.CloseIdleConnections
}

func down(reason models.FailureReason, err error) ProbeResult {
	return ProbeResult{Status: models.CheckDown, FailureReason: reason, Err: err}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func classify(ctx context.Context, err error) models.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.FailureTimeout
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return models.FailureConnection
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return models.FailureConnection
	}
	return models.FailureRequest
}
