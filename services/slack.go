package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"playjelly/models"
)

type SlackWebhook struct {
	URL  string
	HTTP *http.Client
}

func NewSlackWebhook(url string) *SlackWebhook {
	return &SlackWebhook{URL: url, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (s *SlackWebhook) Enabled() bool { return s != nil && s.URL != "" }

func (s *SlackWebhook) Send(ctx context.Context, t Transition) error {
	if !s.Enabled() {
		return fmt.Errorf("slack webhook not configured")
	}
	payload := map[string]string{
		"text": fmt.Sprintf("%s Status change\n\nService: %s\nFrom: %s\nTo: %s\nTime: %s",
			transitionEmoji(t.To),
			t.Service.Name,
			t.From,
			t.To,
			t.At.UTC().Format(time.RFC3339),
		),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

func transitionEmoji(to models.ServiceStatus) string {
	switch to {
	case models.StatusOperational:
		return "✅"
	case models.StatusDowntime:
		return "🚨"
	case models.StatusMaintenance:
		return "🛠"
	}
	return "⚠️"
}
