package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"playjelly/models"
)

// Alerts sends status transitions to Slack and by email. Each channel is
// best effort and skipped when not configured.
type Alerts struct {
	slack      *SlackWebhook
	alertEmail string
	sendMail   func(*mail.SGMailV3) (int, error)
	log        *slog.Logger
}

func NewAlerts(slackURL, sendgridKey, alertEmail string, logger *slog.Logger) *Alerts {
	a := &Alerts{slack: NewSlackWebhook(slackURL), alertEmail: alertEmail, log: logger}
	if sendgridKey != "" {
		client := sendgrid.NewSendClient(sendgridKey)
		a.sendMail = func(m *mail.SGMailV3) (int, error) {
			resp, err := client.Send(m)
			if err != nil {
				return 0, err
			}
			return resp.StatusCode, nil
		}
	}
	return a
}

func (a *Alerts) Notify(ctx context.Context, t Transition) {
	if a.slack.Enabled() {
		if err := a.slack.Send(ctx, t); err != nil {
			a.log.Error("slack alert failed", "service", t.Service.Name, "err", err)
		} else {
			a.log.Info("slack alert sent", "service", t.Service.Name)
		}
	}

	if a.sendMail == nil || a.alertEmail == "" {
		a.log.Debug("missing sendgrid config, skipping email")
		return
	}
	subject, body := transitionEmail(t)
	from := mail.NewEmail("PlayJelly Status", a.alertEmail)
	to := mail.NewEmail("Admin", a.alertEmail)
	code, err := a.sendMail(mail.NewSingleEmail(from, subject, to, body, body))
	if err != nil {
		a.log.Error("email alert failed", "service", t.Service.Name, "err", err)
		return
	}
	if code >= 400 {
		a.log.Error("email alert rejected", "service", t.Service.Name, "status_code", code)
		return
	}
	a.log.Info("email alert sent", "service", t.Service.Name, "status_code", code)
}

func transitionEmail(t Transition) (subject, body string) {
	switch t.To {
	case models.StatusDowntime:
		subject = fmt.Sprintf("[CRITICAL] %s is down", t.Service.Name)
	case models.StatusOperational:
		subject = fmt.Sprintf("[RESOLVED] %s is operational", t.Service.Name)
	default:
		subject = fmt.Sprintf("[NOTICE] %s is %s", t.Service.Name, t.To)
	}

	url := "-"
	if t.Service.URL != nil {
		url = *t.Service.URL
	}
	body = fmt.Sprintf(`%s

SERVICE:
Name: %s
URL: %s

CHANGE:
From: %s
To: %s
Time: %s

---
Service ID: %s`,
		subject,
		t.Service.Name,
		url,
		t.From,
		t.To,
		t.At.UTC().Format(time.RFC3339),
		t.Service.ID,
	)
	return subject, body
}
