package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/events"
)

// Email is a rendered message waiting for delivery.
type Email struct {
	To       string
	Subject  string
	HTMLBody string
}

// EmailQueue accepts messages without blocking; it reports false when the
// message was dropped.
type EmailQueue interface {
	Enqueue(email Email) bool
}

// NotificationService turns domain events into applicant emails.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      EmailQueue
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue EmailQueue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventApplicationSubmitted, n.handleApplicationSubmitted)
	n.dispatcher.Subscribe(events.EventApplicationStatusChanged, n.handleApplicationStatusChanged)
	n.dispatcher.Subscribe(events.EventApplicationWithdrawn, n.handleApplicationStatusChanged)
	n.dispatcher.Subscribe(events.EventJobCreated, n.handleJobCreated)
}

func (n *NotificationService) handleApplicationSubmitted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ApplicationSubmittedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	n.logger.Info("ApplicationSubmitted",
		zap.String("application_id", event.ApplicationID),
		zap.String("job_id", event.JobID))

	n.enqueue(Email{
		To:      payload.ApplicantEmail,
		Subject: "Application received: " + payload.JobTitle,
		HTMLBody: renderEmail(payload.ApplicantName,
			fmt.Sprintf("We received your application for <b>%s</b>. We will let you know when its status changes.",
				html.EscapeString(payload.JobTitle))),
	})
	return nil
}

func (n *NotificationService) handleApplicationStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ApplicationStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	n.logger.Info("ApplicationStatusChanged",
		zap.String("application_id", event.ApplicationID),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)))

	// Applicants already know they withdrew.
	if payload.NewStatus == domain.ApplicationStatusWithdrawn {
		return nil
	}
	n.enqueue(Email{
		To:      payload.ApplicantEmail,
		Subject: "Application update: " + payload.JobTitle,
		HTMLBody: renderEmail(payload.ApplicantName,
			fmt.Sprintf("Your application for <b>%s</b> is now <b>%s</b>.",
				html.EscapeString(payload.JobTitle), html.EscapeString(string(payload.NewStatus)))),
	})
	return nil
}

func (n *NotificationService) handleJobCreated(_ context.Context, event events.Event) error {
	n.logger.Info("JobCreated", zap.String("job_id", event.JobID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) enqueue(email Email) {
	if n.queue == nil || strings.TrimSpace(email.To) == "" {
		return
	}
	if !n.queue.Enqueue(email) {
		n.logger.Warn("notification queue full, dropping email",
			zap.String("to", email.To), zap.String("subject", email.Subject))
	}
}

func renderEmail(name, line string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 560px; margin: 0 auto; padding: 16px;">
    <p>Hello %s,</p>
    <p>%s</p>
    <p style="font-size: 12px; color: #6b7280;">This is an automated message from the job board.</p>
  </div>
</body>
</html>`, html.EscapeString(name), line)
}
