package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/job-board/internal/config"
	"github.com/spec-kit/job-board/internal/service"
)

// Mailer delivers a single email.
type Mailer interface {
	Send(email service.Email) error
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	cfg config.NotificationConfig
}

// NewSMTPMailer constructs a mailer from configuration.
func NewSMTPMailer(cfg config.NotificationConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(email service.Email) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.EmailFrom)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/html", email.HTMLBody)

	d := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.SMTPUser, m.cfg.SMTPPassword)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// LogMailer only logs; used when SMTP is not configured.
type LogMailer struct {
	logger *zap.Logger
}

func (m *LogMailer) Send(email service.Email) error {
	m.logger.Info("email not sent, smtp disabled",
		zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}

// NewMailer picks SMTP delivery when configured and logging otherwise.
func NewMailer(cfg config.NotificationConfig, logger *zap.Logger) Mailer {
	if cfg.SMTPEnabled() {
		return NewSMTPMailer(cfg)
	}
	return &LogMailer{logger: logger}
}

// NotificationWorker drains queued emails on a single goroutine.
type NotificationWorker struct {
	queue  chan service.Email
	mailer Mailer
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewNotificationWorker builds a worker with a bounded queue.
func NewNotificationWorker(mailer Mailer, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &NotificationWorker{
		queue:  make(chan service.Email, queueSize),
		mailer: mailer,
		logger: logger,
	}
}

// Enqueue never blocks; it returns false when the queue is full.
func (w *NotificationWorker) Enqueue(email service.Email) bool {
	select {
	case w.queue <- email:
		return true
	default:
		return false
	}
}

// Start runs the delivery loop until ctx is cancelled, then drains what is queued.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				w.drain()
				return
			case email := <-w.queue:
				w.deliver(email)
			}
		}
	}()
}

// Wait blocks until the delivery loop has exited.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

func (w *NotificationWorker) drain() {
	for {
		select {
		case email := <-w.queue:
			w.deliver(email)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliver(email service.Email) {
	if err := w.mailer.Send(email); err != nil {
		w.logger.Warn("email delivery failed", zap.String("to", email.To), zap.Error(err))
		return
	}
	w.logger.Debug("email delivered", zap.String("to", email.To), zap.String("subject", email.Subject))
}

// StartNotificationWorker registers notification handlers and starts delivery.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, w *NotificationWorker) {
	if notificationService == nil || w == nil {
		return
	}
	notificationService.RegisterHandlers()
	w.Start(ctx)
}
