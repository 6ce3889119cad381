package service

import (
	"context"
	"fmt"
	netmail "net/mail"

	"go.uber.org/zap"

	"github.com/fos7a/institute-api/pkg/jobs"
	"github.com/fos7a/institute-api/pkg/mail"
)

// NotificationKind selects the email template sent to an applicant.
type NotificationKind string

const (
	NotifyPasswordReset       NotificationKind = "password_reset"
	NotifyApplicationApproved NotificationKind = "application_approved"
	NotifyApplicationRejected NotificationKind = "application_rejected"
	NotifyPaymentLink         NotificationKind = "payment_link"
)

// Notification is a queued applicant email.
type Notification struct {
	Kind     NotificationKind
	Email    string
	FullName string
	// PublicID, Reason, Link and Token are filled depending on Kind.
	PublicID string
	Reason   string
	Link     string
	Token    string
}

type notificationMetrics interface {
	RecordNotification(kind string, err error)
}

// NotificationService renders applicant emails and delivers them from a background queue.
type NotificationService struct {
	sender    mail.Sender
	queue     *jobs.Queue
	metrics   notificationMetrics
	logger    *zap.Logger
	publicURL string
}

// NewNotificationService builds the dispatcher. Call Start before enqueueing.
func NewNotificationService(sender mail.Sender, metrics notificationMetrics, logger *zap.Logger, publicURL string, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{sender: sender, metrics: metrics, logger: logger, publicURL: publicURL}
	cfg.Logger = logger
	svc.queue = jobs.NewQueue("notifications", svc.deliver, cfg)
	return svc
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Stats exposes queue counters.
func (s *NotificationService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// Notify enqueues n. Delivery happens asynchronously with retries.
func (s *NotificationService) Notify(_ context.Context, n Notification) error {
	if n.Email == "" {
		return fmt.Errorf("notification %s: missing recipient", n.Kind)
	}
	return s.queue.Enqueue(jobs.Job{Type: string(n.Kind), Payload: n})
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	msg, err := s.render(n)
	if err != nil {
		return err
	}
	err = s.sender.Send(ctx, msg)
	if s.metrics != nil {
		s.metrics.RecordNotification(string(n.Kind), err)
	}
	return err
}

func (s *NotificationService) render(n Notification) (mail.Message, error) {
	msg := mail.Message{To: netmail.Address{Name: n.FullName, Address: n.Email}}
	greeting := "Hello"
	if n.FullName != "" {
		greeting = "Hello " + n.FullName
	}

	switch n.Kind {
	case NotifyPasswordReset:
		msg.Subject = "Reset your password"
		msg.Text = fmt.Sprintf("%s,\n\nUse the link below to choose a new password. It expires soon.\n\n%s/reset-password?token=%s\n\nIf you did not ask for this, ignore this email.\n",
			greeting, s.publicURL, n.Token)
	case NotifyApplicationApproved:
		msg.Subject = fmt.Sprintf("Application %s approved", n.PublicID)
		msg.Text = fmt.Sprintf("%s,\n\nYour application %s has been approved. We will send your payment link shortly.\n", greeting, n.PublicID)
	case NotifyApplicationRejected:
		msg.Subject = fmt.Sprintf("Application %s update", n.PublicID)
		msg.Text = fmt.Sprintf("%s,\n\nUnfortunately your application %s was not accepted.\n\nReason: %s\n", greeting, n.PublicID, n.Reason)
	case NotifyPaymentLink:
		msg.Subject = fmt.Sprintf("Payment link for application %s", n.PublicID)
		msg.Text = fmt.Sprintf("%s,\n\nComplete your enrollment by paying at:\n\n%s\n", greeting, n.Link)
	default:
		return mail.Message{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return msg, nil
}
