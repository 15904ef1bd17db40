package notifier

import (
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/noah-isme/peerobs-api/pkg/config"
)

// Outcome reports what happened to a best-effort notification. Callers log
// failures but never propagate them as the primary operation's error.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Notifier delivers fire-and-forget email notifications.
type Notifier interface {
	Send(to, subject, textBody, htmlBody string) Outcome
}

// SMTPNotifier sends mail through a plain SMTP relay.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewSMTP constructs an SMTP-backed notifier.
func NewSMTP(cfg config.MailConfig, logger *zap.Logger) *SMTPNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

// Send delivers a message and reports the outcome. Errors are logged, never
// returned.
func (n *SMTPNotifier) Send(to, subject, textBody, htmlBody string) Outcome {
	if to == "" {
		return OutcomeSkipped
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	if htmlBody != "" {
		msg.AddAlternative("text/html", htmlBody)
	}

	if err := n.dialer.DialAndSend(msg); err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return OutcomeFailed
	}
	return OutcomeSent
}

// Noop is used when mail is disabled; every send is skipped.
type Noop struct{}

// Send implements Notifier.
func (Noop) Send(string, string, string, string) Outcome { return OutcomeSkipped }
