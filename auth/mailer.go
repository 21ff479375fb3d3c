package auth

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/gomail.v2"
)

// SMTPMailerConfig carries the outbound transport credentials and the base
// URL used to build verification links. Injected at construction, never read
// from ambient state.
type SMTPMailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

// SMTPMailer delivers verification emails over SMTP.
type SMTPMailer struct {
	cfg    SMTPMailerConfig
	dialer *gomail.Dialer
	logger Logger
}

// NewSMTPMailer creates the dispatcher.
func NewSMTPMailer(cfg SMTPMailerConfig, logger Logger) *SMTPMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

// VerificationLink builds the public link embedding the token.
func (m *SMTPMailer) VerificationLink(token string) string {
	return fmt.Sprintf("%s/api/users/verify/%s", strings.TrimRight(m.cfg.BaseURL, "/"), token)
}

// SendVerification delivers the verification link to the address. The
// context only bounds this call; delivery is at-least-once from the caller's
// perspective and may be retried via the resend operation.
func (m *SMTPMailer) SendVerification(ctx context.Context, to, token string) error {
	link := m.VerificationLink(token)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Verify your email")
	msg.SetBody("text/html", fmt.Sprintf(
		`<h1>Welcome!</h1>
<p>Please verify your email address by clicking the link below:</p>
<a href="%s">Verify Email</a>`, link))

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "verification dispatch timed out")
	case err := <-done:
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send verification email")
		}
	}

	m.logger.Debug("verification email sent", "to", to)
	return nil
}

var _ Mailer = (*SMTPMailer)(nil)
