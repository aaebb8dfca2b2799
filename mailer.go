package sloth

import (
	"context"
	"fmt"
	"net"
	"net/smtp"

	goerrors "github.com/goliatone/go-errors"
)

// SMTPMailer sends plain-text mail over authenticated SMTP. It backs the
// outbound email endpoint that the notifier of other deployments points at.
type SMTPMailer struct {
	host     string
	port     string
	from     string
	password string
	logger   Logger

	// sendMail is swappable for tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer builds a mailer from config.
func NewSMTPMailer(cfg *Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.GetSMTPHost(),
		port:     cfg.GetSMTPPort(),
		from:     cfg.GetFromEmail(),
		password: cfg.GetFromEmailPassword(),
		logger:   defLogger{},
		sendMail: smtp.SendMail,
	}
}

// WithLogger replaces the default logger.
func (m *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Deliver sends a single plain-text message.
func (m *SMTPMailer) Deliver(ctx context.Context, to, subject, text string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "mail delivery cancelled")
	default:
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, text)

	auth := smtp.PlainAuth("", m.from, m.password, m.host)
	addr := net.JoinHostPort(m.host, m.port)

	if err := m.sendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed")
	}

	m.logger.Info("mail delivered to %s", to)

	return nil
}
