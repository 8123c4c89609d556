package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Config carries SMTP connection settings.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SMTPMailer sends plain-text mail over SMTP.
type SMTPMailer struct {
	host string
	port int
	user string
	pass string
	from string
}

// New returns a configured mailer, or nil when the config is incomplete so
// callers can treat email as optional.
func New(cfg Config) *SMTPMailer {
	if strings.TrimSpace(cfg.Host) == "" || cfg.Port <= 0 || strings.TrimSpace(cfg.From) == "" {
		return nil
	}
	return &SMTPMailer{
		host: strings.TrimSpace(cfg.Host),
		port: cfg.Port,
		user: strings.TrimSpace(cfg.User),
		pass: cfg.Pass,
		from: strings.TrimSpace(cfg.From),
	}
}

// SendResult delivers a plain-text message to a single recipient.
func (m *SMTPMailer) SendResult(ctx context.Context, to, subject, body string) error {
	_ = ctx
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	msg := "From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
		body + "\r\n"

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
