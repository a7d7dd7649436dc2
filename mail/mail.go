// Package mail ships two MailSender implementations: a log-only sender for
// development and an SMTP sender for real delivery.
package mail

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// LogSender writes outbound mail to the process log instead of delivering
// it. Useful in development and in the examples.
type LogSender struct {
	// Logger defaults to the standard logger when nil.
	Logger *log.Logger
}

// Send logs the message and always succeeds.
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("mail to=%s subject=%q body=%q", to, subject, body)
	return nil
}

// SMTPConfig identifies the relay for [SMTPSender].
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
	// Host overrides the auth host, defaulting to the host part of Addr.
	Host string
}

// SMTPSender delivers mail through a single SMTP relay with PLAIN auth.
// Messages are plain text.
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender validates cfg and returns an [SMTPSender].
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("smtp relay address required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address required")
	}
	if cfg.Host == "" {
		host, _, found := strings.Cut(cfg.Addr, ":")
		if !found {
			return nil, fmt.Errorf("smtp relay address must be host:port")
		}
		cfg.Host = host
	}
	return &SMTPSender{config: cfg}, nil
}

// Send delivers one message. Context cancellation is not honored mid-dialog;
// the SMTP conversation runs to completion or error.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	msg := buildMessage(s.config.From, to, subject, body)
	return smtp.SendMail(s.config.Addr, auth, s.config.From, []string{to}, msg)
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
