/*
mailer.go - Mail transport

PURPOSE:
  The thin boundary to SMTP. Everything above this (templates, kinds,
  idempotency) is transport-agnostic; everything below is gomail.

CONFIGURATION:
  Host/port/credentials come from the environment (see cmd/server).
  The From header is rendered as "Finova <address>".
*/
package notify

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// Mailer delivers a single HTML email. No retry contract.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// =============================================================================
// SMTP MAILER (gomail)
// =============================================================================

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	cfg    SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.FromName == "" {
		cfg.FromName = "Finova"
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg:    cfg,
	}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.cfg.From, m.cfg.FromName))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", to, err)
	}
	return nil
}
