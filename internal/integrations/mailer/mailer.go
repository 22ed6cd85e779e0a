// Package mailer sends transactional email over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"assistant-engine/internal/domain"
)

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends messages through a gomail dialer.
type SMTP struct {
	dialer sender
	from   string
}

// NewSMTP returns an SMTP mailer authenticating with username and password.
func NewSMTP(host string, port int, username, password, from string) (*SMTP, error) {
	if strings.TrimSpace(host) == "" {
		return nil, errors.New("mailer: host must not be empty")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("mailer: from address must not be empty")
	}
	return &SMTP{dialer: gomail.NewDialer(host, port, username, password), from: from}, nil
}

// Send delivers msg. gomail has no context support, so ctx is only checked
// before dialing.
func (s *SMTP) Send(ctx context.Context, msg domain.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mailer: recipient is required")
	}
	if err := s.dialer.DialAndSend(s.build(msg)); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTP) build(msg domain.Email) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}

// LogOnly records messages in the log instead of sending them. It stands in
// when no SMTP server is configured.
type LogOnly struct {
	Log *zap.Logger
}

func (l LogOnly) Send(_ context.Context, msg domain.Email) error {
	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("mail not sent: no smtp server configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
