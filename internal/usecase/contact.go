package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"assistant-engine/internal/domain"
)

type ContactForm struct {
	FirstName string
	LastName  string
	Company   string
	Email     string
	Note      string
}

// ContactService forwards contact-form submissions by email.
type ContactService struct {
	mailer Mailer
	to     string
	log    *zap.Logger
}

func NewContactService(mailer Mailer, to string, log *zap.Logger) (*ContactService, error) {
	if mailer == nil {
		return nil, errors.New("usecase: mailer must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactService{mailer: mailer, to: strings.TrimSpace(to), log: log}, nil
}

func (s *ContactService) Send(ctx context.Context, form ContactForm) error {
	email := strings.TrimSpace(form.Email)
	if email == "" || !strings.Contains(email, "@") {
		return newError(ErrorInvalidInput, "invalid_email", nil)
	}
	if s.to == "" {
		return newError(ErrorInternal, "contact_recipient_unset", nil)
	}
	name := strings.TrimSpace(form.FirstName + " " + form.LastName)

	s.log.Info("contact form submitted",
		zap.String("name", name),
		zap.String("company", form.Company),
		zap.String("email", email),
	)

	msg := domain.Email{
		To:      s.to,
		ReplyTo: email,
		Subject: "Contact Form from " + name,
		Body: fmt.Sprintf("Contact Form Submission:\nName: %s\nCompany: %s\nEmail: %s\nNote: %s\n",
			name, form.Company, email, form.Note),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return newError(ErrorUpstream, "mail_send_error", err)
	}
	return nil
}
