package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"assistant-engine/internal/domain"
)

type fakeSender struct {
	err  error
	sent []*gomail.Message
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestNewSMTP_Validation(t *testing.T) {
	_, err := NewSMTP("", 587, "u", "p", "from@example.com")
	require.Error(t, err)
	_, err = NewSMTP("smtp.example.com", 587, "u", "p", " ")
	require.Error(t, err)
	s, err := NewSMTP("smtp.example.com", 587, "u", "p", "from@example.com")
	require.NoError(t, err)
	require.NotNil(t, s.dialer)
}

func TestSend_BuildsMessage(t *testing.T) {
	f := &fakeSender{}
	s := &SMTP{dialer: f, from: "bot@example.com"}

	err := s.Send(context.Background(), domain.Email{
		To:      "owner@example.com",
		ReplyTo: "ada@example.com",
		Subject: "Contact Form from Ada Lovelace",
		Body:    "Note: hello",
	})
	require.NoError(t, err)
	require.Len(t, f.sent, 1)

	m := f.sent[0]
	require.Equal(t, []string{"bot@example.com"}, m.GetHeader("From"))
	require.Equal(t, []string{"owner@example.com"}, m.GetHeader("To"))
	require.Equal(t, []string{"ada@example.com"}, m.GetHeader("Reply-To"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Note: hello")
}

func TestSend_Errors(t *testing.T) {
	s := &SMTP{dialer: &fakeSender{err: errors.New("535 auth failed")}, from: "bot@example.com"}
	err := s.Send(context.Background(), domain.Email{To: "x@example.com"})
	require.ErrorContains(t, err, "535")

	err = s.Send(context.Background(), domain.Email{})
	require.ErrorContains(t, err, "recipient")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, domain.Email{To: "x@example.com"}), context.Canceled)
}

func TestLogOnly_NeverFails(t *testing.T) {
	require.NoError(t, LogOnly{}.Send(context.Background(), domain.Email{To: "x@example.com"}))
}
