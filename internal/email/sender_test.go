package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestSender(cfg SMTPConfig, err error) (*smtpSender, *capturedMail) {
	log, _ := test.NewNullLogger()
	s := NewSMTPSender(cfg, log).(*smtpSender)
	got := &capturedMail{}
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*got = capturedMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)}
		return err
	}
	return s, got
}

func TestSMTPSender_SendsActivationLink(t *testing.T) {
	s, got := newTestSender(SMTPConfig{
		Host:          "smtp.example.com",
		Port:          "587",
		User:          "noreply@example.com",
		Password:      "secret",
		ActivationURL: "https://hoaxify.example.com/activate",
	}, nil)

	require.NoError(t, s.SendAccountActivation(context.Background(), "user1@mail.com", "abc-123"))

	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "noreply@example.com", got.from)
	assert.Equal(t, []string{"user1@mail.com"}, got.to)
	assert.Contains(t, got.msg, "To: user1@mail.com\r\n")
	assert.Contains(t, got.msg, "Subject: Account Activation\r\n")
	assert.Contains(t, got.msg, "https://hoaxify.example.com/activate?token=abc-123")
}

func TestSMTPSender_NoAuthWithoutUser(t *testing.T) {
	s, got := newTestSender(SMTPConfig{Host: "localhost", Port: "1025", From: "hoaxify@localhost"}, nil)

	require.NoError(t, s.SendAccountActivation(context.Background(), "user1@mail.com", "tok"))
	assert.Nil(t, got.auth)
	assert.Equal(t, "hoaxify@localhost", got.from)
}

func TestSMTPSender_WrapsFailure(t *testing.T) {
	boom := errors.New("connection refused")
	s, _ := newTestSender(SMTPConfig{Host: "localhost", Port: "25"}, boom)

	err := s.SendAccountActivation(context.Background(), "user1@mail.com", "tok")
	assert.ErrorIs(t, err, boom)
}

func TestSMTPSender_CanceledContext(t *testing.T) {
	s, got := newTestSender(SMTPConfig{Host: "localhost", Port: "25"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.SendAccountActivation(ctx, "user1@mail.com", "tok"), context.Canceled)
	assert.Empty(t, got.addr)
}

func TestLogSender(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := NewLogSender("", log)

	require.NoError(t, s.SendAccountActivation(context.Background(), "user1@mail.com", "tok"))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "http://localhost:8080/#/login?token=tok", hook.LastEntry().Data["link"])
}

func TestActivationLink(t *testing.T) {
	assert.Equal(t, "https://x.io/a?token=t", activationLink("https://x.io/a", "t"))
	assert.Equal(t, "https://x.io/a?lang=en&token=t", activationLink("https://x.io/a?lang=en", "t"))
}
