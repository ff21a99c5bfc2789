// Package email delivers account activation mail.
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

type Sender interface {
	SendAccountActivation(ctx context.Context, to, token string) error
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
	// ActivationURL is the client page the token is appended to.
	ActivationURL string
}

type smtpSender struct {
	cfg  SMTPConfig
	log  logrus.FieldLogger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig, log logrus.FieldLogger) Sender {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &smtpSender{cfg: cfg, log: log.WithField("component", "email"), send: smtp.SendMail}
}

func (s *smtpSender) SendAccountActivation(ctx context.Context, to, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := activationMessage(s.cfg.From, to, activationLink(s.cfg.ActivationURL, token))

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	s.log.WithField("to", to).Info("sending activation email")
	if err := s.send(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		s.log.WithError(err).WithField("to", to).Error("sending activation email failed")
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// logSender writes the activation link to the log instead of mailing it.
// Used when no SMTP host is configured.
type logSender struct {
	activationURL string
	log           logrus.FieldLogger
}

func NewLogSender(activationURL string, log logrus.FieldLogger) Sender {
	return &logSender{activationURL: activationURL, log: log.WithField("component", "email")}
}

func (s *logSender) SendAccountActivation(_ context.Context, to, token string) error {
	s.log.WithFields(logrus.Fields{
		"to":   to,
		"link": activationLink(s.activationURL, token),
	}).Info("activation email (not sent, smtp disabled)")
	return nil
}

func activationLink(base, token string) string {
	if base == "" {
		base = "http://localhost:8080/#/login"
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + token
}

func activationMessage(from, to, link string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Account Activation\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	fmt.Fprintf(&b, "<h1>Account Activation</h1>\r\n<p>Please click the link below to activate your account.</p>\r\n<a href=%q>Activate</a>\r\n", link)
	return []byte(b.String())
}
