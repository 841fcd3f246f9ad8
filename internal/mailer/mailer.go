// Package mailer sends transactional mail over SMTP.
package mailer

import (
	"crypto/tls"
	"fmt"

	"github.com/pokerjest/animestream/internal/config"
	"github.com/pokerjest/animestream/internal/logger"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Sender interface {
	Send(to, subject, htmlBody string) error
}

// New returns an SMTP sender, or a sender that only logs when SMTP is not configured.
func New(cfg config.MailConfig) Sender {
	if !cfg.Enabled() {
		return LogSender{}
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &SMTPSender{dialer: d, from: cfg.From}
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogSender logs the envelope instead of sending mail. The body can carry secrets such as
// reset links, so it only appears at debug level.
type LogSender struct{}

func (LogSender) Send(to, subject, htmlBody string) error {
	l := logger.L()
	l.Info("mail not configured, message dropped", zap.String("to", to), zap.String("subject", subject))
	l.Debug("dropped mail body", zap.String("to", to), zap.String("body", htmlBody))
	return nil
}
