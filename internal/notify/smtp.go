package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/textproto"

	"github.com/jordan-wright/email"

	"github.com/donaldgifford/slo-reporter/internal/config"
	"github.com/donaldgifford/slo-reporter/internal/metrics"
)

// sendFunc delivers a composed email. Replaced in tests.
type sendFunc func(e *email.Email, addr string, auth smtp.Auth, tlsCfg *tls.Config) error

func defaultSend(e *email.Email, addr string, auth smtp.Auth, tlsCfg *tls.Config) error {
	if tlsCfg != nil {
		return e.SendWithStartTLS(addr, auth, tlsCfg)
	}
	return e.Send(addr, auth)
}

// SMTPMailer implements Mailer over SMTP with optional STARTTLS. PLAIN
// authentication is used only on a STARTTLS connection.
type SMTPMailer struct {
	cfg  config.EmailConfig
	send sendFunc
	log  *slog.Logger
}

// SMTPOption configures an SMTPMailer.
type SMTPOption func(*SMTPMailer)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) SMTPOption {
	return func(m *SMTPMailer) {
		m.log = l
	}
}

func withSendFunc(fn sendFunc) SMTPOption {
	return func(m *SMTPMailer) {
		m.send = fn
	}
}

// NewSMTPMailer creates a new SMTPMailer.
func NewSMTPMailer(cfg *config.EmailConfig, opts ...SMTPOption) *SMTPMailer {
	m := &SMTPMailer{
		cfg:  *cfg,
		send: defaultSend,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send mails msg to every configured recipient.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := &email.Email{
		To:      m.cfg.Recipients,
		From:    m.cfg.Sender,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Headers: textproto.MIMEHeader{},
	}

	// Credentials only travel over STARTTLS.
	var (
		auth   smtp.Auth
		tlsCfg *tls.Config
	)
	if m.cfg.StartTLS {
		tlsCfg = &tls.Config{ServerName: m.cfg.SMTPServer, MinVersion: tls.VersionTLS12}
		if m.cfg.Username != "" {
			auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPServer)
		}
	}

	if err := m.send(e, m.cfg.Addr(), auth, tlsCfg); err != nil {
		metrics.ReportsSentTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("sending email via %s: %w", m.cfg.Addr(), err)
	}

	metrics.ReportsSentTotal.WithLabelValues("success").Inc()
	m.log.Info("report emailed",
		"server", m.cfg.SMTPServer,
		"recipients", len(m.cfg.Recipients),
		"starttls", bool(m.cfg.StartTLS),
	)
	return nil
}
