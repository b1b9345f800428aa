package mail

import (
	"crypto/tls"
	"fmt"
	"html"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

type Mailer interface {
	Send(to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: m.cfg.Host}
	return d.DialAndSend(msg)
}

// LogMailer stands in when SMTP is not configured; links are logged instead of sent.
type LogMailer struct{}

func (LogMailer) Send(to, subject, _ string) error {
	slog.Info("mail not sent (smtp disabled)", "to", to, "subject", subject)
	return nil
}

func InviteHTML(fullName, role, link string, ttl time.Duration) string {
	return fmt.Sprintf(`<p>Hello %s,</p>
<p>You have been invited to the community portal as <b>%s</b>.</p>
<p><a href="%s">Set your password</a> within %d hours to activate your account.</p>`,
		html.EscapeString(fullName), html.EscapeString(role), html.EscapeString(link), int(ttl.Hours()))
}

func PasswordResetHTML(orgName, link string, ttl time.Duration) string {
	return fmt.Sprintf(`<p>A password reset was requested for <b>%s</b>.</p>
<p><a href="%s">Choose a new password</a>. The link expires in %d hours.</p>
<p>If you did not request this, ignore this email.</p>`,
		html.EscapeString(orgName), html.EscapeString(link), int(ttl.Hours()))
}
