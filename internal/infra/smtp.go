package infra

import (
	"cajapos/internal/config"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending emails with PDF attachments.
// Deliveries go through a circuit breaker so a dead relay fails fast.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	cb       *CircuitBreaker
	deliver  func(e *email.Email) error
}

func NewMailer(cfg *config.Config) *Mailer {
	m := &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		cb: NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: cfg.SMTPBreakerFailures,
			OpenTimeout:      cfg.SMTPBreakerOpen,
		}),
	}
	m.deliver = func(e *email.Email) error {
		var auth smtp.Auth
		if m.user != "" {
			auth = smtp.PlainAuth("", m.user, m.password, m.host)
		}
		return e.Send(m.addr, auth)
	}
	return m
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool { return m.host != "" }

// Breaker exposes the relay's circuit breaker for /health.
func (m *Mailer) Breaker() *CircuitBreaker { return m.cb }

// Send delivers a plain-text message, attaching pdfPath when it is not empty.
// While the breaker is open it returns ErrCircuitOpen without dialing.
func (m *Mailer) Send(to, subject, body, pdfPath string) error {
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	return m.cb.Execute(func() error { return m.deliver(e) })
}
