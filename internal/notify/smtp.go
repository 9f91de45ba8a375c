package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultTimeout bounds dialing and each SMTP command.
const DefaultTimeout = 30 * time.Second

// SMTPSender delivers messages through an SMTP server.
type SMTPSender struct {
	timeout time.Duration
	logger  *slog.Logger
}

// SenderOption configures an SMTPSender.
type SenderOption func(*SMTPSender)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) SenderOption {
	return func(s *SMTPSender) { s.timeout = d }
}

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) SenderOption {
	return func(s *SMTPSender) { s.logger = l }
}

// NewSMTPSender creates a sender.
func NewSMTPSender(opts ...SenderOption) *SMTPSender {
	s := &SMTPSender{timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send mails body with attachmentPath attached (if non-empty) to every
// recipient in cfg. The configuration is validated before any connection is
// attempted; an invalid configuration returns *ConfigError, everything else
// that goes wrong returns *TransportError.
func (s *SMTPSender) Send(ctx context.Context, cfg Config, subject, body, attachmentPath string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(cfg.User); err != nil {
		return &ConfigError{Missing: []string{SettingUser}, Err: fmt.Errorf("sender address: %w", err)}
	}
	if err := msg.To(cfg.Recipients...); err != nil {
		return &ConfigError{Missing: []string{SettingRecipients}, Err: fmt.Errorf("recipient address: %w", err)}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if attachmentPath != "" {
		if _, err := os.Stat(attachmentPath); err != nil {
			return &TransportError{Op: "attach", Err: err}
		}
		msg.AttachFile(attachmentPath)
	}

	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(s.timeout),
	}
	switch {
	case cfg.SSL:
		opts = append(opts, mail.WithSSL())
	case cfg.StartTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	// Port last so SSL/TLS options cannot reset it.
	opts = append(opts, mail.WithPort(cfg.Port))

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return &TransportError{Op: "client", Err: err}
	}

	s.logger.Debug("sending e-mail", "server", cfg.String(), "attachment", attachmentPath)
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	s.logger.Info("e-mail sent", "recipients", len(cfg.Recipients))
	return nil
}
