// Package mailer implements the SMTP mail dispatcher.
//
// A dispatcher performs exactly one delivery attempt per call; retry policy
// lives in the outbox drain, not here.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wneessen/go-mail"

	"github.com/marllondevsec/pandacell/internal/config"
	"github.com/marllondevsec/pandacell/internal/models"
)

// sslPort is the implicit-TLS SMTP port; everything else uses STARTTLS.
const sslPort = 465

// ConfigProvider returns the current email settings. Taking a provider rather
// than a snapshot lets the user reconfigure the relay mid-session without
// rebuilding the dispatcher.
type ConfigProvider func() config.EmailConfig

// SMTPDispatcher sends outbox tasks through an SMTP relay.
type SMTPDispatcher struct {
	provider ConfigProvider
	timeout  time.Duration
}

// NewSMTPDispatcher creates a dispatcher. The timeout bounds one dial-and-send
// attempt so a hung relay cannot stall a drain forever.
func NewSMTPDispatcher(provider ConfigProvider, timeout time.Duration) *SMTPDispatcher {
	if timeout <= 0 {
		timeout = config.DefaultSMTPTimeout
	}
	return &SMTPDispatcher{provider: provider, timeout: timeout}
}

// Send composes and sends one message with the task's log file attached.
// Every failure is reported the same way; the caller decides whether to retry.
func (d *SMTPDispatcher) Send(ctx context.Context, task models.OutboxTask) error {
	cfg := d.provider()
	if err := cfg.Validate(); err != nil {
		return err
	}
	password, err := cfg.Password()
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(cfg.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", cfg.From, err)
	}
	if err := msg.To(task.Recipient); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", task.Recipient, err)
	}
	msg.Subject(task.Subject)
	msg.SetBodyString(mail.TypeTextPlain, task.Body)
	if task.LogPath != "" {
		if _, err := os.Stat(task.LogPath); err != nil {
			return fmt.Errorf("log attachment unavailable: %w", err)
		}
		msg.AttachFile(task.LogPath, mail.WithFileName(filepath.Base(task.LogPath)))
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.From),
		mail.WithPassword(password),
		mail.WithTimeout(d.timeout),
	}
	if cfg.SMTPPort == sslPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("smtp client setup failed: %w", err)
	}
	slog.Debug("SMTPDispatcher.Send: dialing relay", "host", cfg.SMTPHost, "port", cfg.SMTPPort, "task_id", task.TaskID)
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// Compose builds the close-out subject and body for a day's log delivery.
func Compose(storeName, date string, total decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("%s - Register log %s", storeName, date)
	body = fmt.Sprintf("%s - Register close-out\n\nDate: %s\nDay total: %s\n\nThe full log is attached.\n",
		storeName, date, models.Money(total))
	return subject, body
}
