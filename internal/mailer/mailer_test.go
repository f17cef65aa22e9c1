package mailer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marllondevsec/pandacell/internal/config"
	"github.com/marllondevsec/pandacell/internal/models"
)

func provider(cfg config.EmailConfig) ConfigProvider {
	return func() config.EmailConfig { return cfg }
}

func TestComposeContent(t *testing.T) {
	subject, body := Compose("PandaCell", "2026-08-22", decimal.RequireFromString("27.5"))
	if subject != "PandaCell - Register log 2026-08-22" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "Day total: 27.50") {
		t.Errorf("body missing rounded total:\n%s", body)
	}
	if !strings.Contains(body, "Date: 2026-08-22") {
		t.Errorf("body missing date:\n%s", body)
	}
}

func TestSendFailsFastWhenUnconfigured(t *testing.T) {
	d := NewSMTPDispatcher(provider(config.EmailConfig{}), time.Second)
	err := d.Send(context.Background(), models.OutboxTask{Recipient: "store@example.com"})
	if !errors.Is(err, config.ErrEmailNotConfigured) {
		t.Errorf("err = %v, want ErrEmailNotConfigured", err)
	}
}

func TestSendFailsFastWithoutPassword(t *testing.T) {
	cfg := config.EmailConfig{
		From:     "register@pandacell.com",
		To:       "owner@pandacell.com",
		SMTPHost: config.DefaultSMTPHost,
		SMTPPort: config.DefaultSMTPPort,
	}
	d := NewSMTPDispatcher(provider(cfg), time.Second)
	err := d.Send(context.Background(), models.OutboxTask{Recipient: "owner@pandacell.com"})
	if !errors.Is(err, config.ErrNoPassword) {
		t.Errorf("err = %v, want ErrNoPassword", err)
	}
}

func TestSendFailsWhenAttachmentMissing(t *testing.T) {
	cfg := config.EmailConfig{
		From:     "register@pandacell.com",
		To:       "owner@pandacell.com",
		SMTPHost: config.DefaultSMTPHost,
		SMTPPort: config.DefaultSMTPPort,
	}
	cfg.SetPassword("pw")
	d := NewSMTPDispatcher(provider(cfg), time.Second)
	err := d.Send(context.Background(), models.OutboxTask{
		Recipient: "owner@pandacell.com",
		LogPath:   filepath.Join(t.TempDir(), "no_such.log"),
	})
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want wrapped not-exist", err)
	}
}

func TestProviderSeesReconfiguration(t *testing.T) {
	live := config.EmailConfig{}
	d := NewSMTPDispatcher(func() config.EmailConfig { return live }, time.Second)

	err := d.Send(context.Background(), models.OutboxTask{Recipient: "owner@pandacell.com"})
	if !errors.Is(err, config.ErrEmailNotConfigured) {
		t.Fatalf("err = %v, want ErrEmailNotConfigured", err)
	}

	live.From = "register@pandacell.com"
	live.To = "owner@pandacell.com"
	live.SMTPHost = config.DefaultSMTPHost
	live.SMTPPort = config.DefaultSMTPPort
	err = d.Send(context.Background(), models.OutboxTask{Recipient: "owner@pandacell.com"})
	if !errors.Is(err, config.ErrNoPassword) {
		t.Errorf("err after reconfigure = %v, want ErrNoPassword", err)
	}
}
