package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestLoadEmailConfigMissingFile(t *testing.T) {
	cfg, err := LoadEmailConfig(filepath.Join(t.TempDir(), "email_config.json"))
	if err != nil {
		t.Fatalf("LoadEmailConfig failed: %v", err)
	}
	if cfg.Configured() {
		t.Errorf("missing file reported as configured: %+v", cfg)
	}
	if cfg.SMTPHost != DefaultSMTPHost || cfg.SMTPPort != DefaultSMTPPort {
		t.Errorf("defaults not applied: host=%q port=%d", cfg.SMTPHost, cfg.SMTPPort)
	}
}

func TestSaveLoadEmailConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email_config.json")
	cfg := EmailConfig{
		From:     "register@pandacell.com",
		To:       "owner@pandacell.com",
		SMTPHost: "mail.example.com",
		SMTPPort: 465,
	}
	cfg.SetPassword("hunter2")
	if err := SaveEmailConfig(path, cfg); err != nil {
		t.Fatalf("SaveEmailConfig failed: %v", err)
	}

	loaded, err := LoadEmailConfig(path)
	if err != nil {
		t.Fatalf("LoadEmailConfig failed: %v", err)
	}
	if loaded != cfg {
		t.Errorf("round trip changed config: %+v != %+v", loaded, cfg)
	}
	pw, err := loaded.Password()
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	if pw != "hunter2" {
		t.Errorf("password = %q", pw)
	}
	// the password must not sit in the file as plain text
	if loaded.PasswordB64 == "hunter2" {
		t.Error("password stored unencoded")
	}
}

func TestPasswordLifecycle(t *testing.T) {
	var cfg EmailConfig
	if _, err := cfg.Password(); !errors.Is(err, ErrNoPassword) {
		t.Errorf("Password on empty config err = %v, want ErrNoPassword", err)
	}
	cfg.SetPassword("s3cret")
	if !cfg.HasPassword() {
		t.Error("HasPassword false after SetPassword")
	}
	cfg.ClearPassword()
	if cfg.HasPassword() {
		t.Error("HasPassword true after ClearPassword")
	}
}

func TestValidate(t *testing.T) {
	cfg := EmailConfig{SMTPHost: DefaultSMTPHost, SMTPPort: DefaultSMTPPort}
	if err := cfg.Validate(); !errors.Is(err, ErrEmailNotConfigured) {
		t.Errorf("unconfigured Validate err = %v, want ErrEmailNotConfigured", err)
	}

	cfg.From = "not an address"
	cfg.To = "owner@pandacell.com"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("bad sender Validate err = %v, want ErrInvalidEmail", err)
	}

	cfg.From = "register@pandacell.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed on a complete config: %v", err)
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last@sub.domain.com", "x+tag@example.org"}
	for _, addr := range valid {
		if !ValidEmail(addr) {
			t.Errorf("ValidEmail(%q) = false", addr)
		}
	}
	invalid := []string{"", "plainaddress", "@nolocal.com", "has space@x.com", "nodot@domain"}
	for _, addr := range invalid {
		if ValidEmail(addr) {
			t.Errorf("ValidEmail(%q) = true", addr)
		}
	}
}
