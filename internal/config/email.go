package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/marllondevsec/pandacell/internal/store"
)

// Default SMTP relay settings.
const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
)

// Email configuration errors.
var (
	ErrEmailNotConfigured = errors.New("sender and recipient emails are not configured")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNoPassword         = errors.New("no smtp password stored")
)

// EmailConfig holds the mail relay settings persisted in the state directory.
//
// PasswordB64 is the SMTP password base64-encoded: reversible obfuscation
// against casual inspection of the config file, deliberately not encryption.
type EmailConfig struct {
	From        string `json:"email_from"`
	To          string `json:"email_to"`
	SMTPHost    string `json:"smtp_server"`
	SMTPPort    int    `json:"smtp_port"`
	PasswordB64 string `json:"email_password_b64,omitempty"`
}

// LoadEmailConfig reads the email settings from path. A missing file yields
// the defaults with no addresses configured.
func LoadEmailConfig(path string) (EmailConfig, error) {
	cfg := EmailConfig{SMTPHost: DefaultSMTPHost, SMTPPort: DefaultSMTPPort}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read email config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse email config %s: %w", path, err)
	}
	if cfg.SMTPHost == "" {
		cfg.SMTPHost = DefaultSMTPHost
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = DefaultSMTPPort
	}
	return cfg, nil
}

// SaveEmailConfig persists the email settings atomically.
func SaveEmailConfig(path string, cfg EmailConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode email config: %w", err)
	}
	return store.WriteFileAtomic(path, data)
}

// Configured reports whether both sender and recipient are set.
func (c EmailConfig) Configured() bool {
	return c.From != "" && c.To != ""
}

// Validate checks that the configured addresses and port are usable.
func (c EmailConfig) Validate() error {
	if !c.Configured() {
		return ErrEmailNotConfigured
	}
	if !ValidEmail(c.From) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, c.From)
	}
	if !ValidEmail(c.To) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, c.To)
	}
	if c.SMTPHost == "" || c.SMTPPort <= 0 {
		return fmt.Errorf("smtp relay not configured (host=%q port=%d)", c.SMTPHost, c.SMTPPort)
	}
	return nil
}

// SetPassword stores pw base64-encoded.
func (c *EmailConfig) SetPassword(pw string) {
	c.PasswordB64 = base64.StdEncoding.EncodeToString([]byte(pw))
}

// ClearPassword removes the stored password.
func (c *EmailConfig) ClearPassword() {
	c.PasswordB64 = ""
}

// HasPassword reports whether a password is stored.
func (c EmailConfig) HasPassword() bool {
	return c.PasswordB64 != ""
}

// Password decodes the stored password.
func (c EmailConfig) Password() (string, error) {
	if c.PasswordB64 == "" {
		return "", ErrNoPassword
	}
	raw, err := base64.StdEncoding.DecodeString(c.PasswordB64)
	if err != nil {
		return "", fmt.Errorf("stored password is not valid base64: %w", err)
	}
	return string(raw), nil
}

// ValidEmail applies the minimal address checks the register relies on: a
// non-empty local part, a dotted domain, and no spaces.
func ValidEmail(addr string) bool {
	if addr == "" || strings.Contains(addr, " ") {
		return false
	}
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return false
	}
	domain := addr[at+1:]
	return strings.Contains(domain, ".")
}
