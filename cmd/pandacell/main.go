package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/marllondevsec/pandacell/internal/cli"
	"github.com/marllondevsec/pandacell/internal/config"
	"github.com/marllondevsec/pandacell/internal/delivery"
	"github.com/marllondevsec/pandacell/internal/lockfile"
	"github.com/marllondevsec/pandacell/internal/mailer"
	"github.com/marllondevsec/pandacell/internal/models"
	"github.com/marllondevsec/pandacell/internal/register"
	"github.com/marllondevsec/pandacell/internal/report"
	"github.com/marllondevsec/pandacell/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := config.FromEnv()

	stateDir := flag.String("state-dir", cfg.StateDir, "state directory for register data (overrides $PANDACELL_STATE_DIR)")
	storeName := flag.String("store-name", cfg.StoreName, "store name used in logs and emails (overrides $PANDACELL_STORE_NAME)")
	smtpTimeout := flag.Duration("smtp-timeout", cfg.SMTPTimeout, "timeout for one SMTP delivery attempt (overrides $PANDACELL_SMTP_TIMEOUT)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides $LOG_LEVEL)")
	flag.Parse()
	cfg.StateDir = *stateDir
	cfg.StoreName = *storeName
	cfg.SMTPTimeout = *smtpTimeout

	initializeLogger(cfg, *logLevel)

	lock, err := lockfile.Acquire(cfg.StateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	salesLog, err := store.NewSalesLog(cfg.LogsDir(), cfg.StoreName)
	if err != nil {
		slog.Error("Failed to set up sales log", "error", err)
		os.Exit(1)
	}
	outbox, err := store.NewOutbox(cfg.OutboxDir())
	if err != nil {
		slog.Error("Failed to set up outbox", "error", err)
		os.Exit(1)
	}
	sessions := store.NewSessionStore(cfg.SessionFile())
	catalog := store.NewCatalog(cfg.CatalogFile())

	emailCfg, err := config.LoadEmailConfig(cfg.EmailConfigFile())
	if err != nil {
		slog.Error("Email configuration unreadable", "error", err)
		os.Exit(1)
	}

	dispatcher := mailer.NewSMTPDispatcher(func() config.EmailConfig { return emailCfg }, cfg.SMTPTimeout)
	sender := delivery.NewSender(outbox, dispatcher)
	agg := report.NewAggregator(salesLog, cfg.LogsDir(), cfg.StoreName)
	reg := register.New(sessions, salesLog, outbox, sender, agg, cfg.StoreName)

	ctx := context.Background()
	today := time.Now().Format(models.DateLayout)
	state, err := reg.Startup(ctx, today, emailCfg.To)
	if err != nil {
		slog.Error("Startup recovery failed", "error", err)
		os.Exit(1)
	}

	app := cli.New(reg, catalog, agg, outbox, &emailCfg, cfg.EmailConfigFile(), cfg.StoreName, state)
	if err := app.Run(ctx); err != nil {
		slog.Error("Register exited with error", "error", err)
		os.Exit(1)
	}
}

// initializeLogger sets up structured logging at the configured level.
func initializeLogger(cfg config.Config, override string) {
	level := cfg.LogLevel
	if override != "" {
		level = config.ParseLogLevel(override)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
