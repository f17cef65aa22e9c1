// Package register orchestrates the cash session: opening and resuming,
// recording sales, and the close protocol.
package register

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marllondevsec/pandacell/internal/delivery"
	"github.com/marllondevsec/pandacell/internal/mailer"
	"github.com/marllondevsec/pandacell/internal/models"
	"github.com/marllondevsec/pandacell/internal/report"
	"github.com/marllondevsec/pandacell/internal/store"
)

// Register ties the session store, the day log, the outbox and the report
// triggers together. All mutations run on the caller's single thread of
// control; there is no internal locking.
type Register struct {
	sessions  *store.SessionStore
	log       *store.SalesLog
	outbox    *store.Outbox
	sender    *delivery.Sender
	agg       *report.Aggregator
	storeName string
}

// New assembles a register from its collaborators.
func New(sessions *store.SessionStore, log *store.SalesLog, outbox *store.Outbox,
	sender *delivery.Sender, agg *report.Aggregator, storeName string) *Register {
	return &Register{
		sessions:  sessions,
		log:       log,
		outbox:    outbox,
		sender:    sender,
		agg:       agg,
		storeName: storeName,
	}
}

// Startup is the single decision point between resuming and starting fresh.
// A session left open from a past date is force-closed, with its own
// enqueue/drain/report cycle, before today's session opens: no sale silently
// spans a date boundary. The outbox is drained once afterwards to retry
// anything left over from a crash or offline period.
func (r *Register) Startup(ctx context.Context, today, recipient string) (*models.SessionState, error) {
	state, err := r.sessions.Load()
	if err != nil {
		return nil, fmt.Errorf("session state unreadable: %w", err)
	}

	if state != nil && state.IsOpen && state.SessionDate != today {
		slog.Warn("Register.Startup: stale open session found, forcing close",
			"session_date", state.SessionDate, "today", today)
		if err := r.Close(ctx, state.SessionDate, recipient); err != nil {
			return nil, fmt.Errorf("failed to close stale session %s: %w", state.SessionDate, err)
		}
		state = nil
	}

	if state != nil && state.IsOpen {
		state, err = r.resume(today, state)
	} else {
		state, err = r.Open(today)
	}
	if err != nil {
		return nil, err
	}

	if _, err := r.sender.Drain(ctx); err != nil {
		slog.Warn("Register.Startup: outbox drain failed", "error", err)
	}
	if day, perr := time.Parse(models.DateLayout, today); perr == nil {
		if err := r.agg.RunTriggers(day); err != nil {
			slog.Warn("Register.Startup: report trigger check failed", "error", err)
		}
	}
	return state, nil
}

// Open starts (or reopens) a session for date, writing the log header when
// the day's log does not exist yet. Counts are derived from the log so
// reopening a day with prior sales resumes its totals.
func (r *Register) Open(date string) (*models.SessionState, error) {
	if err := r.log.EnsureHeader(date); err != nil {
		return nil, err
	}
	recs, total, err := r.log.Replay(date)
	if err != nil {
		return nil, err
	}
	state := &models.SessionState{
		SessionDate:  date,
		IsOpen:       true,
		RunningTotal: total,
		SaleCount:    len(recs),
	}
	if err := r.sessions.Save(*state); err != nil {
		return nil, err
	}
	slog.Info("Register.Open: session open", "date", date, "sales", state.SaleCount, "total", models.Money(total))
	return state, nil
}

// resume re-derives the cached totals from the day's log. The log is
// authoritative; the stored running total is only a cache.
func (r *Register) resume(today string, state *models.SessionState) (*models.SessionState, error) {
	recs, total, err := r.log.Replay(today)
	if err != nil {
		return nil, err
	}
	if !state.RunningTotal.Equal(total) || state.SaleCount != len(recs) {
		slog.Warn("Register.resume: cached totals diverged from log, using log",
			"cached_total", models.Money(state.RunningTotal), "log_total", models.Money(total))
	}
	state.RunningTotal = total
	state.SaleCount = len(recs)
	if err := r.sessions.Save(*state); err != nil {
		return nil, err
	}
	slog.Info("Register.resume: resumed session", "date", today, "sales", state.SaleCount, "total", models.Money(total))
	return state, nil
}

// AddSale appends the sale to the day's log, then updates the cached session
// totals. If the append fails the sale is not recorded and the state is left
// untouched: there is no partial-success outcome.
func (r *Register) AddSale(state *models.SessionState, rec models.SaleRecord) error {
	if state == nil || !state.IsOpen {
		return models.ErrNoOpenSession
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := r.log.Append(state.SessionDate, rec); err != nil {
		return err
	}
	state.RunningTotal = state.RunningTotal.Add(rec.LineTotal).Round(2)
	state.SaleCount++
	if err := r.sessions.Save(*state); err != nil {
		// the sale itself is durable; the cache will be rebuilt from the log on restart
		return fmt.Errorf("sale %s recorded but state save failed: %w", rec.ID, err)
	}
	return nil
}

// Close runs the close protocol for date: total the log, append the close-out
// marker, enqueue the delivery task, attempt an immediate drain, run the
// report triggers, then clear the session. An enqueue failure aborts the
// whole close so a retried close stays safe; drain or report failures never
// do, because the task is already durable.
func (r *Register) Close(ctx context.Context, date, recipient string) error {
	state, err := r.sessions.Load()
	if err != nil {
		return err
	}
	if state == nil || !state.IsOpen || state.SessionDate != date {
		return models.ErrNoOpenSession
	}

	_, total, err := r.log.Replay(date)
	if err != nil {
		return fmt.Errorf("failed to total the day log: %w", err)
	}
	if err := r.log.AppendCloseout(date, total); err != nil {
		slog.Warn("Register.Close: close-out marker write failed", "error", err, "date", date)
	}

	if _, err := r.EnqueueLog(date, recipient, total); err != nil {
		return fmt.Errorf("close aborted, delivery task not enqueued: %w", err)
	}
	if _, err := r.sender.Drain(ctx); err != nil {
		slog.Warn("Register.Close: drain failed, task stays queued", "error", err)
	}
	if day, perr := time.Parse(models.DateLayout, date); perr == nil {
		if err := r.agg.RunTriggers(day); err != nil {
			slog.Warn("Register.Close: report trigger failed", "error", err)
		}
	}
	if err := r.sessions.Clear(); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	slog.Info("Register.Close: session closed", "date", date, "total", models.Money(total))
	return nil
}

// EnqueueLog queues the day's log for email delivery and returns the durable
// task.
func (r *Register) EnqueueLog(date, recipient string, total decimal.Decimal) (models.OutboxTask, error) {
	subject, body := mailer.Compose(r.storeName, date, total)
	return r.outbox.Enqueue(models.OutboxTask{
		LogPath:   r.log.Path(date),
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
}

// SendNow enqueues the current day's log outside a close and drains at once.
func (r *Register) SendNow(ctx context.Context, date, recipient string) (delivery.DrainResult, error) {
	total, err := r.TotalFor(date)
	if err != nil {
		return delivery.DrainResult{}, err
	}
	if _, err := r.EnqueueLog(date, recipient, total); err != nil {
		return delivery.DrainResult{}, err
	}
	return r.sender.Drain(ctx)
}

// Resend drains the outbox on explicit request.
func (r *Register) Resend(ctx context.Context) (delivery.DrainResult, error) {
	return r.sender.Drain(ctx)
}

// TotalFor recomputes a day's total from its log.
func (r *Register) TotalFor(date string) (decimal.Decimal, error) {
	_, total, err := r.log.Replay(date)
	return total, err
}

// Sales returns the recorded sales for a date.
func (r *Register) Sales(date string) ([]models.SaleRecord, error) {
	recs, _, err := r.log.Replay(date)
	return recs, err
}
