// Package delivery drains the durable outbox against the mail dispatcher.
//
// Drains are event-triggered (startup, session close, manual resend), not
// timer-driven: tasks persist indefinitely until delivered or cancelled.
package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marllondevsec/pandacell/internal/models"
	"github.com/marllondevsec/pandacell/internal/store"
)

// Dispatcher performs a single delivery attempt for one task. It carries no
// retry logic of its own; any error means "failed, retry on a later drain".
// Auth failures, unreachable relays and rejected recipients are all treated
// uniformly.
type Dispatcher interface {
	Send(ctx context.Context, task models.OutboxTask) error
}

// DrainResult reports the outcome of one drain pass.
type DrainResult struct {
	Delivered    []models.OutboxTask
	StillPending []models.OutboxTask
}

// Sender attempts delivery of pending outbox tasks through a Dispatcher.
type Sender struct {
	outbox     *store.Outbox
	dispatcher Dispatcher
}

// NewSender creates a Sender over the given outbox and dispatcher.
func NewSender(outbox *store.Outbox, dispatcher Dispatcher) *Sender {
	return &Sender{outbox: outbox, dispatcher: dispatcher}
}

// Drain attempts delivery of every pending task once, in enqueue order. A
// task is removed from durable storage only on confirmed success; on failure
// its attempt count is incremented and it stays pending. One task's failure
// never aborts the rest of the pass.
func (s *Sender) Drain(ctx context.Context) (DrainResult, error) {
	tasks, err := s.outbox.Pending()
	if err != nil {
		return DrainResult{}, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	var res DrainResult
	for _, task := range tasks {
		if err := s.dispatcher.Send(ctx, task); err != nil {
			slog.Warn("Sender.Drain: delivery failed",
				"task_id", task.TaskID, "recipient", task.Recipient,
				"attempts", task.AttemptCount+1, "error", err)
			if rerr := s.outbox.RecordFailure(task.TaskID, err.Error()); rerr != nil {
				slog.Error("Sender.Drain: failed to record failure", "task_id", task.TaskID, "error", rerr)
			}
			task.AttemptCount++
			task.LastError = err.Error()
			res.StillPending = append(res.StillPending, task)
			continue
		}
		if err := s.outbox.MarkDelivered(task.TaskID); err != nil {
			// delivered but still on disk: better a duplicate email than a lost one
			slog.Error("Sender.Drain: failed to remove delivered task", "task_id", task.TaskID, "error", err)
			res.StillPending = append(res.StillPending, task)
			continue
		}
		slog.Info("Sender.Drain: task delivered", "task_id", task.TaskID, "recipient", task.Recipient)
		res.Delivered = append(res.Delivered, task)
	}
	return res, nil
}
