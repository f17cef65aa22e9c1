package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/marllondevsec/pandacell/internal/models"
)

// Outbox is a durable at-least-once queue of pending email deliveries, one
// JSON file per task. File names carry the creation time so lexical directory
// order matches enqueue order. A task file is removed only on confirmed
// delivery or explicit cancellation.
type Outbox struct {
	dir string
}

// NewOutbox creates the outbox directory if needed and returns the store.
func NewOutbox(dir string) (*Outbox, error) {
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create outbox directory %s: %w", dir, err)
	}
	return &Outbox{dir: dir}, nil
}

// Enqueue assigns the task an ID and creation time and persists it before
// returning. Failure here means the durable store itself is unwritable.
func (o *Outbox) Enqueue(task models.OutboxTask) (models.OutboxTask, error) {
	task.TaskID = models.GenerateTaskID()
	task.CreatedAt = time.Now()
	task.AttemptCount = 0
	task.LastError = ""
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return models.OutboxTask{}, fmt.Errorf("failed to encode outbox task: %w", err)
	}
	path := o.taskPath(task.CreatedAt, task.TaskID)
	if err := WriteFileAtomic(path, data); err != nil {
		slog.Error("Outbox.Enqueue: persist failed", "error", err, "task_id", task.TaskID)
		return models.OutboxTask{}, fmt.Errorf("failed to persist outbox task: %w", err)
	}
	slog.Info("Outbox.Enqueue: task queued", "task_id", task.TaskID, "recipient", task.Recipient)
	return task, nil
}

// Pending returns all queued tasks in enqueue order. Unparsable entries are
// skipped with a warning rather than failing the whole listing.
func (o *Outbox) Pending() ([]models.OutboxTask, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox directory %s: %w", o.dir, err)
	}
	var tasks []models.OutboxTask
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(o.dir, e.Name()))
		if err != nil {
			slog.Warn("Outbox.Pending: unreadable task file", "error", err, "file", e.Name())
			continue
		}
		var task models.OutboxTask
		if err := json.Unmarshal(data, &task); err != nil {
			slog.Warn("Outbox.Pending: unparsable task file", "error", err, "file", e.Name())
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// MarkDelivered removes a task after a confirmed delivery.
func (o *Outbox) MarkDelivered(taskID string) error {
	path, err := o.findPath(taskID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove delivered task %s: %w", taskID, err)
	}
	return nil
}

// RecordFailure increments the attempt count, stores the failure reason and
// persists the updated task. The task stays pending for the next drain.
func (o *Outbox) RecordFailure(taskID, reason string) error {
	path, err := o.findPath(taskID)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read task %s: %w", taskID, err)
	}
	var task models.OutboxTask
	if err := json.Unmarshal(data, &task); err != nil {
		return fmt.Errorf("failed to parse task %s: %w", taskID, err)
	}
	task.AttemptCount++
	task.LastError = reason
	updated, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", taskID, err)
	}
	return WriteFileAtomic(path, updated)
}

// Cancel removes a task without delivering it.
func (o *Outbox) Cancel(taskID string) error {
	path, err := o.findPath(taskID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to cancel task %s: %w", taskID, err)
	}
	slog.Info("Outbox.Cancel: task cancelled", "task_id", taskID)
	return nil
}

func (o *Outbox) taskPath(createdAt time.Time, taskID string) string {
	return filepath.Join(o.dir, fmt.Sprintf("%020d_%s.json", createdAt.UnixNano(), taskID))
}

func (o *Outbox) findPath(taskID string) (string, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return "", fmt.Errorf("failed to list outbox directory %s: %w", o.dir, err)
	}
	suffix := "_" + taskID + ".json"
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			return filepath.Join(o.dir, e.Name()), nil
		}
	}
	return "", models.ErrTaskNotFound
}
