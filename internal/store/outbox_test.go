package store

import (
	"errors"
	"testing"

	"github.com/marllondevsec/pandacell/internal/models"
)

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := NewOutbox(t.TempDir())
	if err != nil {
		t.Fatalf("NewOutbox failed: %v", err)
	}
	return o
}

func TestEnqueueAndPendingOrder(t *testing.T) {
	o := newTestOutbox(t)
	var ids []string
	for _, recipient := range []string{"a@store.com", "b@store.com", "c@store.com"} {
		task, err := o.Enqueue(models.OutboxTask{Recipient: recipient, Subject: "log"})
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if task.TaskID == "" || task.CreatedAt.IsZero() {
			t.Fatalf("Enqueue returned incomplete task: %+v", task)
		}
		ids = append(ids, task.TaskID)
	}

	tasks, err := o.Pending()
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d pending tasks, want 3", len(tasks))
	}
	for i, task := range tasks {
		if task.TaskID != ids[i] {
			t.Errorf("task %d out of order: got %s want %s", i, task.TaskID, ids[i])
		}
		if task.AttemptCount != 0 {
			t.Errorf("fresh task has attempt_count %d", task.AttemptCount)
		}
	}
}

func TestRecordFailurePersistsAttempts(t *testing.T) {
	o := newTestOutbox(t)
	task, err := o.Enqueue(models.OutboxTask{Recipient: "store@example.com"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for i := 1; i <= 2; i++ {
		if err := o.RecordFailure(task.TaskID, "relay unreachable"); err != nil {
			t.Fatalf("RecordFailure %d failed: %v", i, err)
		}
	}
	tasks, err := o.Pending()
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("task count changed on failure: %d", len(tasks))
	}
	if tasks[0].AttemptCount != 2 {
		t.Errorf("attempt_count = %d, want 2", tasks[0].AttemptCount)
	}
	if tasks[0].LastError != "relay unreachable" {
		t.Errorf("last_error = %q", tasks[0].LastError)
	}
}

func TestMarkDeliveredRemovesTask(t *testing.T) {
	o := newTestOutbox(t)
	task, err := o.Enqueue(models.OutboxTask{Recipient: "store@example.com"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := o.MarkDelivered(task.TaskID); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}
	tasks, err := o.Pending()
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("delivered task still pending: %+v", tasks)
	}
	if err := o.MarkDelivered(task.TaskID); !errors.Is(err, models.ErrTaskNotFound) {
		t.Errorf("second MarkDelivered err = %v, want ErrTaskNotFound", err)
	}
}

func TestCancelRemovesTask(t *testing.T) {
	o := newTestOutbox(t)
	task, err := o.Enqueue(models.OutboxTask{Recipient: "store@example.com"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := o.Cancel(task.TaskID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := o.RecordFailure(task.TaskID, "x"); !errors.Is(err, models.ErrTaskNotFound) {
		t.Errorf("RecordFailure on cancelled task err = %v, want ErrTaskNotFound", err)
	}
}
