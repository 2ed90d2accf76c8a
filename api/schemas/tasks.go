package schemas

import (
	"fmt"
	"time"
)

// Recurrence controls how a scheduled task repeats after its anchor date.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// TaskStatus reflects operator acknowledgement of a task's last run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// DateLayout is the wire format for calendar dates (no time component).
const DateLayout = "2006-01-02"

// TimeLayout is the wire format for local time-of-day.
const TimeLayout = "15:04"

// ScheduledTask is one operator-configured recurring (or one-shot) scan.
// ScheduledDate is the recurrence anchor and is immutable after creation;
// editing a task updates its other fields but never moves the anchor.
type ScheduledTask struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Kind          ScanKind   `json:"kind"`
	TargetURL     string     `json:"target_url"`
	ScheduledDate string     `json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime string     `json:"scheduled_time"` // HH:MM
	Recurrence    Recurrence `json:"recurrence"`
	Status        TaskStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Validate checks the fields an operator supplies at creation time.
func (t *ScheduledTask) Validate() error {
	if _, err := ParseScanKind(string(t.Kind)); err != nil {
		return err
	}
	if t.TargetURL == "" {
		return fmt.Errorf("target_url is required")
	}
	if _, err := time.Parse(DateLayout, t.ScheduledDate); err != nil {
		return fmt.Errorf("scheduled_date %q is not a valid %s date", t.ScheduledDate, DateLayout)
	}
	if _, err := time.Parse(TimeLayout, t.ScheduledTime); err != nil {
		return fmt.Errorf("scheduled_time %q is not a valid %s time", t.ScheduledTime, TimeLayout)
	}
	switch t.Recurrence {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
	default:
		return fmt.Errorf("unknown recurrence %q", t.Recurrence)
	}
	switch t.Status {
	case TaskPending, TaskCompleted, TaskFailed:
	default:
		return fmt.Errorf("unknown status %q", t.Status)
	}
	return nil
}

// TaskStats summarizes a task set for dashboard display.
type TaskStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Recurring int `json:"recurring"`
}
