// internal/schedule/resolver.go

// Package schedule resolves which scheduled tasks are due on a given calendar
// date. Resolution is purely arithmetic over the task's anchor date and
// recurrence rule; it never touches the clock, the store, or the browser.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
)

// ParseDate parses a YYYY-MM-DD wire date into a UTC midnight instant.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(schemas.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// IsDue reports whether the task fires on the given date.
//
// The anchor date itself is always due, whatever the recurrence. Dates before
// the anchor never are. After that: daily fires every day, weekly fires on
// whole-week multiples of the anchor, and monthly fires when the day of month
// matches the anchor's. The monthly rule is deliberately literal: a task
// anchored on the 31st skips months without a 31st rather than sliding to
// their last day.
func IsDue(task schemas.ScheduledTask, date time.Time) (bool, error) {
	anchor, err := ParseDate(task.ScheduledDate)
	if err != nil {
		return false, err
	}
	date = truncateToDay(date)

	if date.Equal(anchor) {
		return true, nil
	}
	if date.Before(anchor) {
		return false, nil
	}

	switch task.Recurrence {
	case schemas.RecurrenceNone:
		return false, nil
	case schemas.RecurrenceDaily:
		return true, nil
	case schemas.RecurrenceWeekly:
		days := int(date.Sub(anchor).Hours() / 24)
		return days%7 == 0, nil
	case schemas.RecurrenceMonthly:
		return date.Day() == anchor.Day(), nil
	default:
		return false, fmt.Errorf("unknown recurrence %q", task.Recurrence)
	}
}

// TasksDueOn filters tasks down to those firing on the given date, preserving
// input order. Tasks with unparseable anchors are skipped, not fatal: one bad
// row must not empty the day's schedule.
func TasksDueOn(tasks []schemas.ScheduledTask, date time.Time) []schemas.ScheduledTask {
	due := make([]schemas.ScheduledTask, 0)
	for _, task := range tasks {
		ok, err := IsDue(task, date)
		if err != nil {
			continue
		}
		if ok {
			due = append(due, task)
		}
	}
	return due
}

// DueDatesForMonth maps each date of the given month on which at least one
// task fires to the tasks due that day, keyed by wire date. Dates with
// nothing due are omitted. Used to paint the calendar view.
func DueDatesForMonth(tasks []schemas.ScheduledTask, year int, month time.Month) map[string][]schemas.ScheduledTask {
	calendar := make(map[string][]schemas.ScheduledTask)
	day := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for day.Month() == month {
		if due := TasksDueOn(tasks, day); len(due) > 0 {
			calendar[day.Format(schemas.DateLayout)] = due
		}
		day = day.AddDate(0, 0, 1)
	}
	return calendar
}

// Upcoming returns pending tasks whose anchor date is today or later, ordered
// by date then time-of-day, capped at limit. Recurrence is ignored here: the
// listing shows configured anchors, not computed occurrences.
func Upcoming(tasks []schemas.ScheduledTask, today time.Time, limit int) []schemas.ScheduledTask {
	today = truncateToDay(today)

	upcoming := make([]schemas.ScheduledTask, 0)
	for _, task := range tasks {
		if task.Status != schemas.TaskPending {
			continue
		}
		anchor, err := ParseDate(task.ScheduledDate)
		if err != nil {
			continue
		}
		if anchor.Before(today) {
			continue
		}
		upcoming = append(upcoming, task)
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		if upcoming[i].ScheduledDate != upcoming[j].ScheduledDate {
			return upcoming[i].ScheduledDate < upcoming[j].ScheduledDate
		}
		return upcoming[i].ScheduledTime < upcoming[j].ScheduledTime
	})

	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming
}

// Stats summarizes a task set for the dashboard.
func Stats(tasks []schemas.ScheduledTask) schemas.TaskStats {
	stats := schemas.TaskStats{Total: len(tasks)}
	for _, task := range tasks {
		switch task.Status {
		case schemas.TaskPending:
			stats.Pending++
		case schemas.TaskCompleted:
			stats.Completed++
		case schemas.TaskFailed:
			stats.Failed++
		}
		if task.Recurrence != schemas.RecurrenceNone {
			stats.Recurring++
		}
	}
	return stats
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
