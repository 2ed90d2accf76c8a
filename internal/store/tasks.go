package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
)

const taskColumns = `id, title, description, kind, target_url, scheduled_date, scheduled_time, recurrence, status, created_at`

// CreateTask inserts a new scheduled task.
func (s *Store) CreateTask(ctx context.Context, task *schemas.ScheduledTask) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO scheduled_tasks (`+taskColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.ID, task.Title, task.Description, string(task.Kind), task.TargetURL,
		task.ScheduledDate, task.ScheduledTime, string(task.Recurrence),
		string(task.Status), task.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask returns one task by id, or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, id string) (*schemas.ScheduledTask, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT `+taskColumns+`
        FROM scheduled_tasks
        WHERE id = $1`, id)

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return task, nil
}

// ListTasks returns every task, oldest configured first.
func (s *Store) ListTasks(ctx context.Context) ([]schemas.ScheduledTask, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+taskColumns+`
        FROM scheduled_tasks
        ORDER BY scheduled_date ASC, scheduled_time ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []schemas.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return tasks, nil
}

// UpdateTask rewrites a task's editable fields. The anchor date and creation
// time are immutable; a recurring task's identity is its anchor.
func (s *Store) UpdateTask(ctx context.Context, task *schemas.ScheduledTask) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE scheduled_tasks
        SET title = $2,
            description = $3,
            kind = $4,
            target_url = $5,
            scheduled_time = $6,
            recurrence = $7,
            status = $8
        WHERE id = $1`,
		task.ID, task.Title, task.Description, string(task.Kind), task.TargetURL,
		task.ScheduledTime, string(task.Recurrence), string(task.Status))
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTaskStatus flips just the status field.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status schemas.TaskStatus) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE scheduled_tasks SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task permanently.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scheduled_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanTask reads one task row regardless of whether it came from Query or QueryRow.
func scanTask(row pgx.Row) (*schemas.ScheduledTask, error) {
	var task schemas.ScheduledTask
	var kind, recurrence, status string
	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &kind, &task.TargetURL,
		&task.ScheduledDate, &task.ScheduledTime, &recurrence, &status, &task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Kind = schemas.ScanKind(kind)
	task.Recurrence = schemas.Recurrence(recurrence)
	task.Status = schemas.TaskStatus(status)
	return &task, nil
}
