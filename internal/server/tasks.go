// File: internal/server/tasks.go
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
	"github.com/tagprobe/tagprobe-cli/internal/schedule"
	"github.com/tagprobe/tagprobe-cli/internal/store"
)

// taskRequest is the operator-facing shape for creating and editing tasks.
type taskRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Kind          string `json:"kind"`
	TargetURL     string `json:"target_url"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
	Recurrence    string `json:"recurrence"`
}

// HandleCreateTask registers a new scheduled task. New tasks always start
// pending.
func (h *Handlers) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	task := schemas.ScheduledTask{
		ID:            uuid.New().String(),
		Title:         req.Title,
		Description:   req.Description,
		Kind:          schemas.ScanKind(req.Kind),
		TargetURL:     req.TargetURL,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
		Recurrence:    schemas.Recurrence(req.Recurrence),
		Status:        schemas.TaskPending,
		CreatedAt:     time.Now().UTC(),
	}
	if task.Recurrence == "" {
		task.Recurrence = schemas.RecurrenceNone
	}
	if err := task.Validate(); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.CreateTask(r.Context(), &task); err != nil {
		h.log.Error("Task creation failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not create task.")
		return
	}
	h.respondWithSuccess(w, http.StatusCreated, task)
}

// HandleListTasks returns every configured task.
func (h *Handlers) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.repo.ListTasks(r.Context())
	if err != nil {
		h.log.Error("Task listing failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not list tasks.")
		return
	}
	if tasks == nil {
		tasks = []schemas.ScheduledTask{}
	}
	h.respondWithSuccess(w, http.StatusOK, tasks)
}

// HandleGetTask returns one task by id.
func (h *Handlers) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.repo.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if errors.Is(err, store.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, "Task not found.")
		return
	}
	if err != nil {
		h.log.Error("Task lookup failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not read task.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, task)
}

// HandleUpdateTask edits a task's fields. The anchor date is immutable; a
// request that tries to move it is rejected rather than silently ignored.
func (h *Handlers) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	existing, err := h.repo.GetTask(r.Context(), taskID)
	if errors.Is(err, store.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, "Task not found.")
		return
	}
	if err != nil {
		h.log.Error("Task lookup failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not read task.")
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.ScheduledDate != "" && req.ScheduledDate != existing.ScheduledDate {
		h.respondWithError(w, http.StatusBadRequest, "scheduled_date is immutable; delete and recreate the task to move its anchor")
		return
	}

	updated := *existing
	updated.Title = req.Title
	updated.Description = req.Description
	updated.Kind = schemas.ScanKind(req.Kind)
	updated.TargetURL = req.TargetURL
	updated.ScheduledTime = req.ScheduledTime
	updated.Recurrence = schemas.Recurrence(req.Recurrence)
	if err := updated.Validate(); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.UpdateTask(r.Context(), &updated); err != nil {
		h.log.Error("Task update failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not update task.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, updated)
}

// HandleUpdateTaskStatus flips a task's status (operator acknowledgement).
func (h *Handlers) HandleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	status := schemas.TaskStatus(req.Status)
	switch status {
	case schemas.TaskPending, schemas.TaskCompleted, schemas.TaskFailed:
	default:
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}

	err := h.repo.UpdateTaskStatus(r.Context(), chi.URLParam(r, "taskID"), status)
	if errors.Is(err, store.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, "Task not found.")
		return
	}
	if err != nil {
		h.log.Error("Task status update failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not update task status.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]string{"status": string(status)})
}

// HandleDeleteTask removes a task.
func (h *Handlers) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	err := h.repo.DeleteTask(r.Context(), chi.URLParam(r, "taskID"))
	if errors.Is(err, store.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, "Task not found.")
		return
	}
	if err != nil {
		h.log.Error("Task deletion failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not delete task.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]string{"deleted": chi.URLParam(r, "taskID")})
}

// HandleTasksDue lists the tasks firing on a given date (default today).
func (h *Handlers) HandleTasksDue(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := schedule.ParseDate(raw)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		date = parsed
	}

	tasks, err := h.repo.ListTasks(r.Context())
	if err != nil {
		h.log.Error("Task listing failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not list tasks.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, schedule.TasksDueOn(tasks, date))
}

// HandleTaskCalendar maps each day of a month to the tasks due on it.
// Days with nothing due are omitted.
func (h *Handlers) HandleTaskCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "A numeric 'year' query parameter is required.")
		return
	}
	monthNum, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		h.respondWithError(w, http.StatusBadRequest, "A 'month' query parameter between 1 and 12 is required.")
		return
	}
	month := time.Month(monthNum)

	tasks, err := h.repo.ListTasks(r.Context())
	if err != nil {
		h.log.Error("Task listing failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not list tasks.")
		return
	}

	h.respondWithSuccess(w, http.StatusOK, schedule.DueDatesForMonth(tasks, year, month))
}

// HandleUpcomingTasks lists pending tasks anchored today or later.
func (h *Handlers) HandleUpcomingTasks(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.respondWithError(w, http.StatusBadRequest, "'limit' must be a positive integer.")
			return
		}
		limit = parsed
	}

	tasks, err := h.repo.ListTasks(r.Context())
	if err != nil {
		h.log.Error("Task listing failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not list tasks.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, schedule.Upcoming(tasks, time.Now().UTC(), limit))
}

// HandleTaskStats summarizes the task set.
func (h *Handlers) HandleTaskStats(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.repo.ListTasks(r.Context())
	if err != nil {
		h.log.Error("Task listing failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not list tasks.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, schedule.Stats(tasks))
}
