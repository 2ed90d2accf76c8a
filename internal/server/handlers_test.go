// File: internal/server/handlers_test.go
package server

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
	"github.com/tagprobe/tagprobe-cli/internal/store"
)

// -- Fakes --

type fakeRunner struct {
	lastKind   schemas.ScanKind
	lastTarget string
	result     *schemas.ScanResult
	err        error
}

func (f *fakeRunner) Run(ctx context.Context, kind schemas.ScanKind, targetURL string) (*schemas.ScanResult, error) {
	f.lastKind = kind
	f.lastTarget = targetURL
	return f.result, f.err
}

type fakeRepo struct {
	saved   []*schemas.ScanResult
	latest  map[schemas.ScanKind]*schemas.ScanResult
	history []schemas.ScanResult
	tasks   map[string]*schemas.ScheduledTask
	listErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		latest: make(map[schemas.ScanKind]*schemas.ScanResult),
		tasks:  make(map[string]*schemas.ScheduledTask),
	}
}

func (f *fakeRepo) SaveScan(ctx context.Context, result *schemas.ScanResult) error {
	f.saved = append(f.saved, result)
	f.latest[result.Kind] = result
	return nil
}

func (f *fakeRepo) LatestScan(ctx context.Context, kind schemas.ScanKind) (*schemas.ScanResult, error) {
	if r, ok := f.latest[kind]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) ScansInRange(ctx context.Context, from, to time.Time) ([]schemas.ScanResult, error) {
	var out []schemas.ScanResult
	for _, r := range f.history {
		if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ClearScans(ctx context.Context, kind schemas.ScanKind) error {
	delete(f.latest, kind)
	return nil
}

func (f *fakeRepo) CreateTask(ctx context.Context, task *schemas.ScheduledTask) error {
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeRepo) GetTask(ctx context.Context, id string) (*schemas.ScheduledTask, error) {
	if t, ok := f.tasks[id]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) ListTasks(ctx context.Context) ([]schemas.ScheduledTask, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []schemas.ScheduledTask
	for _, t := range f.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeRepo) UpdateTask(ctx context.Context, task *schemas.ScheduledTask) error {
	if _, ok := f.tasks[task.ID]; !ok {
		return store.ErrNotFound
	}
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeRepo) UpdateTaskStatus(ctx context.Context, id string, status schemas.TaskStatus) error {
	t, ok := f.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Status = status
	return nil
}

func (f *fakeRepo) DeleteTask(ctx context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

// -- Helpers --

func newTestRouter(runner *fakeRunner, repo *fakeRepo) chi.Router {
	h := NewHandlers(runner, repo, "https://default.example.com", zap.NewNop())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router chi.Router, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "every endpoint must answer with the envelope")
	return rec, resp
}

func sampleScanResult() *schemas.ScanResult {
	return &schemas.ScanResult{
		ID:        "scan-1",
		Kind:      schemas.ScanCookies,
		Timestamp: time.Now().UTC(),
		TargetURL: "https://example.com",
		Payload:   stdjson.RawMessage(`[]`),
	}
}

// -- Scan endpoints --

func TestHandleHealthCheck(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, newFakeRepo())
	rec, resp := doRequest(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestHandleRunScan(t *testing.T) {
	t.Run("runs, persists and returns the result", func(t *testing.T) {
		runner := &fakeRunner{result: sampleScanResult()}
		repo := newFakeRepo()
		router := newTestRouter(runner, repo)

		rec, resp := doRequest(t, router, http.MethodPost, "/scan/cookies",
			map[string]string{"url": "https://shop.example.com"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, schemas.ScanCookies, runner.lastKind)
		assert.Equal(t, "https://shop.example.com", runner.lastTarget)
		require.Len(t, repo.saved, 1, "a completed scan must be persisted before responding")
	})

	t.Run("falls back to the configured default target", func(t *testing.T) {
		runner := &fakeRunner{result: sampleScanResult()}
		router := newTestRouter(runner, newFakeRepo())

		rec, _ := doRequest(t, router, http.MethodPost, "/scan/cookies", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://default.example.com", runner.lastTarget)
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		router := newTestRouter(&fakeRunner{}, newFakeRepo())
		rec, resp := doRequest(t, router, http.MethodPost, "/scan/heatmap", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("maps scan failure to 502 with no persistence", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("navigation timed out")}
		repo := newFakeRepo()
		router := newTestRouter(runner, repo)

		rec, resp := doRequest(t, router, http.MethodPost, "/scan/analytics", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.False(t, resp.Success)
		assert.Empty(t, repo.saved)
	})
}

func TestHandleLatestScan(t *testing.T) {
	repo := newFakeRepo()
	repo.latest[schemas.ScanCookies] = sampleScanResult()
	router := newTestRouter(&fakeRunner{}, repo)

	t.Run("returns the stored result", func(t *testing.T) {
		rec, resp := doRequest(t, router, http.MethodGet, "/scans/latest/cookies", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
	})

	t.Run("404 for a kind never scanned", func(t *testing.T) {
		rec, resp := doRequest(t, router, http.MethodGet, "/scans/latest/analytics", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.False(t, resp.Success)
	})
}

func TestHandleListScans(t *testing.T) {
	repo := newFakeRepo()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.history = []schemas.ScanResult{
		{ID: "old", Timestamp: base.AddDate(0, -2, 0), Payload: stdjson.RawMessage(`[]`)},
		{ID: "recent", Timestamp: base.AddDate(0, 0, 5), Payload: stdjson.RawMessage(`[]`)},
	}
	router := newTestRouter(&fakeRunner{}, repo)

	t.Run("range filter applies", func(t *testing.T) {
		rec, resp := doRequest(t, router, http.MethodGet,
			"/scans?from=2026-08-01T00:00:00Z&to=2026-09-01T00:00:00Z", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var results []schemas.ScanResult
		require.NoError(t, json.Unmarshal(raw, &results))
		require.Len(t, results, 1)
		assert.Equal(t, "recent", results[0].ID)
	})

	t.Run("bad timestamp rejected", func(t *testing.T) {
		rec, resp := doRequest(t, router, http.MethodGet, "/scans?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
	})
}

func TestHandleClearScans(t *testing.T) {
	repo := newFakeRepo()
	repo.latest[schemas.ScanEventLog] = sampleScanResult()
	router := newTestRouter(&fakeRunner{}, repo)

	rec, resp := doRequest(t, router, http.MethodDelete, "/scans/eventlog", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotContains(t, repo.latest, schemas.ScanEventLog)
}

// -- Task endpoints --

func validTaskBody() map[string]string {
	return map[string]string{
		"title":          "Nightly audit",
		"kind":           "cookies",
		"target_url":     "https://example.com",
		"scheduled_date": "2026-09-01",
		"scheduled_time": "03:00",
		"recurrence":     "daily",
	}
}

func TestHandleCreateTask(t *testing.T) {
	t.Run("creates a pending task", func(t *testing.T) {
		repo := newFakeRepo()
		router := newTestRouter(&fakeRunner{}, repo)

		rec, resp := doRequest(t, router, http.MethodPost, "/tasks", validTaskBody())
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, resp.Success)
		require.Len(t, repo.tasks, 1)
		for _, task := range repo.tasks {
			assert.Equal(t, schemas.TaskPending, task.Status)
			assert.NotEmpty(t, task.ID)
		}
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		router := newTestRouter(&fakeRunner{}, newFakeRepo())
		body := validTaskBody()
		body["scheduled_date"] = "01/09/2026"

		rec, resp := doRequest(t, router, http.MethodPost, "/tasks", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
	})

	t.Run("defaults recurrence to none", func(t *testing.T) {
		repo := newFakeRepo()
		router := newTestRouter(&fakeRunner{}, repo)
		body := validTaskBody()
		delete(body, "recurrence")

		rec, _ := doRequest(t, router, http.MethodPost, "/tasks", body)
		assert.Equal(t, http.StatusCreated, rec.Code)
		for _, task := range repo.tasks {
			assert.Equal(t, schemas.RecurrenceNone, task.Recurrence)
		}
	})
}

func TestHandleUpdateTask_AnchorImmutable(t *testing.T) {
	repo := newFakeRepo()
	repo.tasks["task-1"] = &schemas.ScheduledTask{
		ID:            "task-1",
		Title:         "Audit",
		Kind:          schemas.ScanCookies,
		TargetURL:     "https://example.com",
		ScheduledDate: "2026-09-01",
		ScheduledTime: "03:00",
		Recurrence:    schemas.RecurrenceDaily,
		Status:        schemas.TaskPending,
	}
	router := newTestRouter(&fakeRunner{}, repo)

	body := validTaskBody()
	body["scheduled_date"] = "2026-10-01"

	rec, resp := doRequest(t, router, http.MethodPut, "/tasks/task-1", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "immutable")
	assert.Equal(t, "2026-09-01", repo.tasks["task-1"].ScheduledDate)

	t.Run("other fields update fine", func(t *testing.T) {
		body := validTaskBody()
		body["scheduled_date"] = "2026-09-01"
		body["title"] = "Renamed audit"

		rec, _ := doRequest(t, router, http.MethodPut, "/tasks/task-1", body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Renamed audit", repo.tasks["task-1"].Title)
	})
}

func TestHandleUpdateTaskStatus(t *testing.T) {
	repo := newFakeRepo()
	repo.tasks["task-1"] = &schemas.ScheduledTask{ID: "task-1", Status: schemas.TaskPending}
	router := newTestRouter(&fakeRunner{}, repo)

	t.Run("valid transition", func(t *testing.T) {
		rec, _ := doRequest(t, router, http.MethodPatch, "/tasks/task-1/status",
			map[string]string{"status": "completed"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, schemas.TaskCompleted, repo.tasks["task-1"].Status)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		rec, resp := doRequest(t, router, http.MethodPatch, "/tasks/task-1/status",
			map[string]string{"status": "paused"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
	})

	t.Run("missing task is 404", func(t *testing.T) {
		rec, _ := doRequest(t, router, http.MethodPatch, "/tasks/ghost/status",
			map[string]string{"status": "failed"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleTasksDue(t *testing.T) {
	repo := newFakeRepo()
	repo.tasks["daily"] = &schemas.ScheduledTask{
		ID: "daily", ScheduledDate: "2026-08-01", Recurrence: schemas.RecurrenceDaily,
		Status: schemas.TaskPending,
	}
	repo.tasks["future"] = &schemas.ScheduledTask{
		ID: "future", ScheduledDate: "2026-12-01", Recurrence: schemas.RecurrenceNone,
		Status: schemas.TaskPending,
	}
	router := newTestRouter(&fakeRunner{}, repo)

	rec, resp := doRequest(t, router, http.MethodGet, "/tasks/due?date=2026-08-15", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	raw, _ := json.Marshal(resp.Data)
	var due []schemas.ScheduledTask
	require.NoError(t, json.Unmarshal(raw, &due))
	require.Len(t, due, 1)
	assert.Equal(t, "daily", due[0].ID)
}

func TestHandleTaskCalendar(t *testing.T) {
	repo := newFakeRepo()
	repo.tasks["weekly"] = &schemas.ScheduledTask{
		ID: "weekly", ScheduledDate: "2026-08-03", Recurrence: schemas.RecurrenceWeekly,
		Status: schemas.TaskPending,
	}
	router := newTestRouter(&fakeRunner{}, repo)

	t.Run("paints due days", func(t *testing.T) {
		rec, resp := doRequest(t, router, http.MethodGet, "/tasks/calendar?year=2026&month=8", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		raw, _ := json.Marshal(resp.Data)
		var calendar map[string][]schemas.ScheduledTask
		require.NoError(t, json.Unmarshal(raw, &calendar))
		assert.Len(t, calendar, 5, "weekly task fires five times in August 2026")
		assert.Contains(t, calendar, "2026-08-31")
	})

	t.Run("missing month rejected", func(t *testing.T) {
		rec, _ := doRequest(t, router, http.MethodGet, "/tasks/calendar?year=2026", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleTaskStats(t *testing.T) {
	repo := newFakeRepo()
	repo.tasks["a"] = &schemas.ScheduledTask{ID: "a", Status: schemas.TaskPending, Recurrence: schemas.RecurrenceDaily}
	repo.tasks["b"] = &schemas.ScheduledTask{ID: "b", Status: schemas.TaskFailed, Recurrence: schemas.RecurrenceNone}
	router := newTestRouter(&fakeRunner{}, repo)

	rec, resp := doRequest(t, router, http.MethodGet, "/tasks/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	raw, _ := json.Marshal(resp.Data)
	var stats schemas.TaskStats
	require.NoError(t, json.Unmarshal(raw, &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Recurring)
}

func TestHandleDeleteTask(t *testing.T) {
	repo := newFakeRepo()
	repo.tasks["task-1"] = &schemas.ScheduledTask{ID: "task-1"}
	router := newTestRouter(&fakeRunner{}, repo)

	rec, _ := doRequest(t, router, http.MethodDelete, "/tasks/task-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, repo.tasks)

	rec, _ = doRequest(t, router, http.MethodDelete, "/tasks/task-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
