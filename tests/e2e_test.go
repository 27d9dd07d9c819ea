package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tasktracker/internal/client"
	"tasktracker/internal/handler"
	"tasktracker/internal/idem"
	"tasktracker/internal/model"
	"tasktracker/internal/repo"
	"tasktracker/internal/service"
	"tasktracker/internal/worker"
)

func setupE2EServer(t *testing.T) (*httptest.Server, func()) {
	pool, cleanup := SetupTestDB(t)
	TruncateTables(t, pool)

	logger := zap.NewNop()
	taskRepo := repo.NewTaskRepo(pool)
	taskService := service.NewTaskService(taskRepo, idem.NewPostgresStore(pool), nil)
	taskHandler := handler.NewTaskHandler(taskService, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Group(taskHandler.Routes)

	janitor := worker.NewJanitor(pool, logger, 24*time.Hour, 1)
	janitor.Start(context.Background())

	server := httptest.NewServer(r)

	return server, func() {
		janitor.Stop()
		server.Close()
		cleanup()
	}
}

func TestE2E_TaskLifecycle(t *testing.T) {
	server, cleanup := setupE2EServer(t)
	defer cleanup()

	ctx := context.Background()
	api := client.New(server.URL, zap.NewNop())

	created, err := api.Create(ctx, client.CreateRequest{
		Title: "E2E task",
		DueAt: "2025-09-30T17:00:00Z",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.StatusOpen, created.Status)

	fetched, err := api.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)

	// Completing an OPEN task is rejected upstream; the server's message
	// reaches the caller intact.
	_, err = api.UpdateStatus(ctx, created.ID, model.StatusDone)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot complete a task from OPEN")

	started, err := api.UpdateStatus(ctx, created.ID, model.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, started.Status)

	done, err := api.UpdateStatus(ctx, created.ID, model.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, done.Status)

	// An unknown status is a final 400 with a message. The client must not
	// fall through to its legacy routes.
	_, err = api.UpdateStatus(ctx, created.ID, "ARCHIVED")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown status "ARCHIVED"`)

	tasks, err := api.List(ctx, client.ListOptions{Page: 1, PageSize: 20, Sort: "dueDate"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.StatusDone, tasks[0].Status)

	require.NoError(t, api.Delete(ctx, created.ID))

	_, err = api.Get(ctx, created.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestE2E_IdempotentCreate(t *testing.T) {
	server, cleanup := setupE2EServer(t)
	defer cleanup()

	payload := []byte(`{"title":"Idempotent task"}`)
	post := func() model.Task {
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/tasks", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "e2e-key-1")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var task model.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
		return task
	}

	first := post()
	second := post()
	assert.Equal(t, first.ID, second.ID)

	api := client.New(server.URL, zap.NewNop())
	tasks, err := api.List(context.Background(), client.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestE2E_IdempotencyKeyReuse(t *testing.T) {
	server, cleanup := setupE2EServer(t)
	defer cleanup()

	post := func(body string) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/tasks", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "e2e-key-2")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := post(`{"title":"Original"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post(`{"title":"Different payload"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
