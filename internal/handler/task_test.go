package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tasktracker/internal/idem"
	"tasktracker/internal/model"
	"tasktracker/internal/repo"
	"tasktracker/internal/service"
)

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, t model.Task) (model.Task, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskRepository) Get(ctx context.Context, id string) (model.Task, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskRepository) List(ctx context.Context, page, pageSize int, sort string) ([]model.Task, error) {
	args := m.Called(ctx, page, pageSize, sort)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepository) UpdateStatus(ctx context.Context, id, status string) (model.Task, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockIdemStore struct {
	mock.Mock
}

func (m *MockIdemStore) Get(ctx context.Context, key string) (idem.Entry, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(idem.Entry), args.Error(1)
}

func (m *MockIdemStore) Save(ctx context.Context, key string, e idem.Entry) error {
	args := m.Called(ctx, key, e)
	return args.Error(0)
}

func newTestRouter(mockRepo *MockTaskRepository) http.Handler {
	svc := service.NewTaskService(mockRepo, new(MockIdemStore), nil)
	h := NewTaskHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Group(h.Routes)
	return r
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp["error"]
}

func TestCreateTask(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockTaskRepository)
		wantStatus int
		wantError  string
	}{
		{
			name: "created",
			body: `{"title":"Prepare bundle","dueAt":"2025-09-30T17:00:00Z"}`,
			setupMock: func(m *MockTaskRepository) {
				m.On("Create", mock.Anything, mock.Anything).
					Return(model.Task{ID: "t-1", Title: "Prepare bundle", Status: model.StatusOpen}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "empty body",
			body:       "",
			setupMock:  func(*MockTaskRepository) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "empty request body",
		},
		{
			name:       "invalid json",
			body:       `{"title":`,
			setupMock:  func(*MockTaskRepository) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing title",
			body:       `{"description":"no title"}`,
			setupMock:  func(*MockTaskRepository) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "title is required: validation error",
		},
		{
			name:       "malformed due date",
			body:       `{"title":"Task","dueAt":"tomorrow"}`,
			setupMock:  func(*MockTaskRepository) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "dueAt must be an ISO-8601 timestamp: validation error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)
			router := newTestRouter(mockRepo)

			req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorMessage(t, rec.Body.Bytes()))
			}
			if tt.wantStatus == http.StatusCreated {
				assert.Equal(t, "/tasks/t-1", rec.Header().Get("Location"))

				var task model.Task
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
				assert.Equal(t, "t-1", task.ID)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockTaskRepository)
		wantStatus int
		wantError  string
	}{
		{
			name: "transition applied",
			body: `{"status":"IN_PROGRESS"}`,
			setupMock: func(m *MockTaskRepository) {
				m.On("Get", mock.Anything, "t-1").
					Return(model.Task{ID: "t-1", Title: "Task", Status: model.StatusOpen}, nil)
				m.On("UpdateStatus", mock.Anything, "t-1", model.StatusInProgress).
					Return(model.Task{ID: "t-1", Title: "Task", Status: model.StatusInProgress}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown status is a final 400 with a message",
			body:       `{"status":"ARCHIVED"}`,
			setupMock:  func(*MockTaskRepository) {},
			wantStatus: http.StatusBadRequest,
			wantError:  `unknown status "ARCHIVED": bad status`,
		},
		{
			name: "invalid transition",
			body: `{"status":"DONE"}`,
			setupMock: func(m *MockTaskRepository) {
				m.On("Get", mock.Anything, "t-1").
					Return(model.Task{ID: "t-1", Title: "Task", Status: model.StatusOpen}, nil)
			},
			wantStatus: http.StatusConflict,
			wantError:  "cannot complete a task from OPEN: conflict",
		},
		{
			name: "task not found",
			body: `{"status":"IN_PROGRESS"}`,
			setupMock: func(m *MockTaskRepository) {
				m.On("Get", mock.Anything, "t-1").
					Return(model.Task{}, repo.ErrorNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantError:  "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)
			router := newTestRouter(mockRepo)

			req := httptest.NewRequest(http.MethodPut, "/tasks/t-1/status", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorMessage(t, rec.Body.Bytes()))
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestUpdateStatus_LegacyRoutesAbsent(t *testing.T) {
	router := newTestRouter(new(MockTaskRepository))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPatch, "/tasks/t-1", strings.NewReader(`{"status":"DONE"}`)),
		httptest.NewRequest(http.MethodPost, "/tasks/t-1/start", nil),
		httptest.NewRequest(http.MethodPost, "/tasks/t-1/complete", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code,
			"%s %s should not be routed", req.Method, req.URL.Path)
	}
}

func TestGetTask(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	mockRepo.On("Get", mock.Anything, "missing").Return(model.Task{}, repo.ErrorNotFound)
	router := newTestRouter(mockRepo)

	req := httptest.NewRequest(http.MethodGet, "/tasks/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", errorMessage(t, rec.Body.Bytes()))
}

func TestListTasks(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	mockRepo.On("List", mock.Anything, 2, 50, "status").
		Return([]model.Task{{ID: "t-1", Title: "Task", Status: model.StatusOpen}}, nil)
	router := newTestRouter(mockRepo)

	req := httptest.NewRequest(http.MethodGet, "/tasks?page=2&page_size=50&sort=status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var tasks []model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "t-1", tasks[0].ID)
	mockRepo.AssertExpectations(t)
}

func TestDeleteTask(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	mockRepo.On("Delete", mock.Anything, "t-1").Return(nil)
	router := newTestRouter(mockRepo)

	req := httptest.NewRequest(http.MethodDelete, "/tasks/t-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	mockRepo.AssertExpectations(t)
}
