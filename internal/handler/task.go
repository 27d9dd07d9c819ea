package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tasktracker/internal/repo"
	"tasktracker/internal/service"
	"tasktracker/pkg/metrics"
	"tasktracker/pkg/respond"
)

type TaskHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewTaskHandler(srv *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		logger:  logger,
	}
}

// Routes mounts the task API. The status change lives only on the PUT
// sub-resource; older deployments' PATCH and action routes are deliberately
// not served here.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Post("/tasks", h.Create)
	r.Get("/tasks", h.List)
	r.Get("/tasks/{id}", h.Get)
	r.Put("/tasks/{id}/status", h.UpdateStatus)
	r.Delete("/tasks/{id}", h.Delete)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, http.StatusBadRequest, "empty request body")
		return
	}

	var req service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	task, err := h.service.Create(r.Context(), req, idemKey)
	if err != nil {
		h.handleErrors(w, err)
		return
	}

	metrics.TasksCreated.Inc()
	w.Header().Set("Location", "/tasks/"+url.PathEscape(task.ID))
	respond.JSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	sort := r.URL.Query().Get("sort")

	tasks, err := h.service.List(r.Context(), page, pageSize, sort)
	if err != nil {
		h.handleErrors(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		metrics.StatusTransitions.WithLabelValues(req.Status, "rejected").Inc()
		h.handleErrors(w, err)
		return
	}

	metrics.StatusTransitions.WithLabelValues(req.Status, "ok").Inc()
	respond.JSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleErrors(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrBadStatus):
		// Full message on purpose: clients treat a 400 with a message as a
		// final answer and skip their legacy-route fallbacks.
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrDuplicate):
		respond.Error(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}
