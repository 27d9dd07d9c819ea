package webui

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tasktracker/internal/client"
	"tasktracker/internal/model"
	"tasktracker/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// TasksAPI is the slice of the API client the pages need.
type TasksAPI interface {
	List(ctx context.Context, opts client.ListOptions) ([]model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	Create(ctx context.Context, req client.CreateRequest) (model.Task, error)
	UpdateStatus(ctx context.Context, id, status string) (model.Task, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	api    TasksAPI
	logger *zap.Logger
	tmpl   *template.Template
	now    func() time.Time
}

func NewHandler(api TasksAPI, logger *zap.Logger) *Handler {
	return &Handler{
		api:    api,
		logger: logger,
		tmpl: template.Must(template.New("").Funcs(template.FuncMap{
			"mod": func(a, b int) int { return a % b },
		}).ParseFS(templateFS, "templates/*.html")),
		now:    time.Now,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Home)
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/new", h.NewForm)
		r.Post("/", h.Create)
		r.Get("/calendar", h.Calendar)
		r.Get("/{id}", h.Details)
		r.Post("/{id}/start", h.Start)
		r.Post("/{id}/complete", h.Complete)
		r.Post("/{id}/delete", h.Delete)
	})
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "home.html", nil)
}

type listData struct {
	Tasks    []view.AnnotatedTask
	Status   string
	Sort     string
	Page     int
	PageSize int
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	sort := q.Get("sort")
	if sort != "dueDate" && sort != "status" {
		sort = ""
	}
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	// The upstream list API has no status filter, so status is applied here
	// after annotation.
	raw, err := h.api.List(r.Context(), client.ListOptions{Page: page, PageSize: pageSize, Sort: sort})
	if err != nil {
		h.logger.Error("list tasks failed", zap.Error(err))
		h.renderError(w, http.StatusBadGateway, "Failed to load tasks", err)
		return
	}

	tasks := view.Annotate(raw, h.now())
	if status != "" {
		filtered := tasks[:0:0]
		for _, t := range tasks {
			if t.Status == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	h.render(w, http.StatusOK, "list.html", listData{
		Tasks:    tasks,
		Status:   status,
		Sort:     sort,
		Page:     page,
		PageSize: pageSize,
	})
}

type formData struct {
	Values map[string]string
	Errors map[string]string
}

func (h *Handler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "form.html", formData{
		Values: map[string]string{},
		Errors: map[string]string{},
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, http.StatusBadRequest, "Could not read the form", err)
		return
	}

	values := map[string]string{
		"title":       r.PostFormValue("title"),
		"description": r.PostFormValue("description"),
		"dueAt":       r.PostFormValue("dueAt"),
	}

	if isBlank(values["title"]) {
		h.render(w, http.StatusUnprocessableEntity, "form.html", formData{
			Values: values,
			Errors: map[string]string{"title": "Enter a title"},
		})
		return
	}

	task, err := h.api.Create(r.Context(), client.CreateRequest{
		Title:       values["title"],
		Description: values["description"],
		DueAt:       values["dueAt"],
	})
	if err != nil {
		h.render(w, http.StatusBadRequest, "form.html", formData{
			Values: values,
			Errors: map[string]string{"global": err.Error()},
		})
		return
	}

	http.Redirect(w, r, "/tasks/"+url.PathEscape(task.ID), http.StatusSeeOther)
}

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	month := r.URL.Query().Get("month")
	if month == "" {
		month = h.now().UTC().Format("2006-01")
	}

	raw, err := h.api.List(r.Context(), client.ListOptions{Page: 1, PageSize: 500, Sort: "dueDate"})
	if err != nil {
		// Older APIs reject paging outright; ask again without it.
		h.logger.Warn("calendar: API rejected paging, retrying without it", zap.Error(err))
		raw, err = h.api.List(r.Context(), client.ListOptions{Sort: "dueDate"})
	}
	if err != nil {
		h.logger.Error("calendar load failed", zap.Error(err))
		h.renderError(w, http.StatusBadGateway, "Failed to load calendar", err)
		return
	}

	if status != "" {
		filtered := raw[:0:0]
		for _, t := range raw {
			if t.Status == status {
				filtered = append(filtered, t)
			}
		}
		raw = filtered
	}

	m, err := view.BuildMonth(month, raw, h.now())
	if errors.Is(err, view.ErrInvalidMonth) {
		h.renderError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	if err != nil {
		h.renderError(w, http.StatusBadGateway, "Failed to load calendar", err)
		return
	}

	h.render(w, http.StatusOK, "calendar.html", struct {
		view.Month
		Status string
	}{m, status})
}

func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw, err := h.api.Get(r.Context(), id)
	if err != nil {
		h.renderError(w, http.StatusNotFound, "Task not found", err)
		return
	}

	flagged := view.Annotate([]model.Task{raw}, h.now())
	h.render(w, http.StatusOK, "details.html", struct {
		Task view.AnnotatedTask
		Back string
	}{flagged[0], r.URL.Query().Get("back")})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusInProgress, "Could not start task")
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusDone, "Could not complete task")
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, target, failMsg string) {
	id := chi.URLParam(r, "id")

	if _, err := h.api.UpdateStatus(r.Context(), id, target); err != nil {
		h.logger.Error("status change failed",
			zap.String("task_id", id),
			zap.String("target", target),
			zap.Error(err),
		)
		h.renderError(w, http.StatusBadRequest, failMsg, err)
		return
	}

	http.Redirect(w, r, "/tasks/"+url.PathEscape(id), http.StatusSeeOther)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.api.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete failed", zap.String("task_id", id), zap.Error(err))
		h.renderError(w, http.StatusBadRequest, "Could not delete task", err)
		return
	}

	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render template", zap.String("template", name), zap.Error(err))
	}
}

func (h *Handler) renderError(w http.ResponseWriter, code int, message string, err error) {
	h.render(w, code, "error.html", struct {
		Message string
		Error   string
	}{message, err.Error()})
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
