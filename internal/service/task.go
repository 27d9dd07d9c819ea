package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasktracker/internal/events"
	"tasktracker/internal/idem"
	"tasktracker/internal/model"
	"tasktracker/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
	// ErrBadStatus marks a status value the API does not accept at all. The
	// handler turns it into a 400 with the message intact, which the frontend
	// client treats as an authoritative rejection.
	ErrBadStatus = errors.New("bad status")
	ErrConflict  = errors.New("conflict")
	ErrDuplicate = errors.New("duplicate request")
)

type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueAt       string `json:"dueAt"`
}

type TaskService struct {
	repo   repo.TaskRepository
	idem   idem.Store
	events *events.Publisher
}

func NewTaskService(r repo.TaskRepository, store idem.Store, ev *events.Publisher) *TaskService {
	return &TaskService{repo: r, idem: store, events: ev}
}

func (s *TaskService) Create(ctx context.Context, req CreateRequest, idemKey string) (model.Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validate(req); err != nil {
		return model.Task{}, err
	}

	fp := fingerprint(req)
	if idemKey != "" {
		if entry, err := s.idem.Get(ctx, idemKey); err == nil {
			if entry.Fingerprint != fp {
				return model.Task{}, fmt.Errorf("idempotency key reused with a different payload: %w", ErrDuplicate)
			}
			return s.repo.Get(ctx, entry.ResourceID)
		}
	}

	task, err := s.repo.Create(ctx, model.Task{
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
	})
	if err != nil {
		return task, err
	}

	if idemKey != "" {
		_ = s.idem.Save(ctx, idemKey, idem.Entry{Fingerprint: fp, ResourceID: task.ID})
	}

	s.events.TaskCreated(task)
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (model.Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *TaskService) List(ctx context.Context, page, pageSize int, sort string) ([]model.Task, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	if sort != "dueDate" && sort != "status" {
		sort = "dueDate"
	}
	return s.repo.List(ctx, page, pageSize, sort)
}

// UpdateStatus applies the one-way OPEN -> IN_PROGRESS -> DONE lifecycle.
// Re-asserting the current status is a no-op; moving backwards or skipping
// over IN_PROGRESS in reverse is a conflict.
func (s *TaskService) UpdateStatus(ctx context.Context, id, target string) (model.Task, error) {
	if !model.KnownStatus(target) {
		return model.Task{}, fmt.Errorf("unknown status %q: %w", target, ErrBadStatus)
	}

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Task{}, err
	}

	switch target {
	case model.StatusOpen:
		// Reverting is never persisted; the task stays as it is.
		return cur, nil
	case model.StatusInProgress:
		if cur.Status == model.StatusDone {
			return model.Task{}, fmt.Errorf("task is already DONE: %w", ErrConflict)
		}
	case model.StatusDone:
		if cur.Status == model.StatusOpen {
			return model.Task{}, fmt.Errorf("cannot complete a task from OPEN: %w", ErrConflict)
		}
	}

	if cur.Status == target {
		return cur, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, target)
	if err != nil {
		return updated, err
	}

	s.events.StatusChanged(updated)
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.TaskDeleted(id)
	return nil
}

func (s *TaskService) validate(req CreateRequest) error {
	if req.Title == "" {
		return fmt.Errorf("title is required: %w", ErrValidation)
	}
	if req.DueAt != "" {
		if _, err := time.Parse(time.RFC3339, req.DueAt); err != nil {
			return fmt.Errorf("dueAt must be an ISO-8601 timestamp: %w", ErrValidation)
		}
	}
	return nil
}

// fingerprint hashes the canonical create payload so a retried request can be
// told apart from a different request reusing the same idempotency key.
func fingerprint(req CreateRequest) string {
	canonical, _ := json.Marshal(struct {
		Method      string `json:"method"`
		Path        string `json:"path"`
		Title       string `json:"title"`
		Description string `json:"description"`
		DueAt       string `json:"dueAt"`
	}{"POST", "/tasks", req.Title, req.Description, req.DueAt})

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
