package repo

import (
	"context"

	"tasktracker/internal/model"
)

// TaskRepository is the persistence boundary for tasks.
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	List(ctx context.Context, page, pageSize int, sort string) ([]model.Task, error)
	UpdateStatus(ctx context.Context, id, status string) (model.Task, error)
	Delete(ctx context.Context, id string) error
}
