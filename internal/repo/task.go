package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tasktracker/internal/model"
)

var ErrorNotFound = errors.New("not found")

const taskColumns = "id, title, description, status, due_at"

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	due, err := parseDue(t.DueAt)
	if err != nil {
		return model.Task{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, status, due_at)
		VALUES ($1, $2, $3, 'OPEN', $4)
		RETURNING `+taskColumns+`
	`, uuid.NewString(), t.Title, t.Description, due)

	return scanTask(row)
}

func (r *TaskRepo) Get(ctx context.Context, id string) (model.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1
	`, id)

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) List(ctx context.Context, page, pageSize int, sort string) ([]model.Task, error) {
	order := "due_at ASC NULLS LAST, id"
	if sort == "status" {
		// OPEN first, DONE last, matching the board's reading order.
		order = `CASE status WHEN 'OPEN' THEN 0 WHEN 'IN_PROGRESS' THEN 1 WHEN 'DONE' THEN 2 ELSE 3 END, id`
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM tasks
		ORDER BY %s
		LIMIT $1 OFFSET $2
	`, taskColumns, order), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0, pageSize)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) UpdateStatus(ctx context.Context, id, status string) (model.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns+`
	`, id, status)

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	var due *time.Time

	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &due); err != nil {
		return model.Task{}, err
	}
	if due != nil {
		t.DueAt = due.UTC().Format(time.RFC3339)
	}
	return t, nil
}

func parseDue(dueAt string) (*time.Time, error) {
	if dueAt == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, dueAt)
	if err != nil {
		return nil, fmt.Errorf("parse dueAt: %w", err)
	}
	return &ts, nil
}
