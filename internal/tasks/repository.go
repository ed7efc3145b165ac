package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a task does not exist for the acting
// identity. A task owned by a different identity yields the same error, so
// callers cannot distinguish "absent" from "belongs to someone else".
var ErrNotFound = errors.New("task not found")

// Task represents a todo item owned by one user.
type Task struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description *string   `json:"description,omitempty" db:"description"`
	Completed   bool      `json:"completed" db:"completed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Update carries optional field changes for a task.
type Update struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Repository persists tasks. Every query is scoped by the owner's identity
// in addition to the task id; an id belonging to another user behaves
// exactly like a missing id.
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRepository creates a task repository.
func NewRepository(db *sqlx.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Create inserts a new task for the user.
func (r *Repository) Create(ctx context.Context, userID, title string, description *string) (*Task, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	var task Task
	err := r.db.GetContext(ctx, &task, `
		INSERT INTO tasks (user_id, title, description, completed, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, now(), now())
		RETURNING *`,
		userID, title, description,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	r.logger.Debug("Created task",
		zap.Int64("task_id", task.ID),
		zap.String("user_id", userID),
	)
	return &task, nil
}

// List returns all of the user's tasks, oldest first.
func (r *Repository) List(ctx context.Context, userID string) ([]Task, error) {
	tasks := []Task{}
	err := r.db.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// ListPending returns the user's incomplete tasks, oldest first.
func (r *Repository) ListPending(ctx context.Context, userID string) ([]Task, error) {
	tasks := []Task{}
	err := r.db.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks WHERE user_id = $1 AND completed = FALSE ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	return tasks, nil
}

// Get returns one task by id, scoped to the user.
func (r *Repository) Get(ctx context.Context, userID string, id int64) (*Task, error) {
	var task Task
	err := r.db.GetContext(ctx, &task, `
		SELECT * FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// Rename updates a task's title.
func (r *Repository) Rename(ctx context.Context, userID string, id int64, title string) (*Task, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	var task Task
	err := r.db.GetContext(ctx, &task, `
		UPDATE tasks SET title = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3
		RETURNING *`,
		title, id, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to rename task: %w", err)
	}
	return &task, nil
}

// Complete marks a task as completed. Completing an already completed task
// is a no-op success.
func (r *Repository) Complete(ctx context.Context, userID string, id int64) (*Task, error) {
	var task Task
	err := r.db.GetContext(ctx, &task, `
		UPDATE tasks SET completed = TRUE, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING *`,
		id, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}
	return &task, nil
}

// Apply updates the provided fields on a task.
func (r *Repository) Apply(ctx context.Context, userID string, id int64, update Update) (*Task, error) {
	var task Task
	err := r.db.GetContext(ctx, &task, `
		UPDATE tasks SET
			title = COALESCE($1, title),
			description = COALESCE($2, description),
			completed = COALESCE($3, completed),
			updated_at = now()
		WHERE id = $4 AND user_id = $5
		RETURNING *`,
		update.Title, update.Description, update.Completed, id, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return &task, nil
}

// Toggle flips a task's completed flag.
func (r *Repository) Toggle(ctx context.Context, userID string, id int64) (*Task, error) {
	var task Task
	err := r.db.GetContext(ctx, &task, `
		UPDATE tasks SET completed = NOT completed, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING *`,
		id, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to toggle task: %w", err)
	}
	return &task, nil
}

// Delete removes a task. It reports whether a row was deleted.
func (r *Repository) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}
