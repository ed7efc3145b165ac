package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lumenhq/taskagent/internal/auth"
	"github.com/lumenhq/taskagent/internal/metrics"
	"github.com/lumenhq/taskagent/internal/tasks"
)

// Declaration describes a tool to the model capability. Parameters is a
// JSON schema object.
type Declaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Result is the outcome of one tool execution. Status is the
// human-readable form fed back to the model capability; the typed fields
// carry the structured result.
type Result struct {
	Status  string       `json:"status"`
	Task    *tasks.Task  `json:"task,omitempty"`
	Tasks   []tasks.Task `json:"tasks,omitempty"`
	Deleted bool         `json:"deleted,omitempty"`

	// NotFound marks the uniform not-found sentinel. It covers both a
	// missing id and an id owned by another identity.
	NotFound bool `json:"-"`
}

// Registry executes the five task tools. Every execution re-derives the
// acting identity from the request credential; identities or task ids
// arriving in tool parameters never widen access, because all store
// queries are scoped by both the identity and the record id.
type Registry struct {
	repo       *tasks.Repository
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

// NewRegistry creates a tool registry.
func NewRegistry(repo *tasks.Repository, jwtManager *auth.JWTManager, logger *zap.Logger) *Registry {
	return &Registry{
		repo:       repo,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// actingIdentity re-derives the identity for one tool execution. When the
// request carried a bearer credential it is validated again here; the
// trusted-header path was existence-checked at the boundary and carries no
// credential to decode.
func (r *Registry) actingIdentity(principal *auth.Principal) (string, error) {
	if principal == nil {
		return "", errors.New("no principal")
	}
	if principal.Token != "" {
		verified, err := r.jwtManager.Validate(principal.Token)
		if err != nil {
			return "", err
		}
		return verified.UserID, nil
	}
	if principal.UserID == "" {
		return "", errors.New("no identity")
	}
	return principal.UserID, nil
}

// Execute runs one invocation on behalf of the request principal. A
// cross-identity or missing task id yields a "not found" status, never an
// error and never a distinguishable "forbidden" signal.
func (r *Registry) Execute(ctx context.Context, principal *auth.Principal, inv Invocation) (*Result, error) {
	userID, err := r.actingIdentity(principal)
	if err != nil {
		metrics.ToolExecutions.WithLabelValues(string(inv.Name()), "unauthorized").Inc()
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	res, err := r.dispatch(ctx, userID, inv)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res != nil && res.NotFound:
		outcome = "not_found"
	}
	metrics.ToolExecutions.WithLabelValues(string(inv.Name()), outcome).Inc()

	if err != nil {
		r.logger.Warn("Tool execution failed",
			zap.String("tool", string(inv.Name())),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Debug("Tool executed",
		zap.String("tool", string(inv.Name())),
		zap.String("user_id", userID),
	)
	return res, nil
}

func (r *Registry) dispatch(ctx context.Context, userID string, inv Invocation) (*Result, error) {
	switch p := inv.(type) {
	case AddTask:
		var description *string
		if p.Description != "" {
			description = &p.Description
		}
		task, err := r.repo.Create(ctx, userID, p.Title, description)
		if err != nil {
			return nil, err
		}
		return &Result{
			Status: fmt.Sprintf("Successfully added task: %s (ID: %d)", task.Title, task.ID),
			Task:   task,
		}, nil

	case ListTasks:
		pending, err := r.repo.ListPending(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 {
			return &Result{Status: "You have no pending tasks.", Tasks: pending}, nil
		}
		var b strings.Builder
		b.WriteString("Your pending tasks:\n")
		for i, task := range pending {
			fmt.Fprintf(&b, "%d. %s (ID: %d)\n", i+1, task.Title, task.ID)
		}
		return &Result{Status: b.String(), Tasks: pending}, nil

	case UpdateTask:
		task, err := r.repo.Rename(ctx, userID, p.TaskID, p.Title)
		if err != nil {
			if errors.Is(err, tasks.ErrNotFound) {
				return &Result{Status: notFoundStatus(p.TaskID), NotFound: true}, nil
			}
			return nil, err
		}
		return &Result{
			Status: fmt.Sprintf("Successfully updated task %d to '%s'.", task.ID, task.Title),
			Task:   task,
		}, nil

	case CompleteTask:
		task, err := r.repo.Complete(ctx, userID, p.TaskID)
		if err != nil {
			if errors.Is(err, tasks.ErrNotFound) {
				return &Result{Status: notFoundStatus(p.TaskID), NotFound: true}, nil
			}
			return nil, err
		}
		return &Result{
			Status: fmt.Sprintf("Task %d marked as completed.", task.ID),
			Task:   task,
		}, nil

	case DeleteTask:
		deleted, err := r.repo.Delete(ctx, userID, p.TaskID)
		if err != nil {
			return nil, err
		}
		if !deleted {
			return &Result{Status: notFoundStatus(p.TaskID), NotFound: true}, nil
		}
		return &Result{
			Status:  fmt.Sprintf("Successfully deleted task %d.", p.TaskID),
			Deleted: true,
		}, nil

	default:
		return nil, fmt.Errorf("unknown invocation type %T", inv)
	}
}

func notFoundStatus(id int64) string {
	return fmt.Sprintf("Task with ID %d not found.", id)
}

// Declarations returns the tool schemas declared to the model capability.
func Declarations() []Declaration {
	return []Declaration{
		{
			Name:        string(NameAddTask),
			Description: "Adds a new task to the user's todo list.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "The title of the task to add.",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "An optional longer description of the task.",
					},
				},
				"required": []string{"title"},
			},
		},
		{
			Name:        string(NameListTasks),
			Description: "Lists all pending tasks for the user.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        string(NameUpdateTask),
			Description: "Updates the title of an existing task.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "integer",
						"description": "The ID of the task to update.",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "The new title for the task.",
					},
				},
				"required": []string{"task_id", "title"},
			},
		},
		{
			Name:        string(NameCompleteTask),
			Description: "Marks a task as completed.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "integer",
						"description": "The ID of the task to complete.",
					},
				},
				"required": []string{"task_id"},
			},
		},
		{
			Name:        string(NameDeleteTask),
			Description: "Deletes a task from the list.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "integer",
						"description": "The ID of the task to delete.",
					},
				},
				"required": []string{"task_id"},
			},
		},
	}
}
