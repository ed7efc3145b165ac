package tools

import (
	"fmt"
	"math"
)

// Name identifies one of the five registered tools.
type Name string

const (
	NameAddTask      Name = "add_task"
	NameListTasks    Name = "list_tasks"
	NameUpdateTask   Name = "update_task"
	NameCompleteTask Name = "complete_task"
	NameDeleteTask   Name = "delete_task"
)

// Invocation is a closed set of tool calls, each carrying its typed
// parameters. Adding a tool without a dispatch arm in Registry.Execute is a
// compile-time error via the exhaustive type switch's default case test.
type Invocation interface {
	Name() Name

	// Record returns the serializable {name, parameters} form persisted
	// alongside the assistant message.
	Record() Record
}

// Record is the persisted form of a tool invocation.
type Record struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// AddTask creates a new task.
type AddTask struct {
	Title       string
	Description string
}

func (AddTask) Name() Name { return NameAddTask }

func (p AddTask) Record() Record {
	params := map[string]any{"title": p.Title}
	if p.Description != "" {
		params["description"] = p.Description
	}
	return Record{Name: string(NameAddTask), Parameters: params}
}

// ListTasks lists the caller's pending tasks.
type ListTasks struct{}

func (ListTasks) Name() Name { return NameListTasks }

func (ListTasks) Record() Record {
	return Record{Name: string(NameListTasks), Parameters: map[string]any{}}
}

// UpdateTask renames an existing task.
type UpdateTask struct {
	TaskID int64
	Title  string
}

func (UpdateTask) Name() Name { return NameUpdateTask }

func (p UpdateTask) Record() Record {
	return Record{Name: string(NameUpdateTask), Parameters: map[string]any{"task_id": p.TaskID, "title": p.Title}}
}

// CompleteTask marks a task as completed.
type CompleteTask struct {
	TaskID int64
}

func (CompleteTask) Name() Name { return NameCompleteTask }

func (p CompleteTask) Record() Record {
	return Record{Name: string(NameCompleteTask), Parameters: map[string]any{"task_id": p.TaskID}}
}

// DeleteTask deletes a task.
type DeleteTask struct {
	TaskID int64
}

func (DeleteTask) Name() Name { return NameDeleteTask }

func (p DeleteTask) Record() Record {
	return Record{Name: string(NameDeleteTask), Parameters: map[string]any{"task_id": p.TaskID}}
}

// Parse converts a proposed tool call (name plus loosely typed parameters,
// as produced by the model capability) into a typed invocation.
func Parse(name string, params map[string]any) (Invocation, error) {
	switch Name(name) {
	case NameAddTask:
		title, err := stringParam(params, "title", true)
		if err != nil {
			return nil, err
		}
		description, _ := stringParam(params, "description", false)
		return AddTask{Title: title, Description: description}, nil
	case NameListTasks:
		return ListTasks{}, nil
	case NameUpdateTask:
		id, err := intParam(params, "task_id")
		if err != nil {
			return nil, err
		}
		title, err := stringParam(params, "title", true)
		if err != nil {
			return nil, err
		}
		return UpdateTask{TaskID: id, Title: title}, nil
	case NameCompleteTask:
		id, err := intParam(params, "task_id")
		if err != nil {
			return nil, err
		}
		return CompleteTask{TaskID: id}, nil
	case NameDeleteTask:
		id, err := intParam(params, "task_id")
		if err != nil {
			return nil, err
		}
		return DeleteTask{TaskID: id}, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

func stringParam(params map[string]any, key string, required bool) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required parameter %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", key)
	}
	if required && s == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return s, nil
}

func intParam(params map[string]any, key string) (int64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing required parameter %q", key)
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("parameter %q must be an integer", key)
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("parameter %q must be an integer", key)
	}
}
