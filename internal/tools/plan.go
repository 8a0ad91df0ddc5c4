package tools

import (
	"context"

	"github.com/vinayprograms/devloop/internal/session"
)

// todoListTool replaces the session plan and echoes it back.
type todoListTool struct{}

func (t *todoListTool) Name() string { return "todo_list" }

func (t *todoListTool) Description() string {
	return "Set or update the current plan as a list of todos and return it back. " +
		"Status is one of: active, in_progress, completed. Use this tool for complex tasks to plan out the steps, " +
		"and update your progress as you go. Each call replaces the whole list."
}

func (t *todoListTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"todos": map[string]interface{}{
			"type":        "array",
			"description": "The list of todos to set or update.",
			"items": objectSchema(map[string]interface{}{
				"title": stringParam("Short description of the step."),
				"status": map[string]interface{}{
					"type": "string",
					"enum": []string{"active", "in_progress", "completed"},
				},
			}, "title", "status"),
		},
	}, "todos")
}

func (t *todoListTool) Execute(ctx context.Context, sess *session.Session, args map[string]interface{}) (interface{}, error) {
	var in struct {
		Todos []struct {
			Title  string `json:"title"`
			Status string `json:"status"`
		} `json:"todos"`
	}
	if err := decodeArgs(args, &in, "todos"); err != nil {
		return nil, err
	}

	items := make([]session.PlanItem, 0, len(in.Todos))
	for i, todo := range in.Todos {
		status, err := session.ParseStatus(todo.Status)
		if err != nil {
			return nil, Retryable("todo %d (%q): %v", i+1, todo.Title, err)
		}
		items = append(items, session.PlanItem{Title: todo.Title, Status: status})
	}

	sess.SetPlan(items)
	return items, nil
}
