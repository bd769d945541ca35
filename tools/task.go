package tools

import (
	"fmt"
	"strings"
)

// TaskPriorities are the recognized task priority levels
var TaskPriorities = []string{"low", "normal", "high"}

func isTaskPriority(p string) bool {
	for _, v := range TaskPriorities {
		if v == p {
			return true
		}
	}
	return false
}

// NewTaskRegistry builds the task domain toolset
func NewTaskRegistry() *Registry {
	r := NewRegistry()

	r.Register(&funcTool{
		name: "add_task",
		desc: "Add a new follow-up task for the manager. " +
			"The description must be a concrete verb-form action.",
		params: objectSchema(map[string]interface{}{
			"description": map[string]interface{}{
				"type":        "string",
				"description": "Verb-form action, e.g. 'Call the client about the shortlist'",
			},
			"due_date": map[string]interface{}{
				"type":        "string",
				"description": "Due date as YYYY-MM-DD or YYYY-MM-DD HH:MM:SS; omit if unknown",
			},
			"priority": map[string]interface{}{
				"type": "string",
				"enum": TaskPriorities,
			},
		}, "description"),
		fn: func(args map[string]interface{}) (string, error) {
			desc := strings.TrimSpace(GetString(args, "description"))
			if desc == "" {
				return "", &ValidationError{Tool: "add_task", Msg: "'description' is required"}
			}
			if Has(args, "priority") && !isTaskPriority(GetString(args, "priority")) {
				return "", &ValidationError{Tool: "add_task", Msg: "'priority' must be one of: " + strings.Join(TaskPriorities, ", ")}
			}
			due := GetString(args, "due_date")
			if due == "" {
				due = "not set"
			}
			prio := GetString(args, "priority")
			if prio == "" {
				prio = "normal"
			}
			return fmt.Sprintf("Task added: %s (due: %s, priority: %s)", desc, due, prio), nil
		},
	})

	r.Register(&funcTool{
		name: "update_task",
		desc: "Update an existing task. Only the supplied fields change.",
		params: objectSchema(map[string]interface{}{
			"task_id":     map[string]interface{}{"type": "integer"},
			"description": map[string]interface{}{"type": "string"},
			"due_date":    map[string]interface{}{"type": "string"},
			"priority":    map[string]interface{}{"type": "string", "enum": TaskPriorities},
		}, "task_id"),
		fn: func(args map[string]interface{}) (string, error) {
			id, ok := GetInt(args, "task_id")
			if !ok {
				return "", &ValidationError{Tool: "update_task", Msg: "'task_id' is required"}
			}
			if Has(args, "priority") && !isTaskPriority(GetString(args, "priority")) {
				return "", &ValidationError{Tool: "update_task", Msg: "'priority' must be one of: " + strings.Join(TaskPriorities, ", ")}
			}
			var updates []string
			if Has(args, "description") {
				updates = append(updates, "description: "+GetString(args, "description"))
			}
			if Has(args, "due_date") {
				updates = append(updates, "due: "+GetString(args, "due_date"))
			}
			if Has(args, "priority") {
				updates = append(updates, "priority: "+GetString(args, "priority"))
			}
			if len(updates) == 0 {
				return "", &ValidationError{Tool: "update_task", Msg: "at least one of description, due_date, priority must be provided"}
			}
			return fmt.Sprintf("Task %d updated: %s", id, strings.Join(updates, ", ")), nil
		},
	})

	r.Register(&funcTool{
		name: "complete_task",
		desc: "Mark a task as done.",
		params: objectSchema(map[string]interface{}{
			"task_id": map[string]interface{}{"type": "integer"},
		}, "task_id"),
		fn: func(args map[string]interface{}) (string, error) {
			id, ok := GetInt(args, "task_id")
			if !ok {
				return "", &ValidationError{Tool: "complete_task", Msg: "'task_id' is required"}
			}
			return fmt.Sprintf("Task %d marked as completed", id), nil
		},
	})

	r.Register(&funcTool{
		name: "delete_task",
		desc: "Delete a task whose agreement was cancelled.",
		params: objectSchema(map[string]interface{}{
			"task_id": map[string]interface{}{"type": "integer"},
		}, "task_id"),
		fn: func(args map[string]interface{}) (string, error) {
			id, ok := GetInt(args, "task_id")
			if !ok {
				return "", &ValidationError{Tool: "delete_task", Msg: "'task_id' is required"}
			}
			return fmt.Sprintf("Task %d deleted", id), nil
		},
	})

	r.Register(&funcTool{
		name:   "confirm_all_tasks",
		desc:   "Confirm that the task list matches all final agreements. Mandatory final step.",
		params: objectSchema(map[string]interface{}{}),
		fn: func(map[string]interface{}) (string, error) {
			return "All tasks confirmed", nil
		},
	})

	return r
}
