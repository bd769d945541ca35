package agent

import (
	"fmt"
	"strings"

	"github.com/motorline/dealsense/reconcile"
	"github.com/motorline/dealsense/storage"
	"github.com/motorline/dealsense/tools"
)

// TaskDomain keeps the manager's follow-up tasks in sync with agreements
// made in the conversation
type TaskDomain struct {
	registry *tools.Registry
}

func NewTaskDomain() *TaskDomain {
	return &TaskDomain{registry: tools.NewTaskRegistry()}
}

func (d *TaskDomain) Name() string           { return DomainTasks }
func (d *TaskDomain) Tools() *tools.Registry { return d.registry }

func (d *TaskDomain) Snapshot(store *storage.Storage, clientID int64) (string, error) {
	tasks, err := store.ListTasks(clientID, false)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Open tasks:\n")
	if len(tasks) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range tasks {
		due := "no due date"
		if t.DueDate != nil {
			due = "due " + t.DueDate.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "- [id %d] %s (%s, priority %s)\n", t.ID, t.Description, due, t.Priority)
	}
	return b.String(), nil
}

func (d *TaskDomain) SystemPrompt(clientName, snapshot string) string {
	var b strings.Builder
	b.WriteString(promptIntro(
		"Compare the conversation transcript against the manager's task list and bring it up to date.",
		clientName))
	b.WriteString(snapshot)
	b.WriteString("\nRules:\n")
	b.WriteString(commonRules + "\n")
	b.WriteString(`- A task is a concrete agreement from the conversation: call back, send documents, prepare an offer. Client facts and car preferences are NOT tasks.
- Write descriptions as verb-form actions, e.g. "Call the client about the shortlist".
- Due dates use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS. Omit the due date when none was agreed.
- Use update_task to change an existing task, complete_task when the transcript shows it was done, delete_task when the agreement was cancelled. Task ids come from the list above.
- Priorities: ` + strings.Join(tools.TaskPriorities, ", ") + `.
- When the task list matches all final agreements, finish by calling confirm_all_tasks. This final call is mandatory.
`)
	return b.String()
}

func (d *TaskDomain) Apply(store *storage.Storage, clientID int64, calls []reconcile.Call) (string, bool, error) {
	plan := reconcile.BuildTaskPlan(calls)
	if len(plan) == 0 {
		return "no changes", false, nil
	}

	applied := 0
	var failures []string
	for _, op := range plan {
		if err := d.applyOp(store, clientID, op); err != nil {
			failures = append(failures, err.Error())
			continue
		}
		applied++
	}

	summary := fmt.Sprintf("%d task operations applied", applied)
	if len(failures) > 0 {
		summary += "; failed: " + strings.Join(failures, "; ")
	}
	return summary, applied > 0, nil
}

func (d *TaskDomain) applyOp(store *storage.Storage, clientID int64, op reconcile.TaskOp) error {
	if op.Op != reconcile.TaskAdd {
		// Never touch another client's tasks, whatever id the model produced.
		task, err := store.GetTask(op.TaskID)
		if err != nil {
			return err
		}
		if task == nil || task.ClientID != clientID {
			return fmt.Errorf("task %d does not belong to client %d", op.TaskID, clientID)
		}
	}

	switch op.Op {
	case reconcile.TaskAdd:
		priority := ""
		if op.Priority != nil {
			priority = *op.Priority
		}
		_, err := store.CreateTask(clientID, *op.Description, op.DueDate, priority, storage.SourceAgent)
		return err
	case reconcile.TaskUpdate:
		return store.UpdateTask(op.TaskID, op.Description, op.DueDate, op.Priority)
	case reconcile.TaskComplete:
		return store.CompleteTask(op.TaskID)
	case reconcile.TaskDelete:
		return store.DeleteTask(op.TaskID)
	}
	return fmt.Errorf("unknown task op %q", op.Op)
}
