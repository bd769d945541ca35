package reconcile

import (
	"log"
	"strings"
	"time"
)

// Task operation kinds
const (
	TaskAdd      = "add"
	TaskUpdate   = "update"
	TaskComplete = "complete"
	TaskDelete   = "delete"
)

// TaskOp is one persistence operation derived from a task tool call.
// Pointer fields are nil when the call did not mention them.
type TaskOp struct {
	Op          string
	TaskID      int64
	Description *string
	DueDate     *time.Time
	Priority    *string
}

// BuildTaskPlan turns a batch of task calls into persistence operations,
// preserving call order. Calls with unparseable due dates or missing ids
// are dropped with a log line rather than failing the batch.
func BuildTaskPlan(calls []Call) []TaskOp {
	var plan []TaskOp
	for _, c := range calls {
		switch c.Name {
		case "add_task":
			desc := strings.TrimSpace(getString(c.Args, "description"))
			if desc == "" {
				log.Print("[Reconcile] add_task without description, skipping")
				continue
			}
			op := TaskOp{Op: TaskAdd, Description: &desc}
			if has(c.Args, "due_date") {
				due, err := ParseDueDate(getString(c.Args, "due_date"))
				if err != nil {
					log.Printf("[Reconcile] add_task: %v, leaving due date unset", err)
				} else {
					op.DueDate = &due
				}
			}
			if p := getString(c.Args, "priority"); p != "" {
				op.Priority = &p
			}
			plan = append(plan, op)

		case "update_task":
			id, ok := getInt(c.Args, "task_id")
			if !ok {
				log.Print("[Reconcile] update_task without task_id, skipping")
				continue
			}
			op := TaskOp{Op: TaskUpdate, TaskID: id}
			if has(c.Args, "description") {
				desc := getString(c.Args, "description")
				op.Description = &desc
			}
			if has(c.Args, "due_date") {
				due, err := ParseDueDate(getString(c.Args, "due_date"))
				if err != nil {
					log.Printf("[Reconcile] update_task %d: %v, leaving due date untouched", id, err)
				} else {
					op.DueDate = &due
				}
			}
			if p := getString(c.Args, "priority"); p != "" {
				op.Priority = &p
			}
			if op.Description == nil && op.DueDate == nil && op.Priority == nil {
				log.Printf("[Reconcile] update_task %d carries no changes, skipping", id)
				continue
			}
			plan = append(plan, op)

		case "complete_task":
			id, ok := getInt(c.Args, "task_id")
			if !ok {
				log.Print("[Reconcile] complete_task without task_id, skipping")
				continue
			}
			plan = append(plan, TaskOp{Op: TaskComplete, TaskID: id})

		case "delete_task":
			id, ok := getInt(c.Args, "task_id")
			if !ok {
				log.Print("[Reconcile] delete_task without task_id, skipping")
				continue
			}
			plan = append(plan, TaskOp{Op: TaskDelete, TaskID: id})
		}
	}
	return plan
}
