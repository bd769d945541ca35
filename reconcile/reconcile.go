// Reconcile module - pure application of extraction tool calls to records.
// Nothing here touches storage; callers persist the returned state.

package reconcile

import (
	"fmt"
	"time"
)

// Call is one mutation the model requested, with decoded arguments
type Call struct {
	Name string
	Args map[string]interface{}
}

// DueDateHour is the hour assigned to date-only due dates
const DueDateHour = 8

// ParseDueDate accepts "2006-01-02" or "2006-01-02 15:04:05".
// Date-only values get a default time of 08:00.
func ParseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("due date %q: expected YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", s)
	}
	return t.Add(DueDateHour * time.Hour), nil
}

func getString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func getInt(args map[string]interface{}, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func has(args map[string]interface{}, key string) bool {
	_, ok := args[key]
	return ok
}
