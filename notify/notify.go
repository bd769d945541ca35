// Notify module - best-effort record update notifications.
// Delivery failures never propagate into the analysis path.

package notify

import (
	"log"
	"time"
)

// Event statuses
const (
	StatusUpdated   = "updated"
	StatusUnchanged = "unchanged"
	StatusFailed    = "failed"
)

// Event describes the outcome of one domain analysis run
type Event struct {
	ClientID  int64     `json:"client_id"`
	Domain    string    `json:"domain"`
	Status    string    `json:"status"`
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers record update events to interested parties
type Notifier interface {
	Notify(ev Event)
}

// LogNotifier writes events to the process log
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(ev Event) {
	log.Printf("[Notify] Client %d %s: %s %s", ev.ClientID, ev.Domain, ev.Status, ev.Summary)
}

// Multi fans one event out to several notifiers
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ev Event) {
	for _, n := range m {
		n.Notify(ev)
	}
}
