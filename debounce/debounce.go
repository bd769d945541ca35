// Debounce module - per-client analysis scheduling.
// Every new message reschedules the client's timer, so a burst of messages
// produces exactly one analysis run after the conversation goes quiet.

package debounce

import (
	"log"
	"sync"
	"time"
)

// Debouncer holds one pending timer per client. The last Schedule wins.
type Debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[int64]*time.Timer
	fire   func(clientID int64)
}

// New builds a debouncer that calls fire after delay of quiet per client
func New(delay time.Duration, fire func(clientID int64)) *Debouncer {
	return &Debouncer{
		delay:  delay,
		timers: make(map[int64]*time.Timer),
		fire:   fire,
	}
}

// Schedule arms (or re-arms) the client's timer
func (d *Debouncer) Schedule(clientID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[clientID]; ok {
		t.Stop()
		log.Printf("[Debounce] Client %d rescheduled", clientID)
	} else {
		log.Printf("[Debounce] Client %d scheduled in %s", clientID, d.delay)
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.expire(clientID, t)
	})
	d.timers[clientID] = t
}

// expire runs on the timer goroutine. Stop on an already-firing timer
// returns false, so a Schedule racing with the callback may have replaced
// the map entry; the stale callback must not touch the new timer's slot.
func (d *Debouncer) expire(clientID int64, t *time.Timer) {
	d.mu.Lock()
	if d.timers[clientID] != t {
		d.mu.Unlock()
		return
	}
	delete(d.timers, clientID)
	d.mu.Unlock()
	d.fire(clientID)
}

// Cancel disarms the client's timer if one is pending
func (d *Debouncer) Cancel(clientID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[clientID]; ok {
		t.Stop()
		delete(d.timers, clientID)
		log.Printf("[Debounce] Client %d cancelled", clientID)
	}
}

// IsScheduled reports whether the client has a pending timer
func (d *Debouncer) IsScheduled(clientID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[clientID]
	return ok
}

// ActiveCount returns how many clients have pending timers
func (d *Debouncer) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every pending timer
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}
