package agent

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// TimeProvider interface for dependency injection. All loop backoff and
// scheduling sleeps go through it so tests run without wall-clock waits.
type TimeProvider interface {
	Now() time.Time
	Sleep(duration time.Duration)
}

// IDGenerator interface for dependency injection
type IDGenerator interface {
	New() string
}

// Logger interface for dependency injection
type Logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
}

// Default implementations
type defaultTimeProvider struct{}

func (d *defaultTimeProvider) Now() time.Time { return time.Now() }
func (d *defaultTimeProvider) Sleep(duration time.Duration) {
	time.Sleep(duration)
}

type defaultIDGenerator struct{}

func (d *defaultIDGenerator) New() string { return uuid.NewString() }

type defaultLogger struct{}

func (d *defaultLogger) Print(v ...interface{})                 { log.Print(v...) }
func (d *defaultLogger) Printf(format string, v ...interface{}) { log.Printf(format, v...) }
