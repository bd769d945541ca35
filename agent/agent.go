// Agent module - debounced conversational fact extraction over three
// record domains: dossier, car interests, tasks.

package agent

import (
	"context"

	"github.com/motorline/dealsense/debounce"
	"github.com/motorline/dealsense/notify"
	"github.com/motorline/dealsense/pkg/config"
	"github.com/motorline/dealsense/pkg/kv"
	"github.com/motorline/dealsense/pkg/llm"
	"github.com/motorline/dealsense/storage"
)

// Engine wires storage, the model provider, the debounce scheduler, and
// the notification sink into the analysis service
type Engine struct {
	cfg      config.Config
	provider llm.Provider
	store    *storage.Storage
	cache    *kv.KV
	notifier notify.Notifier
	domains  []Domain
	deb      *debounce.Debouncer

	// Injected dependencies (optional)
	clock  TimeProvider
	ids    IDGenerator
	logger Logger
}

// New builds an engine with default dependencies
func New(cfg config.Config, provider llm.Provider, store *storage.Storage) *Engine {
	e := &Engine{
		cfg:      cfg,
		provider: provider,
		store:    store,
		notifier: notify.LogNotifier{},
		domains:  DefaultDomains(),
		clock:    &defaultTimeProvider{},
		ids:      &defaultIDGenerator{},
		logger:   &defaultLogger{},
	}
	e.deb = debounce.New(cfg.DebounceDelay, e.debouncedRun)
	return e
}

// WithNotifier injects a notification sink
func (e *Engine) WithNotifier(n notify.Notifier) *Engine {
	e.notifier = n
	return e
}

// WithCache injects the transcript fingerprint cache
func (e *Engine) WithCache(c *kv.KV) *Engine {
	e.cache = c
	return e
}

// WithDomains replaces the analyzed domains
func (e *Engine) WithDomains(domains []Domain) *Engine {
	e.domains = domains
	return e
}

// WithTimeProvider injects a time provider
func (e *Engine) WithTimeProvider(tp TimeProvider) *Engine {
	e.clock = tp
	return e
}

// WithIDGenerator injects an id generator
func (e *Engine) WithIDGenerator(ids IDGenerator) *Engine {
	e.ids = ids
	return e
}

// WithLogger injects a logger
func (e *Engine) WithLogger(lg Logger) *Engine {
	e.logger = lg
	return e
}

// Store returns the underlying record store
func (e *Engine) Store() *storage.Storage { return e.store }

// OnMessage records an incoming chat message and (re)schedules the
// client's debounced analysis. contentType "" means text; photo or voice
// messages are stored with their type and rendered as a tag in the
// transcript.
func (e *Engine) OnMessage(clientID int64, sender, contentType, content string) error {
	if _, err := e.store.AddMessage(clientID, sender, contentType, content); err != nil {
		return err
	}
	e.deb.Schedule(clientID)
	return nil
}

// Schedule arms the client's debounce timer without adding a message
func (e *Engine) Schedule(clientID int64) { e.deb.Schedule(clientID) }

// CancelScheduled disarms a pending analysis
func (e *Engine) CancelScheduled(clientID int64) { e.deb.Cancel(clientID) }

// IsScheduled reports whether the client has a pending analysis
func (e *Engine) IsScheduled(clientID int64) bool { return e.deb.IsScheduled(clientID) }

// PendingClients returns how many clients have a pending analysis
func (e *Engine) PendingClients() int { return e.deb.ActiveCount() }

// Close stops all pending timers
func (e *Engine) Close() { e.deb.Stop() }

// debouncedRun runs when a client's timer fires. Unlike Analyze it may
// skip the run entirely when the transcript has not changed since the
// last fully confirmed analysis.
func (e *Engine) debouncedRun(clientID int64) {
	if e.cache != nil {
		msgs, err := e.store.GetTranscript(clientID, 0)
		if err == nil {
			fp := kv.Fingerprint(FormatTranscript(msgs))
			if e.allFingerprintsMatch(clientID, fp) {
				e.logger.Printf("[Agent] Client %d transcript unchanged, skipping run", clientID)
				return
			}
		}
	}

	report, err := e.Analyze(context.Background(), clientID)
	if err != nil {
		e.logger.Printf("[Agent] Client %d debounced run failed: %v", clientID, err)
		return
	}

	if e.cache != nil && report.AllConfirmed {
		msgs, err := e.store.GetTranscript(clientID, 0)
		if err != nil {
			return
		}
		fp := kv.Fingerprint(FormatTranscript(msgs))
		for _, d := range e.domains {
			if err := e.cache.SetFingerprint(d.Name(), clientID, fp); err != nil {
				e.logger.Printf("[Agent] Fingerprint write failed: %v", err)
			}
		}
	}
}

func (e *Engine) allFingerprintsMatch(clientID int64, fp string) bool {
	for _, d := range e.domains {
		if !e.cache.MatchesFingerprint(d.Name(), clientID, fp) {
			return false
		}
	}
	return true
}
