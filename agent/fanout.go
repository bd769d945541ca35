package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/motorline/dealsense/notify"
)

// DomainReport is the outcome of one domain's analysis
type DomainReport struct {
	Domain     string      `json:"domain"`
	Confirmed  bool        `json:"confirmed"`
	Changed    bool        `json:"changed"`
	Summary    string      `json:"summary"`
	Iterations int         `json:"iterations"`
	Trace      []ToolTrace `json:"trace,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Report is the outcome of a full client analysis across all domains
type Report struct {
	RunID        string                   `json:"run_id"`
	ClientID     int64                    `json:"client_id"`
	StartedAt    time.Time                `json:"started_at"`
	Elapsed      time.Duration            `json:"elapsed"`
	AllConfirmed bool                     `json:"all_confirmed"`
	Domains      map[string]*DomainReport `json:"domains"`
}

// Analyze runs every domain concurrently and always returns a report.
// One domain failing, timing out, or panicking never affects the others.
func (e *Engine) Analyze(ctx context.Context, clientID int64) (*Report, error) {
	report := &Report{
		RunID:     e.ids.New(),
		ClientID:  clientID,
		StartedAt: e.clock.Now(),
		Domains:   make(map[string]*DomainReport, len(e.domains)),
	}
	e.logger.Printf("[Agent] Run %s: client %d, %d domains", report.RunID, clientID, len(e.domains))

	// A manual run may change records the stored fingerprints were taken
	// against, so they stop being a safe reason to skip the next fire.
	if e.cache != nil {
		names := make([]string, len(e.domains))
		for i, d := range e.domains {
			names[i] = d.Name()
		}
		e.cache.ClearFingerprints(names, clientID)
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.WorkerLimit)
	for _, d := range e.domains {
		d := d
		g.Go(func() error {
			rep := e.runDomain(ctx, clientID, d)
			mu.Lock()
			report.Domains[d.Name()] = rep
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	report.Elapsed = e.clock.Now().Sub(report.StartedAt)
	report.AllConfirmed = true
	for _, rep := range report.Domains {
		if !rep.Confirmed || rep.Error != "" {
			report.AllConfirmed = false
		}
	}
	e.logger.Printf("[Agent] Run %s done in %s: all_confirmed=%v",
		report.RunID, report.Elapsed, report.AllConfirmed)
	return report, nil
}

// AnalyzeDomain runs a single domain by name
func (e *Engine) AnalyzeDomain(ctx context.Context, clientID int64, name string) (*DomainReport, error) {
	for _, d := range e.domains {
		if d.Name() == name {
			return e.runDomain(ctx, clientID, d), nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownDomain)
}

func (e *Engine) runDomain(ctx context.Context, clientID int64, d Domain) (rep *DomainReport) {
	rep = &DomainReport{Domain: d.Name()}
	defer func() {
		if r := recover(); r != nil {
			rep.Error = fmt.Sprintf("panic: %v", r)
			e.logger.Printf("[Agent] %s analysis panicked: %v", d.Name(), r)
			e.publish(clientID, rep)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.DomainTimeout)
	defer cancel()

	msgs, err := e.store.GetTranscript(clientID, 0)
	if err != nil {
		rep.Error = err.Error()
		e.publish(clientID, rep)
		return rep
	}
	if len(msgs) == 0 {
		// Nothing to reconcile against; no model call.
		rep.Confirmed = true
		rep.Summary = "empty transcript"
		return rep
	}
	msgs = TrimToBudget(msgs, e.cfg.ContextTokens, nil)

	snapshot, err := d.Snapshot(e.store, clientID)
	if err != nil {
		rep.Error = err.Error()
		e.publish(clientID, rep)
		return rep
	}
	clientName, _ := e.store.ClientName(clientID)

	loop := NewLoop(e.provider, e.cfg).
		WithClock(e.clock).
		WithIDGenerator(e.ids).
		WithLogger(e.logger)
	lres, err := loop.Run(ctx, d, clientName, snapshot, FormatTranscript(msgs))
	rep.Confirmed = lres.Confirmed
	rep.Iterations = lres.Iterations
	rep.Trace = lres.Trace
	rep.Warnings = lres.Warnings
	if err != nil {
		rep.Error = err.Error()
		e.publish(clientID, rep)
		return rep
	}

	if len(lres.Calls) == 0 {
		rep.Summary = "no changes"
	} else {
		summary, changed, err := d.Apply(e.store, clientID, lres.Calls)
		if err != nil {
			rep.Error = err.Error()
			e.publish(clientID, rep)
			return rep
		}
		rep.Summary = summary
		rep.Changed = changed
	}

	e.publish(clientID, rep)
	return rep
}

// publish sends a best-effort notification about a domain outcome
func (e *Engine) publish(clientID int64, rep *DomainReport) {
	status := notify.StatusUnchanged
	switch {
	case rep.Error != "":
		status = notify.StatusFailed
	case rep.Changed:
		status = notify.StatusUpdated
	}
	summary := rep.Summary
	if rep.Error != "" {
		summary = rep.Error
	}
	e.notifier.Notify(notify.Event{
		ClientID:  clientID,
		Domain:    rep.Domain,
		Status:    status,
		Summary:   summary,
		Timestamp: e.clock.Now(),
	})
}
