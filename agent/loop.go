package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/motorline/dealsense/pkg/config"
	"github.com/motorline/dealsense/pkg/llm"
	"github.com/motorline/dealsense/reconcile"
	"github.com/motorline/dealsense/tools"
)

// Loop states
type loopState int

const (
	statePrepare loopState = iota
	stateInvoke
	stateRoute
	stateExecute
	stateDone
)

// ToolTrace is one executed tool call with its preview result
type ToolTrace struct {
	ID     string `json:"id"`
	Tool   string `json:"tool"`
	Args   string `json:"args"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// LoopResult is the outcome of one domain analysis conversation
type LoopResult struct {
	Domain     string
	Confirmed  bool
	Iterations int
	// Calls holds the accepted mutation calls in emitted order.
	// Confirm calls and failed previews are not included.
	Calls    []reconcile.Call
	Trace    []ToolTrace
	Warnings []string
}

// Loop drives one tool-calling conversation with the model until the
// domain is confirmed, the model stops calling tools, or the iteration
// cap is hit.
type Loop struct {
	provider llm.Provider
	cfg      config.Config
	clock    TimeProvider
	ids      IDGenerator
	logger   Logger
}

// NewLoop builds a loop with default dependencies
func NewLoop(provider llm.Provider, cfg config.Config) *Loop {
	return &Loop{
		provider: provider,
		cfg:      cfg,
		clock:    &defaultTimeProvider{},
		ids:      &defaultIDGenerator{},
		logger:   &defaultLogger{},
	}
}

// WithClock injects a time provider
func (l *Loop) WithClock(tp TimeProvider) *Loop {
	l.clock = tp
	return l
}

// WithIDGenerator injects an id generator
func (l *Loop) WithIDGenerator(ids IDGenerator) *Loop {
	l.ids = ids
	return l
}

// WithLogger injects a logger
func (l *Loop) WithLogger(lg Logger) *Loop {
	l.logger = lg
	return l
}

// Run executes the conversation for one domain
func (l *Loop) Run(ctx context.Context, domain Domain, clientName, snapshot, transcript string) (*LoopResult, error) {
	res := &LoopResult{Domain: domain.Name()}
	registry := domain.Tools()
	guard := &callGuard{limit: 3}

	var messages []llm.Message
	var resp *llm.Response
	system := domain.SystemPrompt(clientName, snapshot)

	state := statePrepare
	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%s analysis: %w", domain.Name(), err)
		}

		switch state {
		case statePrepare:
			messages = []llm.Message{{
				Role:    llm.RoleUser,
				Content: "Conversation transcript:\n" + transcript,
			}}
			state = stateInvoke

		case stateInvoke:
			if res.Iterations >= l.cfg.MaxIterations {
				return res, fmt.Errorf("%s analysis after %d iterations: %w",
					domain.Name(), res.Iterations, ErrIterationLimit)
			}
			res.Iterations++

			var err error
			resp, err = l.invoke(ctx, &llm.Request{
				Model:       l.cfg.Model,
				System:      system,
				Messages:    messages,
				Tools:       registry.Specs(),
				Temperature: l.cfg.Temperature,
				MaxTokens:   l.cfg.MaxTokens,
			})
			if err != nil {
				return res, fmt.Errorf("%s analysis: %w", domain.Name(), err)
			}
			state = stateRoute

		case stateRoute:
			if len(resp.ToolCalls) == 0 {
				warn := "model stopped without calling confirm_all_" + domain.Name()
				l.logger.Printf("[Loop] %s: %s", domain.Name(), warn)
				res.Warnings = append(res.Warnings, warn)
				state = stateDone
				continue
			}
			state = stateExecute

		case stateExecute:
			messages = append(messages, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})

			confirmed := false
			for _, tc := range resp.ToolCalls {
				if tc.ID == "" {
					tc.ID = l.ids.New()
				}
				result := l.handleCall(registry, res, tc)
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Content:    result,
					ToolCallID: tc.ID,
				})
				if tools.IsConfirm(tc.Name) {
					confirmed = true
				}
				if guard.record(tc.Name, tc.Arguments) {
					warn := fmt.Sprintf("repeated identical %s calls, stopping", tc.Name)
					l.logger.Printf("[Loop] %s: %s", domain.Name(), warn)
					res.Warnings = append(res.Warnings, warn)
					state = stateDone
				}
			}

			if confirmed {
				res.Confirmed = true
				state = stateDone
			} else if state != stateDone {
				state = stateInvoke
			}
		}
	}

	l.logger.Printf("[Loop] %s done: confirmed=%v iterations=%d calls=%d",
		domain.Name(), res.Confirmed, res.Iterations, len(res.Calls))
	return res, nil
}

// handleCall previews one tool call and records it when accepted.
// The returned string is fed back to the model.
func (l *Loop) handleCall(registry *tools.Registry, res *LoopResult, tc llm.ToolCall) string {
	trace := ToolTrace{ID: tc.ID, Tool: tc.Name, Args: tc.Arguments}

	args := map[string]interface{}{}
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			trace.Error = "invalid tool arguments: " + err.Error()
			res.Trace = append(res.Trace, trace)
			return "Error: " + trace.Error
		}
	}

	out, err := l.executeCall(registry, tc.Name, args)
	if err != nil {
		// Validation problems go back to the model verbatim so it can
		// correct the call on the next iteration.
		trace.Error = err.Error()
		res.Trace = append(res.Trace, trace)
		l.logger.Printf("[Tool] %s rejected: %v", tc.Name, err)
		return "Error: " + err.Error()
	}

	trace.Result = out
	res.Trace = append(res.Trace, trace)
	if !tools.IsConfirm(tc.Name) {
		res.Calls = append(res.Calls, reconcile.Call{Name: tc.Name, Args: args})
	}
	return out
}

// executeCall runs the preview, retrying transient failures linearly
func (l *Loop) executeCall(registry *tools.Registry, name string, args map[string]interface{}) (string, error) {
	out, err := registry.Call(name, args)
	if err == nil {
		return out, nil
	}

	var verr *tools.ValidationError
	if errors.As(err, &verr) {
		return "", err
	}

	for attempt := 1; attempt <= l.cfg.ToolRetries && llm.IsTransient(err); attempt++ {
		l.clock.Sleep(time.Duration(attempt) * time.Second)
		l.logger.Printf("[Tool] %s retry %d after: %v", name, attempt, err)
		out, err = registry.Call(name, args)
		if err == nil {
			return out, nil
		}
	}
	return "", err
}

// invoke calls the model, retrying transient failures with exponential
// backoff (1s, 2s, 4s)
func (l *Loop) invoke(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.ModelRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			l.logger.Printf("[Loop] Model retry %d in %s after: %v", attempt, delay, lastErr)
			l.clock.Sleep(delay)
		}
		resp, err := l.provider.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !llm.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("model call failed after %d retries: %w", l.cfg.ModelRetries, lastErr)
}

// callGuard trips when the model keeps emitting the same call. Adapted
// consecutive-call limiting; the iteration cap handles everything else.
type callGuard struct {
	limit   int
	lastKey string
	repeats int
}

func (g *callGuard) record(name, args string) bool {
	key := name + "\x00" + args
	if key == g.lastKey {
		g.repeats++
	} else {
		g.lastKey = key
		g.repeats = 1
	}
	return g.repeats >= g.limit
}
