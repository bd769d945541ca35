package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/motorline/dealsense/pkg/config"
	"github.com/motorline/dealsense/pkg/llm"
	"github.com/motorline/dealsense/storage"
)

// fakeProvider replays a script of responses and records every request
type fakeProvider struct {
	mu       sync.Mutex
	script   []fakeStep
	requests []*llm.Request
}

type fakeStep struct {
	resp *llm.Response
	err  error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Chat(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.script) == 0 {
		return &llm.Response{Content: "Done."}, nil
	}
	step := f.script[0]
	f.script = f.script[1:]
	return step.resp, step.err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeClock never sleeps for real
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func tcall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: args}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Model = "test-model"
	return cfg
}

func newTestLoop(p llm.Provider) (*Loop, *fakeClock) {
	clock := newFakeClock()
	return NewLoop(p, testConfig()).WithClock(clock), clock
}

func TestLoopConfirmsInOneIteration(t *testing.T) {
	p := &fakeProvider{script: []fakeStep{
		{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			tcall("c1", "update_dossier_field", `{"field":"current_location","value":"Austin"}`),
			tcall("c2", "confirm_all_dossier", `{}`),
		}}},
	}}
	loop, _ := newTestLoop(p)

	res, err := loop.Run(context.Background(), NewDossierDomain(), "John", "Current dossier:\n", "[CLIENT] I'm in Austin")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Confirmed || res.Iterations != 1 {
		t.Errorf("Expected confirmed in 1 iteration, got confirmed=%v iterations=%d", res.Confirmed, res.Iterations)
	}
	if len(res.Calls) != 1 || res.Calls[0].Name != "update_dossier_field" {
		t.Fatalf("Expected 1 mutation call, got %+v", res.Calls)
	}
	if res.Calls[0].Args["value"] != "Austin" {
		t.Errorf("Args not decoded: %v", res.Calls[0].Args)
	}
	if len(res.Trace) != 2 {
		t.Errorf("Both calls should be traced, got %d", len(res.Trace))
	}
}

func TestLoopIteratesUntilConfirmed(t *testing.T) {
	p := &fakeProvider{script: []fakeStep{
		{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			tcall("c1", "update_dossier_field", `{"field":"phone","value":"+1 555 0100"}`),
		}}},
		{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			tcall("c2", "update_dossier_field", `{"field":"current_location","value":"Dallas"}`),
			tcall("c3", "confirm_all_dossier", `{}`),
		}}},
	}}
	loop, _ := newTestLoop(p)

	res, err := loop.Run(context.Background(), NewDossierDomain(), "", "", "transcript")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Confirmed || res.Iterations != 2 {
		t.Errorf("Expected confirmed in 2 iterations, got %+v", res)
	}
	if len(res.Calls) != 2 || res.Calls[0].Args["field"] != "phone" || res.Calls[1].Args["field"] != "current_location" {
		t.Errorf("Calls should keep emitted order: %+v", res.Calls)
	}

	// Second request must carry the assistant turn and the tool results.
	second := p.requests[1]
	if len(second.Messages) != 3 {
		t.Fatalf("Expected user+assistant+tool messages, got %d", len(second.Messages))
	}
	if second.Messages[2].Role != llm.RoleTool || second.Messages[2].ToolCallID != "c1" {
		t.Errorf("Tool result turn wrong: %+v", second.Messages[2])
	}
}

func TestLoopStopsUnconfirmedWithoutToolCalls(t *testing.T) {
	p := &fakeProvider{script: []fakeStep{
		{resp: &llm.Response{Content: "Nothing to update."}},
	}}
	loop, _ := newTestLoop(p)

	res, err := loop.Run(context.Background(), NewTaskDomain(), "", "", "transcript")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Confirmed {
		t.Error("No tool calls must not count as confirmation")
	}
	if len(res.Warnings) == 0 {
		t.Error("Unconfirmed stop should carry a warning")
	}
}

func TestLoopIterationLimit(t *testing.T) {
	// Endless stream of distinct mutation calls, never confirming.
	p := &fakeProvider{}
	for i := 0; i < 20; i++ {
		p.script = append(p.script, fakeStep{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			tcall(fmt.Sprintf("c%d", i), "add_task",
				fmt.Sprintf(`{"description":"Call the client %d"}`, i)),
		}}})
	}
	loop, _ := newTestLoop(p)

	res, err := loop.Run(context.Background(), NewTaskDomain(), "", "", "transcript")
	if !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("Expected ErrIterationLimit, got %v", err)
	}
	if res.Iterations != testConfig().MaxIterations {
		t.Errorf("Expected %d iterations, got %d", testConfig().MaxIterations, res.Iterations)
	}
}

func TestLoopFeedsValidationErrorsBack(t *testing.T) {
	p := &fakeProvider{script: []fakeStep{
		{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			tcall("c1", "update_dossier_field", `{"field":"ssn","value":"123"}`),
		}}},
		{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			tcall("c2", "confirm_all_dossier", `{}`),
		}}},
	}}
	loop, clock := newTestLoop(p)

	res, err := loop.Run(context.Background(), NewDossierDomain(), "", "", "transcript")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Calls) != 0 {
		t.Errorf("Rejected call must not be accepted: %+v", res.Calls)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("Validation errors must not be retried, slept %v", clock.sleeps)
	}

	second := p.requests[1]
	result := second.Messages[len(second.Messages)-1]
	if result.Role != llm.RoleTool || !strings.HasPrefix(result.Content, "Error:") {
		t.Errorf("Validation error should be fed back as a tool result: %+v", result)
	}
	if !strings.Contains(result.Content, "ssn") {
		t.Errorf("Feedback should name the bad field: %q", result.Content)
	}
}

func TestLoopRetriesTransientModelErrors(t *testing.T) {
	p := &fakeProvider{script: []fakeStep{
		{err: llm.Transient(errors.New("rate limit"))},
		{err: llm.Transient(errors.New("rate limit"))},
		{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			tcall("c1", "confirm_all_tasks", `{}`),
		}}},
	}}
	loop, clock := newTestLoop(p)

	res, err := loop.Run(context.Background(), NewTaskDomain(), "", "", "transcript")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Confirmed {
		t.Error("Run should succeed after retries")
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(clock.sleeps) != 2 || clock.sleeps[0] != want[0] || clock.sleeps[1] != want[1] {
		t.Errorf("Expected exponential backoff %v, got %v", want, clock.sleeps)
	}
}

func TestLoopGivesUpAfterModelRetries(t *testing.T) {
	p := &fakeProvider{}
	for i := 0; i < 10; i++ {
		p.script = append(p.script, fakeStep{err: llm.Transient(errors.New("overloaded"))})
	}
	loop, clock := newTestLoop(p)

	_, err := loop.Run(context.Background(), NewTaskDomain(), "", "", "transcript")
	if err == nil {
		t.Fatal("Exhausted retries should fail")
	}
	if p.calls() != testConfig().ModelRetries+1 {
		t.Errorf("Expected %d attempts, got %d", testConfig().ModelRetries+1, p.calls())
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(clock.sleeps) != 3 || clock.sleeps[2] != want[2] {
		t.Errorf("Expected backoff %v, got %v", want, clock.sleeps)
	}
}

func TestLoopFailsFastOnPermanentModelError(t *testing.T) {
	p := &fakeProvider{script: []fakeStep{
		{err: errors.New("invalid api key")},
	}}
	loop, clock := newTestLoop(p)

	_, err := loop.Run(context.Background(), NewTaskDomain(), "", "", "transcript")
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("Expected permanent error, got %v", err)
	}
	if p.calls() != 1 || len(clock.sleeps) != 0 {
		t.Errorf("Permanent errors must not be retried: calls=%d sleeps=%v", p.calls(), clock.sleeps)
	}
}

func TestLoopStopsOnRepeatedIdenticalCalls(t *testing.T) {
	same := tcall("", "update_dossier_field", `{"field":"phone","value":"+1 555 0100"}`)
	p := &fakeProvider{}
	for i := 0; i < 10; i++ {
		p.script = append(p.script, fakeStep{resp: &llm.Response{ToolCalls: []llm.ToolCall{same}}})
	}
	loop, _ := newTestLoop(p)

	res, err := loop.Run(context.Background(), NewDossierDomain(), "", "", "transcript")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Confirmed {
		t.Error("Looping model must not confirm")
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "repeated") {
		t.Errorf("Expected repeated-call warning, got %v", res.Warnings)
	}
	if res.Iterations >= testConfig().MaxIterations {
		t.Errorf("Guard should trip before the iteration cap, ran %d", res.Iterations)
	}
}

func TestLoopHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &fakeProvider{}
	loop, _ := newTestLoop(p)
	_, err := loop.Run(ctx, NewTaskDomain(), "", "", "transcript")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if p.calls() != 0 {
		t.Error("Cancelled run must not call the model")
	}
}

func TestTranscriptFormatting(t *testing.T) {
	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	msgs := []storage.ChatMessage{
		{Sender: storage.SenderClient, ContentType: "text", Content: "Hi", CreatedAt: ts},
		{Sender: storage.SenderOperator, ContentType: "text", Content: "Hello", CreatedAt: ts.Add(time.Minute)},
		{Sender: storage.SenderClient, ContentType: "photo", Content: "", CreatedAt: ts.Add(2 * time.Minute)},
	}

	got := FormatTranscript(msgs)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %q", got)
	}
	if lines[0] != "[2026-01-02 15:04:05] [CLIENT] Hi" {
		t.Errorf("Line 0 wrong: %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OPERATOR] Hello") {
		t.Errorf("Line 1 wrong: %q", lines[1])
	}
	if !strings.Contains(lines[2], "[PHOTO]") {
		t.Errorf("Non-text message should be tagged: %q", lines[2])
	}

	if FormatTranscript(msgs) != got {
		t.Error("Formatting must be deterministic")
	}
	if FormatTranscript(nil) != "" {
		t.Error("Empty transcript should render empty")
	}
}

func TestTrimToBudgetKeepsNewest(t *testing.T) {
	ts := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	var msgs []storage.ChatMessage
	for i := 0; i < 5; i++ {
		msgs = append(msgs, storage.ChatMessage{
			Sender:    storage.SenderClient,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: ts.Add(time.Duration(i) * time.Minute),
		})
	}

	lineCount := func(s string) int { return strings.Count(s, "\n") + 1 }

	trimmed := TrimToBudget(msgs, 2, lineCount)
	if len(trimmed) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(trimmed))
	}
	if trimmed[0].Content != "message 3" || trimmed[1].Content != "message 4" {
		t.Errorf("Oldest messages should be dropped first: %+v", trimmed)
	}

	if got := TrimToBudget(msgs, 0, lineCount); len(got) != 5 {
		t.Errorf("Budget 0 means unlimited, got %d", len(got))
	}
	if got := TrimToBudget(msgs[:1], 1, func(string) int { return 100 }); len(got) != 1 {
		t.Error("The newest message always survives")
	}
}
