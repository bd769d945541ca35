// Tools module - mutation tool vocabulary for the analysis agents.
// Tools are preview-only: executing one returns a confirmation string for the
// model's conversation history and never touches storage. Reconciliation
// applies the recorded calls afterwards.
package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/motorline/dealsense/pkg/llm"
)

// ConfirmPrefix marks the distinguished termination tools
const ConfirmPrefix = "confirm_all"

// IsConfirm reports whether a tool name is a domain confirm signal
func IsConfirm(name string) bool {
	return strings.HasPrefix(name, ConfirmPrefix)
}

// Tool defines the tool interface
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(args map[string]interface{}) (string, error)
}

// ValidationError signals malformed tool arguments. It is fed back to the
// model as corrective context and never retried.
type ValidationError struct {
	Tool string
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Msg)
}

// Registry holds a closed set of tools for one domain
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register a tool
func (r *Registry) Register(t Tool) {
	if _, dup := r.tools[t.Name()]; !dup {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns registered tool names in registration order
func (r *Registry) List() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Call invokes a tool and returns its preview string
func (r *Registry) Call(name string, args map[string]interface{}) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", &ValidationError{Tool: name, Msg: "tool not found"}
	}
	return t.Execute(args)
}

// Specs returns the registry's tools as provider tool declarations
func (r *Registry) Specs() []llm.Tool {
	specs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, llm.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return specs
}

// funcTool adapts a closure to the Tool interface
type funcTool struct {
	name   string
	desc   string
	params map[string]interface{}
	fn     func(args map[string]interface{}) (string, error)
}

func (t *funcTool) Name() string                       { return t.name }
func (t *funcTool) Description() string                { return t.desc }
func (t *funcTool) Parameters() map[string]interface{} { return t.params }
func (t *funcTool) Execute(args map[string]interface{}) (string, error) {
	return t.fn(args)
}

// objectSchema builds an OpenAI-style parameter object
func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// GetString gets a string arg
func GetString(args map[string]interface{}, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt gets an int arg (JSON numbers arrive as float64)
func GetInt(args map[string]interface{}, key string) (int, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false
	}
	switch f := v.(type) {
	case float64:
		return int(f), true
	case int:
		return f, true
	case int64:
		return int(f), true
	}
	return 0, false
}

// Has reports whether a key is present with a non-nil value
func Has(args map[string]interface{}, key string) bool {
	v, ok := args[key]
	return ok && v != nil
}

// unknownKeys returns arg keys outside the allowed set, sorted
func unknownKeys(args map[string]interface{}, allowed []string) []string {
	set := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		set[k] = true
	}
	var extra []string
	for k := range args {
		if !set[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return extra
}

// formatValue renders an argument value for a preview string
func formatValue(v interface{}) string {
	if v == nil {
		return "null"
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
