package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/motorline/dealsense/reconcile"
	"github.com/motorline/dealsense/storage"
	"github.com/motorline/dealsense/tools"
)

// Domain names
const (
	DomainDossier  = "dossier"
	DomainInterest = "car_interests"
	DomainTasks    = "tasks"
)

// Domain is one analyzed record kind: its toolset, its prompt, and how a
// batch of accepted mutation calls is persisted.
type Domain interface {
	Name() string
	Tools() *tools.Registry
	// Snapshot renders the current record state for the system prompt
	Snapshot(store *storage.Storage, clientID int64) (string, error)
	// SystemPrompt wraps the snapshot in the extraction instructions
	SystemPrompt(clientName, snapshot string) string
	// Apply persists accepted mutation calls. Returns a short summary and
	// whether anything actually changed.
	Apply(store *storage.Storage, clientID int64, calls []reconcile.Call) (string, bool, error)
}

// DefaultDomains returns the three record domains in their canonical order
func DefaultDomains() []Domain {
	return []Domain{NewDossierDomain(), NewInterestDomain(), NewTaskDomain()}
}

func promptIntro(role, clientName string) string {
	var b strings.Builder
	b.WriteString("You are a CRM data extraction assistant for a car dealership. ")
	b.WriteString(role)
	b.WriteString("\n\n")
	if clientName != "" {
		fmt.Fprintf(&b, "Client: %s\n\n", clientName)
	}
	return b.String()
}

const commonRules = `- Interact only through the provided tools. Never answer with plain text.
- Record only what the conversation supports. Do not invent or guess values.
- The transcript lines are tagged [CLIENT] and [OPERATOR]; facts come from the client.`

// renderManualMarks lists operator-edited field paths, newest first
func renderManualMarks(m storage.ManualModMap) string {
	if len(m) == 0 {
		return ""
	}
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		return m[paths[i]].ModifiedAt.After(m[paths[j]].ModifiedAt)
	})
	return "Manually edited by an operator (keep unless the client clearly states a new value): " +
		strings.Join(paths, ", ")
}
