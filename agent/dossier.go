package agent

import (
	"fmt"
	"strings"

	"github.com/motorline/dealsense/reconcile"
	"github.com/motorline/dealsense/storage"
	"github.com/motorline/dealsense/tools"
)

// DossierDomain keeps the client profile in sync with the conversation
type DossierDomain struct {
	registry *tools.Registry
}

func NewDossierDomain() *DossierDomain {
	return &DossierDomain{registry: tools.NewDossierRegistry()}
}

func (d *DossierDomain) Name() string           { return DomainDossier }
func (d *DossierDomain) Tools() *tools.Registry { return d.registry }

func (d *DossierDomain) Snapshot(store *storage.Storage, clientID int64) (string, error) {
	dossier, err := store.GetDossier(clientID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Current dossier:\n")
	for _, field := range tools.DossierFields {
		var value interface{}
		if dossier != nil {
			value = dossier.Fields[field]
		}
		if value == nil || value == "" {
			fmt.Fprintf(&b, "- %s: (not set)\n", field)
		} else {
			fmt.Fprintf(&b, "- %s: %v\n", field, value)
		}
	}
	if dossier != nil {
		if marks := renderManualMarks(dossier.Manual); marks != "" {
			b.WriteString("\n" + marks + "\n")
		}
	}
	return b.String(), nil
}

func (d *DossierDomain) SystemPrompt(clientName, snapshot string) string {
	var b strings.Builder
	b.WriteString(promptIntro(
		"Compare the conversation transcript against the client's dossier and bring the dossier up to date.",
		clientName))
	b.WriteString(snapshot)
	b.WriteString("\nRules:\n")
	b.WriteString(commonRules + "\n")
	b.WriteString(`- client_type is one of: ` + strings.Join(tools.ClientTypes, ", ") + `.
- Use update_dossier_field once per field that needs a new value. Pass null to clear a field the client retracted.
- Do not call update_dossier_field for fields that are already correct.
- Personal facts (phone, location, birthday) belong here; what cars the client wants does not.
- When the dossier matches the conversation, finish by calling confirm_all_dossier. This final call is mandatory.
`)
	return b.String()
}

func (d *DossierDomain) Apply(store *storage.Storage, clientID int64, calls []reconcile.Call) (string, bool, error) {
	dossier, err := store.GetDossier(clientID)
	if err != nil {
		return "", false, err
	}
	if dossier == nil {
		dossier = &storage.Dossier{ClientID: clientID, Fields: map[string]interface{}{}}
	}

	fields, changed := reconcile.ApplyDossier(dossier.Fields, calls)
	if len(changed) == 0 {
		return "no changes", false, nil
	}

	// Manual markers are owned by the operator path and stay untouched.
	dossier.Fields = fields
	if err := store.SaveDossier(dossier); err != nil {
		return "", false, err
	}
	return "updated: " + strings.Join(changed, ", "), true, nil
}
