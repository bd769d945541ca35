package tools

import (
	"fmt"
	"strings"
)

// DossierFields is the closed set of dossier fields the model may set
var DossierFields = []string{
	"phone",
	"current_location",
	"birthday",
	"gender",
	"client_type",
	"personal_notes",
	"business_profile",
}

// ClientTypes are the recognized client categories
var ClientTypes = []string{"private", "reseller", "broker", "dealer", "transporter"}

func isDossierField(field string) bool {
	for _, f := range DossierFields {
		if f == field {
			return true
		}
	}
	return false
}

// NewDossierRegistry builds the dossier domain toolset
func NewDossierRegistry() *Registry {
	r := NewRegistry()

	r.Register(&funcTool{
		name: "update_dossier_field",
		desc: "Update one field in the client dossier. " +
			"Allowed fields: " + strings.Join(DossierFields, ", ") + ".",
		params: objectSchema(map[string]interface{}{
			"field": map[string]interface{}{
				"type":        "string",
				"enum":        DossierFields,
				"description": "Name of the dossier field to update",
			},
			"value": map[string]interface{}{
				"description": "New value for the field, or null to clear it",
			},
		}, "field"),
		fn: func(args map[string]interface{}) (string, error) {
			field := GetString(args, "field")
			if field == "" {
				return "", &ValidationError{Tool: "update_dossier_field", Msg: "'field' is required"}
			}
			if !isDossierField(field) {
				return "", &ValidationError{
					Tool: "update_dossier_field",
					Msg:  fmt.Sprintf("field '%s' is not supported, allowed fields: %s", field, strings.Join(DossierFields, ", ")),
				}
			}
			return fmt.Sprintf("Field '%s' will be updated to: %s", field, formatValue(args["value"])), nil
		},
	})

	r.Register(&funcTool{
		name:   "confirm_all_dossier",
		desc:   "Confirm that the dossier matches the conversation. Mandatory final step.",
		params: objectSchema(map[string]interface{}{}),
		fn: func(map[string]interface{}) (string, error) {
			return "All dossier fields confirmed", nil
		},
	})

	return r
}
