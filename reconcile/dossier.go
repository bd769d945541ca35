package reconcile

import (
	"log"
	"reflect"
)

// ApplyDossier applies update_dossier_field calls to the current field map
// and returns the new map plus the names of the fields that actually
// changed. Calls that restate the current value are skipped. The input map
// is not mutated.
func ApplyDossier(current map[string]interface{}, calls []Call) (map[string]interface{}, []string) {
	fields := make(map[string]interface{}, len(current))
	for k, v := range current {
		fields[k] = v
	}

	var changed []string
	for _, c := range calls {
		if c.Name != "update_dossier_field" {
			continue
		}
		field := getString(c.Args, "field")
		if field == "" {
			continue
		}
		value := c.Args["value"]

		// A field absent from the map is the same empty value as null or
		// "", so clearing it is a no-op, not a change.
		if valueEqual(fields[field], value) {
			log.Printf("[Reconcile] Dossier field %s unchanged, skipping", field)
			continue
		}
		fields[field] = value
		changed = append(changed, field)
	}
	return fields, changed
}

// valueEqual treats nil and "" as the same empty value
func valueEqual(a, b interface{}) bool {
	if isEmpty(a) && isEmpty(b) {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
