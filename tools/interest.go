package tools

import (
	"fmt"
	"strings"
)

// QueryFields is the closed set of filter fields in one car-interest query
var QueryFields = []string{
	"brand",
	"model",
	"price_min",
	"price_max",
	"year_min",
	"year_max",
	"mileage_max",
	"exterior_color",
	"interior_color",
	"engine_type",
	"drive_type",
	"notes",
}

func querySchemaProps() map[string]interface{} {
	return map[string]interface{}{
		"brand":          map[string]interface{}{"type": "string", "description": "Car brand, normalized (e.g. BMW)"},
		"model":          map[string]interface{}{"type": "string", "description": "Car model, normalized (e.g. X5)"},
		"price_min":      map[string]interface{}{"type": "number", "description": "Minimum budget in USD"},
		"price_max":      map[string]interface{}{"type": "number", "description": "Maximum budget in USD"},
		"year_min":       map[string]interface{}{"type": "integer", "description": "Earliest model year"},
		"year_max":       map[string]interface{}{"type": "integer", "description": "Latest model year"},
		"mileage_max":    map[string]interface{}{"type": "integer", "description": "Maximum mileage in kilometers"},
		"exterior_color": map[string]interface{}{"type": "string", "description": "Exterior color"},
		"interior_color": map[string]interface{}{"type": "string", "description": "Interior color"},
		"engine_type":    map[string]interface{}{"type": "string", "enum": []string{"gas", "diesel", "hybrid", "electric"}},
		"drive_type":     map[string]interface{}{"type": "string", "enum": []string{"AWD", "FWD", "RWD"}},
		"notes":          map[string]interface{}{"type": "string", "description": "Extra requirements as a short note"},
	}
}

// validateQueryArgs checks that args carry at least one known filter field
// and nothing outside the closed set (plus extraKeys)
func validateQueryArgs(tool string, args map[string]interface{}, extraKeys ...string) error {
	allowed := append(append([]string{}, QueryFields...), extraKeys...)
	if extra := unknownKeys(args, allowed); len(extra) > 0 {
		return &ValidationError{
			Tool: tool,
			Msg:  fmt.Sprintf("unknown fields: %s, allowed: %s", strings.Join(extra, ", "), strings.Join(QueryFields, ", ")),
		}
	}
	for _, f := range QueryFields {
		if Has(args, f) {
			return nil
		}
	}
	return &ValidationError{Tool: tool, Msg: "at least one filter field must be provided"}
}

// NewInterestRegistry builds the car-interest domain toolset
func NewInterestRegistry() *Registry {
	r := NewRegistry()

	r.Register(&funcTool{
		name:   "add_car_interest_query",
		desc:   "Add a new car interest query. Each query is one independent search.",
		params: objectSchema(querySchemaProps()),
		fn: func(args map[string]interface{}) (string, error) {
			if err := validateQueryArgs("add_car_interest_query", args); err != nil {
				return "", err
			}
			return "New car interest query added", nil
		},
	})

	updateProps := querySchemaProps()
	updateProps["index"] = map[string]interface{}{
		"type":        "integer",
		"description": "Zero-based index of the query to replace",
	}
	r.Register(&funcTool{
		name: "update_car_interest_query",
		desc: "Replace an existing car interest query. Pass ALL fields of the query, " +
			"even unchanged ones: omitted fields are cleared, not preserved.",
		params: objectSchema(updateProps, "index"),
		fn: func(args map[string]interface{}) (string, error) {
			index, ok := GetInt(args, "index")
			if !ok || index < 0 {
				return "", &ValidationError{Tool: "update_car_interest_query", Msg: "'index' is required and must be >= 0"}
			}
			if err := validateQueryArgs("update_car_interest_query", args, "index"); err != nil {
				return "", err
			}
			return fmt.Sprintf("Car interest query #%d updated", index), nil
		},
	})

	r.Register(&funcTool{
		name: "delete_car_interest_query",
		desc: "Delete a car interest query that is no longer relevant.",
		params: objectSchema(map[string]interface{}{
			"index": map[string]interface{}{
				"type":        "integer",
				"description": "Zero-based index of the query to delete",
			},
		}, "index"),
		fn: func(args map[string]interface{}) (string, error) {
			index, ok := GetInt(args, "index")
			if !ok || index < 0 {
				return "", &ValidationError{Tool: "delete_car_interest_query", Msg: "'index' is required and must be >= 0"}
			}
			return fmt.Sprintf("Car interest query #%d deleted", index), nil
		},
	})

	r.Register(&funcTool{
		name:   "confirm_all_car_interests",
		desc:   "Confirm that the interest list matches the conversation. Mandatory final step.",
		params: objectSchema(map[string]interface{}{}),
		fn: func(map[string]interface{}) (string, error) {
			return "All car interests confirmed", nil
		},
	})

	return r
}
