package reconcile

import (
	"testing"
	"time"

	"github.com/motorline/dealsense/storage"
)

func TestParseDueDate(t *testing.T) {
	got, err := ParseDueDate("2026-09-01")
	if err != nil {
		t.Fatalf("Date-only parse failed: %v", err)
	}
	want := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Date-only should default to 08:00, got %v", got)
	}

	got, err = ParseDueDate("2026-09-01 14:30:00")
	if err != nil {
		t.Fatalf("Datetime parse failed: %v", err)
	}
	if got.Hour() != 14 || got.Minute() != 30 {
		t.Errorf("Datetime parse wrong: %v", got)
	}

	if _, err := ParseDueDate("tomorrow"); err == nil {
		t.Error("Free-form date should fail")
	}
}

func TestApplyDossierSkipsUnchanged(t *testing.T) {
	current := map[string]interface{}{
		"phone":            "+1 555 0100",
		"current_location": "Austin",
	}
	next, changed := ApplyDossier(current, []Call{
		{Name: "update_dossier_field", Args: map[string]interface{}{"field": "phone", "value": "+1 555 0100"}},
		{Name: "update_dossier_field", Args: map[string]interface{}{"field": "current_location", "value": "Dallas"}},
		{Name: "update_dossier_field", Args: map[string]interface{}{"field": "client_type", "value": "private"}},
		{Name: "confirm_all_dossier", Args: map[string]interface{}{}},
	})

	if len(changed) != 2 {
		t.Fatalf("Expected 2 changed fields, got %v", changed)
	}
	if changed[0] != "current_location" || changed[1] != "client_type" {
		t.Errorf("Changed fields wrong: %v", changed)
	}
	if next["current_location"] != "Dallas" || next["client_type"] != "private" {
		t.Errorf("Values not applied: %v", next)
	}
	if current["current_location"] != "Austin" {
		t.Error("Input map was mutated")
	}
}

func TestApplyDossierEmptyEqualsNull(t *testing.T) {
	current := map[string]interface{}{"personal_notes": ""}
	_, changed := ApplyDossier(current, []Call{
		{Name: "update_dossier_field", Args: map[string]interface{}{"field": "personal_notes", "value": nil}},
	})
	if len(changed) != 0 {
		t.Errorf("Null over empty string should be a no-op, got %v", changed)
	}
}

func TestApplyDossierClearingAbsentFieldIsNoOp(t *testing.T) {
	next, changed := ApplyDossier(map[string]interface{}{}, []Call{
		{Name: "update_dossier_field", Args: map[string]interface{}{"field": "phone", "value": nil}},
		{Name: "update_dossier_field", Args: map[string]interface{}{"field": "personal_notes", "value": ""}},
	})
	if len(changed) != 0 {
		t.Fatalf("Clearing fields that were never set should change nothing, got %v", changed)
	}
	if _, ok := next["phone"]; ok {
		t.Error("No-op clear should not write the field")
	}

	// A real value on an absent field is still a change.
	_, changed = ApplyDossier(nil, []Call{
		{Name: "update_dossier_field", Args: map[string]interface{}{"field": "phone", "value": "+1 555 0100"}},
	})
	if len(changed) != 1 || changed[0] != "phone" {
		t.Errorf("New value on absent field should register, got %v", changed)
	}
}

func TestApplyDossierClearsWithNull(t *testing.T) {
	current := map[string]interface{}{"phone": "+1 555 0100"}
	next, changed := ApplyDossier(current, []Call{
		{Name: "update_dossier_field", Args: map[string]interface{}{"field": "phone", "value": nil}},
	})
	if len(changed) != 1 {
		t.Fatalf("Clearing should count as a change, got %v", changed)
	}
	if v, ok := next["phone"]; !ok || v != nil {
		t.Errorf("Field should be present and nil: %v", next)
	}
}

func TestApplyInterestsBatchOrdering(t *testing.T) {
	current := []storage.Query{
		{"brand": "BMW"},
		{"brand": "Audi"},
		{"brand": "Tesla"},
	}

	// Deleting 0 and 2 in one batch must keep the Audi query, whatever
	// order the model emitted the calls in.
	next, sum := ApplyInterests(current, []Call{
		{Name: "delete_car_interest_query", Args: map[string]interface{}{"index": float64(0)}},
		{Name: "delete_car_interest_query", Args: map[string]interface{}{"index": float64(2)}},
	})
	if sum.Deleted != 2 || len(next) != 1 {
		t.Fatalf("Expected 1 query left, got %v (%+v)", next, sum)
	}
	if next[0]["brand"] != "Audi" {
		t.Errorf("Wrong query survived: %v", next[0])
	}
	if len(current) != 3 {
		t.Error("Input slice was mutated")
	}
}

func TestApplyInterestsUpdateIsFullReplacement(t *testing.T) {
	current := []storage.Query{
		{"brand": "BMW", "model": "X5", "price_max": float64(65000)},
	}
	next, sum := ApplyInterests(current, []Call{
		{Name: "update_car_interest_query", Args: map[string]interface{}{
			"index": float64(0),
			"brand": "BMW",
			"model": "X7",
		}},
	})
	if sum.Updated != 1 {
		t.Fatalf("Expected 1 update, got %+v", sum)
	}
	if next[0]["model"] != "X7" {
		t.Errorf("Model not replaced: %v", next[0])
	}
	if _, ok := next[0]["price_max"]; ok {
		t.Error("Omitted fields must be cleared on update, not preserved")
	}
}

func TestApplyInterestsMixedBatch(t *testing.T) {
	current := []storage.Query{
		{"brand": "BMW"},
		{"brand": "Audi"},
	}
	next, sum := ApplyInterests(current, []Call{
		{Name: "add_car_interest_query", Args: map[string]interface{}{"brand": "Porsche"}},
		{Name: "delete_car_interest_query", Args: map[string]interface{}{"index": float64(1)}},
		{Name: "update_car_interest_query", Args: map[string]interface{}{"index": float64(0), "brand": "BMW", "model": "X5"}},
	})
	if sum.Added != 1 || sum.Deleted != 1 || sum.Updated != 1 {
		t.Fatalf("Summary wrong: %+v", sum)
	}
	// Delete first, then update against the shrunk list, then append.
	if len(next) != 2 {
		t.Fatalf("Expected 2 queries, got %v", next)
	}
	if next[0]["model"] != "X5" || next[1]["brand"] != "Porsche" {
		t.Errorf("Batch applied wrong: %v", next)
	}
}

func TestApplyInterestsOutOfRange(t *testing.T) {
	next, sum := ApplyInterests(nil, []Call{
		{Name: "delete_car_interest_query", Args: map[string]interface{}{"index": float64(5)}},
		{Name: "update_car_interest_query", Args: map[string]interface{}{"index": float64(0), "brand": "BMW"}},
	})
	if sum.Skipped != 2 || len(next) != 0 {
		t.Errorf("Out-of-range calls should be skipped: %v (%+v)", next, sum)
	}
}

func TestApplyInterestsDropsUnknownArgFields(t *testing.T) {
	next, _ := ApplyInterests(nil, []Call{
		{Name: "add_car_interest_query", Args: map[string]interface{}{
			"brand":      "BMW",
			"horsepower": float64(500),
		}},
	})
	if len(next) != 1 {
		t.Fatalf("Expected 1 query, got %v", next)
	}
	if _, ok := next[0]["horsepower"]; ok {
		t.Error("Unknown fields should not reach storage")
	}
}

func TestBuildTaskPlanOrderAndParsing(t *testing.T) {
	plan := BuildTaskPlan([]Call{
		{Name: "add_task", Args: map[string]interface{}{
			"description": "Call the client",
			"due_date":    "2026-09-01",
			"priority":    "high",
		}},
		{Name: "complete_task", Args: map[string]interface{}{"task_id": float64(4)}},
		{Name: "update_task", Args: map[string]interface{}{
			"task_id":  float64(7),
			"due_date": "2026-09-02 10:00:00",
		}},
		{Name: "delete_task", Args: map[string]interface{}{"task_id": float64(9)}},
		{Name: "confirm_all_tasks", Args: map[string]interface{}{}},
	})

	if len(plan) != 4 {
		t.Fatalf("Expected 4 ops, got %d", len(plan))
	}
	if plan[0].Op != TaskAdd || plan[1].Op != TaskComplete || plan[2].Op != TaskUpdate || plan[3].Op != TaskDelete {
		t.Errorf("Call order not preserved: %+v", plan)
	}
	if plan[0].DueDate == nil || plan[0].DueDate.Hour() != 8 {
		t.Errorf("Date-only due date should be 08:00: %v", plan[0].DueDate)
	}
	if plan[2].DueDate == nil || plan[2].DueDate.Hour() != 10 {
		t.Errorf("Datetime due date wrong: %v", plan[2].DueDate)
	}
}

func TestBuildTaskPlanDropsBrokenCalls(t *testing.T) {
	plan := BuildTaskPlan([]Call{
		{Name: "add_task", Args: map[string]interface{}{"description": "   "}},
		{Name: "update_task", Args: map[string]interface{}{"task_id": float64(3)}},
		{Name: "complete_task", Args: map[string]interface{}{}},
		{Name: "add_task", Args: map[string]interface{}{
			"description": "Send the invoice",
			"due_date":    "next week",
		}},
	})
	if len(plan) != 1 {
		t.Fatalf("Expected only the salvageable add, got %+v", plan)
	}
	if plan[0].Op != TaskAdd || plan[0].DueDate != nil {
		t.Errorf("Bad due date should be dropped, keeping the task: %+v", plan[0])
	}
}
